package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Serializer converts values to and from the raw string form a backend
// stores. Read and Write must be inverses modulo formatting.
type Serializer[T any] struct {
	Read  func(raw string) (T, error)
	Write func(value T) (string, error)
}

var timeType = reflect.TypeOf(time.Time{})

// SerializerFor infers a serializer from T's shape:
//
//   - bool: "true"/"false"
//   - integer and float kinds: decimal string
//   - time.Time: RFC 3339
//   - map[K]struct{} and map[K]bool (set-like): JSON array of elements
//   - other map kinds: JSON array of [key, value] pairs
//   - string: identity passthrough
//   - anything else: JSON
//
// The pair encoding for maps keeps non-string keys faithful, which a plain
// JSON object cannot.
func SerializerFor[T any]() Serializer[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()

	if t == timeType {
		return Serializer[T]{
			Read: func(raw string) (T, error) {
				var v T
				parsed, err := time.Parse(time.RFC3339Nano, raw)
				if err != nil {
					return v, err
				}
				reflect.ValueOf(&v).Elem().Set(reflect.ValueOf(parsed))
				return v, nil
			},
			Write: func(value T) (string, error) {
				return any(value).(time.Time).Format(time.RFC3339Nano), nil
			},
		}
	}

	switch t.Kind() {
	case reflect.String:
		return Serializer[T]{
			Read: func(raw string) (T, error) {
				var v T
				reflect.ValueOf(&v).Elem().SetString(raw)
				return v, nil
			},
			Write: func(value T) (string, error) {
				return reflect.ValueOf(value).String(), nil
			},
		}

	case reflect.Bool:
		return Serializer[T]{
			Read: func(raw string) (T, error) {
				var v T
				b, err := strconv.ParseBool(raw)
				if err != nil {
					return v, err
				}
				reflect.ValueOf(&v).Elem().SetBool(b)
				return v, nil
			},
			Write: func(value T) (string, error) {
				return strconv.FormatBool(reflect.ValueOf(value).Bool()), nil
			},
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Serializer[T]{
			Read: func(raw string) (T, error) {
				var v T
				n, err := strconv.ParseInt(raw, 10, t.Bits())
				if err != nil {
					return v, err
				}
				reflect.ValueOf(&v).Elem().SetInt(n)
				return v, nil
			},
			Write: func(value T) (string, error) {
				return strconv.FormatInt(reflect.ValueOf(value).Int(), 10), nil
			},
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Serializer[T]{
			Read: func(raw string) (T, error) {
				var v T
				n, err := strconv.ParseUint(raw, 10, t.Bits())
				if err != nil {
					return v, err
				}
				reflect.ValueOf(&v).Elem().SetUint(n)
				return v, nil
			},
			Write: func(value T) (string, error) {
				return strconv.FormatUint(reflect.ValueOf(value).Uint(), 10), nil
			},
		}

	case reflect.Float32, reflect.Float64:
		return Serializer[T]{
			Read: func(raw string) (T, error) {
				var v T
				f, err := strconv.ParseFloat(raw, t.Bits())
				if err != nil {
					return v, err
				}
				reflect.ValueOf(&v).Elem().SetFloat(f)
				return v, nil
			},
			Write: func(value T) (string, error) {
				return strconv.FormatFloat(reflect.ValueOf(value).Float(), 'f', -1, t.Bits()), nil
			},
		}

	case reflect.Map:
		if isSetLike(t) {
			return setSerializer[T](t)
		}
		return mapSerializer[T](t)
	}

	return jsonSerializer[T]()
}

// isSetLike reports whether t is a map used as a set: struct{} or bool
// values carry no information beyond membership.
func isSetLike(t reflect.Type) bool {
	elem := t.Elem()
	return elem.Kind() == reflect.Bool ||
		(elem.Kind() == reflect.Struct && elem.NumField() == 0)
}

// jsonSerializer is the fallback for arbitrary values.
func jsonSerializer[T any]() Serializer[T] {
	return Serializer[T]{
		Read: func(raw string) (T, error) {
			var v T
			err := json.Unmarshal([]byte(raw), &v)
			return v, err
		},
		Write: func(value T) (string, error) {
			data, err := json.Marshal(value)
			return string(data), err
		},
	}
}

// mapSerializer encodes a map as a JSON array of [key, value] pairs.
func mapSerializer[T any](t reflect.Type) Serializer[T] {
	keyType, elemType := t.Key(), t.Elem()

	return Serializer[T]{
		Read: func(raw string) (T, error) {
			var v T
			var pairs [][]json.RawMessage
			if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
				return v, err
			}

			m := reflect.MakeMapWithSize(t, len(pairs))
			for i, pair := range pairs {
				if len(pair) != 2 {
					return v, fmt.Errorf("pair %d: expected [key, value], got %d elements", i, len(pair))
				}
				key := reflect.New(keyType)
				if err := json.Unmarshal(pair[0], key.Interface()); err != nil {
					return v, fmt.Errorf("pair %d key: %w", i, err)
				}
				elem := reflect.New(elemType)
				if err := json.Unmarshal(pair[1], elem.Interface()); err != nil {
					return v, fmt.Errorf("pair %d value: %w", i, err)
				}
				m.SetMapIndex(key.Elem(), elem.Elem())
			}

			reflect.ValueOf(&v).Elem().Set(m)
			return v, nil
		},
		Write: func(value T) (string, error) {
			m := reflect.ValueOf(value)
			pairs := make([][2]any, 0, m.Len())
			iter := m.MapRange()
			for iter.Next() {
				pairs = append(pairs, [2]any{iter.Key().Interface(), iter.Value().Interface()})
			}
			// Stable output order so identical maps serialize identically.
			sortPairs(pairs)
			data, err := json.Marshal(pairs)
			return string(data), err
		},
	}
}

// setSerializer encodes a set-like map as a JSON array of its elements.
func setSerializer[T any](t reflect.Type) Serializer[T] {
	keyType, elemType := t.Key(), t.Elem()

	return Serializer[T]{
		Read: func(raw string) (T, error) {
			var v T
			var elems []json.RawMessage
			if err := json.Unmarshal([]byte(raw), &elems); err != nil {
				return v, err
			}

			m := reflect.MakeMapWithSize(t, len(elems))
			member := reflect.New(elemType).Elem()
			if elemType.Kind() == reflect.Bool {
				member.SetBool(true)
			}
			for i, e := range elems {
				key := reflect.New(keyType)
				if err := json.Unmarshal(e, key.Interface()); err != nil {
					return v, fmt.Errorf("element %d: %w", i, err)
				}
				m.SetMapIndex(key.Elem(), member)
			}

			reflect.ValueOf(&v).Elem().Set(m)
			return v, nil
		},
		Write: func(value T) (string, error) {
			m := reflect.ValueOf(value)
			elems := make([]any, 0, m.Len())
			iter := m.MapRange()
			for iter.Next() {
				elems = append(elems, iter.Key().Interface())
			}
			sortElems(elems)
			data, err := json.Marshal(elems)
			return string(data), err
		},
	}
}

// sortPairs orders pairs by the JSON form of their key.
func sortPairs(pairs [][2]any) {
	sort.Slice(pairs, func(i, j int) bool {
		return jsonKey(pairs[i][0]) < jsonKey(pairs[j][0])
	})
}

// sortElems orders set elements by their JSON form.
func sortElems(elems []any) {
	sort.Slice(elems, func(i, j int) bool {
		return jsonKey(elems[i]) < jsonKey(elems[j])
	})
}

func jsonKey(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
