package storage

import "reflect"

// MergeFunc reconciles a freshly read stored value with the binding's
// default. It returns the value the binding should use.
type MergeFunc[T any] func(stored, defaults T) T

// mergeDefaults is the built-in merge policy:
//
//   - maps: shallow merge, stored keys override default keys, default
//     fills the gaps
//   - structs: field-wise, zero-valued stored fields are filled from the
//     default
//   - slices and arrays: stored wins outright
//   - everything else: stored wins
//
// Maps and structs are merged one level deep only; nested values are not
// descended into.
func mergeDefaults(stored, defaults any) any {
	sv := reflect.ValueOf(stored)
	dv := reflect.ValueOf(defaults)
	if !sv.IsValid() || !dv.IsValid() || sv.Type() != dv.Type() {
		return stored
	}

	switch sv.Kind() {
	case reflect.Map:
		if sv.IsNil() {
			return defaults
		}
		merged := reflect.MakeMapWithSize(sv.Type(), sv.Len()+dv.Len())
		if !dv.IsNil() {
			iter := dv.MapRange()
			for iter.Next() {
				merged.SetMapIndex(iter.Key(), iter.Value())
			}
		}
		iter := sv.MapRange()
		for iter.Next() {
			merged.SetMapIndex(iter.Key(), iter.Value())
		}
		return merged.Interface()

	case reflect.Struct:
		merged := reflect.New(sv.Type()).Elem()
		merged.Set(sv)
		for i := 0; i < sv.NumField(); i++ {
			field := merged.Field(i)
			if !field.CanSet() {
				continue
			}
			if field.IsZero() {
				field.Set(dv.Field(i))
			}
		}
		return merged.Interface()

	case reflect.Pointer:
		if sv.IsNil() {
			return defaults
		}
		if dv.IsNil() || sv.Elem().Kind() != reflect.Struct {
			return stored
		}
		inner := mergeDefaults(sv.Elem().Interface(), dv.Elem().Interface())
		out := reflect.New(sv.Type().Elem())
		out.Elem().Set(reflect.ValueOf(inner))
		return out.Interface()
	}

	return stored
}
