package storage

import "sync"

// MemoryStorage is an in-memory backend. It is the default backend (via
// the built-in provider) and the reference implementation of the contract.
//
// Like a browser's storage, regular writes do not fire native events in
// the context that made them; the External* methods mutate the store the
// way another context would, emitting a native event to every subscriber.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string

	subMu  sync.RWMutex
	nextID uint64
	subs   map[uint64]func(Event)
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: make(map[string]string),
		subs:  make(map[uint64]func(Event)),
	}
}

// GetItem returns the value stored under key.
func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	return v, ok, nil
}

// SetItem stores value under key.
func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
	return nil
}

// RemoveItem deletes key.
func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Clear drops all keys.
func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]string)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Keys returns a snapshot of the stored keys.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe registers fn for native change events. Implements EventSource.
func (m *MemoryStorage) Subscribe(fn func(Event)) (cancel func()) {
	m.subMu.Lock()
	m.nextID++
	id := m.nextID
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// emit delivers a native event to all subscribers.
func (m *MemoryStorage) emit(e Event) {
	m.subMu.RLock()
	subs := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

// ExternalSetItem stores value the way another context would, emitting a
// native change event.
func (m *MemoryStorage) ExternalSetItem(key, value string) {
	m.mu.Lock()
	var old *string
	if prev, ok := m.items[key]; ok {
		old = strptr(prev)
	}
	m.items[key] = value
	m.mu.Unlock()

	m.emit(Event{Storage: m, Key: key, OldValue: old, NewValue: strptr(value)})
}

// ExternalRemoveItem removes key the way another context would, emitting a
// native change event.
func (m *MemoryStorage) ExternalRemoveItem(key string) {
	m.mu.Lock()
	var old *string
	if prev, ok := m.items[key]; ok {
		old = strptr(prev)
	}
	delete(m.items, key)
	m.mu.Unlock()

	m.emit(Event{Storage: m, Key: key, OldValue: old, NewValue: nil})
}

// ExternalClear drops all keys the way another context would, emitting a
// single native event with no key: subscribers re-read what they care
// about.
func (m *MemoryStorage) ExternalClear() {
	m.mu.Lock()
	m.items = make(map[string]string)
	m.mu.Unlock()

	m.emit(Event{Storage: m})
}
