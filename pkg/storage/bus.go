package storage

import "sync"

// Bus is a process-local publish/subscribe channel that keeps bindings in
// the same process synchronized. Every backend write or removal performed
// through a binding is published here; native backend events do not fire
// for the context that made the write, so the bus is what lets two
// bindings on the same (backend, key) see each other.
//
// Subscriptions are keyed by backend identity and key. Delivery is
// synchronous: Publish returns after every subscriber has run.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[busKey][]busSub
}

type busKey struct {
	storage Storage
	key     string
}

type busSub struct {
	id uint64
	fn func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[busKey][]busSub)}
}

// DefaultBus is the bus bindings use unless configured otherwise.
var DefaultBus = NewBus()

// Subscribe registers fn for events on the given backend and key.
// The returned cancel function removes the subscription; calling it more
// than once is harmless.
func (b *Bus) Subscribe(s Storage, key string, fn func(Event)) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	k := busKey{storage: s, key: key}
	b.subs[k] = append(b.subs[k], busSub{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[k]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[k] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[k]) == 0 {
			delete(b.subs, k)
		}
	}
}

// Publish delivers e to every subscriber of (e.Storage, e.Key).
// The subscriber list is copied before delivery so handlers may subscribe
// or cancel without deadlocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subs[busKey{storage: e.Storage, key: e.Key}]
	copied := make([]busSub, len(subs))
	copy(copied, subs)
	b.mu.RUnlock()

	for _, sub := range copied {
		sub.fn(e)
	}
}
