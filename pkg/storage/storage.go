package storage

// Storage is the pluggable key-value backend contract.
//
// Implementations must be safe for concurrent use. Backend values must be
// comparable (all implementations in this package use pointer receivers),
// because bindings and the event bus key subscriptions by backend identity.
type Storage interface {
	// GetItem returns the raw string stored under key.
	// The second return is false when the key is absent.
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key, overwriting any previous value.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(key string) error
}

// Clearer is implemented by backends that can drop all keys.
type Clearer interface {
	Clear() error
}

// Event describes a mutation of a backend.
//
// Native events (from an EventSource) report mutations made outside the
// current process, like another tab writing to a shared file or a peer
// writing through a remote hub. Bus events report writes made by another
// binding in the same process; backends typically do not emit native
// events for their own context's writes, so the bus fills that gap.
type Event struct {
	// Storage is the backend the mutation happened on.
	Storage Storage

	// Key is the affected key. Empty means the backend cannot tell which
	// keys changed (for example after a clear); consumers should re-read
	// the keys they care about.
	Key string

	// OldValue is the raw value before the mutation, nil if absent or
	// unknown.
	OldValue *string

	// NewValue is the raw value after the mutation, nil if the key was
	// removed.
	NewValue *string
}

// EventSource is implemented by backends that can report mutations made
// from outside the current context. Subscribe registers fn for every such
// event and returns a cancel function that removes the subscription.
type EventSource interface {
	Subscribe(fn func(Event)) (cancel func())
}

// rawEqual compares two raw values, treating nil as "absent".
func rawEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strptr(s string) *string {
	return &s
}
