package storage

import "log/slog"

// Option is a functional option for configuring a binding.
type Option func(*config)

// config holds binding configuration. Serializer and merge function are
// stored type-erased because Option itself is not generic; Bind asserts
// them back to their typed form.
type config struct {
	store    Storage
	storeSet bool

	bus   *Bus
	flush FlushPolicy

	serializer any
	mergeFn    any

	mergeDefaults          bool
	shallow                bool
	initOnMounted          bool
	listenToStorageChanges bool
	writeDefaults          bool

	onError func(error)
	logger  *slog.Logger
}

func defaultConfig() config {
	return config{
		flush:                  FlushSync,
		bus:                    DefaultBus,
		listenToStorageChanges: true,
		writeDefaults:          true,
	}
}

// WithStorage sets the backend explicitly instead of resolving it through
// the provider.
func WithStorage(s Storage) Option {
	return func(c *config) {
		c.store = s
		c.storeSet = true
	}
}

// WithBus sets the process-local event bus used for same-process
// synchronization. The default is DefaultBus.
func WithBus(b *Bus) Option {
	return func(c *config) {
		c.bus = b
	}
}

// WithFlush sets the write scheduling policy. The default is FlushSync.
//
// Example:
//
//	storage.Bind("query", "", storage.WithFlush(storage.Debounce(300*time.Millisecond)))
func WithFlush(p FlushPolicy) Option {
	return func(c *config) {
		c.flush = p
	}
}

// WithSerializer overrides serializer inference. The serializer's type
// parameter must match the binding's value type.
func WithSerializer[T any](s Serializer[T]) Option {
	return func(c *config) {
		c.serializer = s
	}
}

// MergeDefaults enables the built-in merge policy when a stored value is
// read: maps are shallow-merged with stored keys winning and the default
// filling gaps, struct fields left zero by the stored value are filled
// from the default, slices and everything else are taken from the stored
// value outright.
func MergeDefaults() Option {
	return func(c *config) {
		c.mergeDefaults = true
	}
}

// WithMergeFunc sets a custom merge policy, replacing the built-in one.
// The function receives the freshly read stored value and the default and
// returns the value the binding should use.
func WithMergeFunc[T any](fn MergeFunc[T]) Option {
	return func(c *config) {
		c.mergeFn = fn
	}
}

// Shallow makes the binding compare values by identity (pointer equality
// for maps, slices and pointers) instead of deep equality when deciding
// whether a write changed the value. With Shallow, in-place mutations need
// an explicit Trigger call to reach the backend.
func Shallow() Option {
	return func(c *config) {
		c.shallow = true
	}
}

// InitOnMounted defers initial reconciliation with the backend until the
// owning scope is mounted. Without a current scope the option has no
// effect and reconciliation runs immediately.
func InitOnMounted() Option {
	return func(c *config) {
		c.initOnMounted = true
	}
}

// ListenToStorageChanges controls whether the binding subscribes to
// external change notifications (native backend events and the process
// bus). Enabled by default.
func ListenToStorageChanges(enabled bool) Option {
	return func(c *config) {
		c.listenToStorageChanges = enabled
	}
}

// WriteDefaults controls whether the serialized default is written to the
// backend when the key is initially absent. Enabled by default.
func WriteDefaults(enabled bool) Option {
	return func(c *config) {
		c.writeDefaults = enabled
	}
}

// OnError sets the error callback. Backend and serialization failures are
// reported here and otherwise suppressed; the default logs through the
// binding's logger.
func OnError(fn func(error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// WithLogger sets the logger used for suppressed failures.
// The default is slog.Default() scoped to this component.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
