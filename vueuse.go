// Package vueuse provides the public API for reactive key-value storage
// bindings.
//
// This is the recommended import for most applications:
//
//	import "github.com/xiaofan33/vueuse"
//
// Usage:
//
//	counter := vueuse.Bind("counter", 0)
//	counter.Set(5)                      // persisted as "5"
//	theme := vueuse.Bind("theme", "light",
//	    vueuse.WithFlush(vueuse.Debounce(200*time.Millisecond)))
package vueuse

import (
	"github.com/xiaofan33/vueuse/pkg/reactive"
	"github.com/xiaofan33/vueuse/pkg/storage"
)

// =============================================================================
// Reactive primitives (re-export from pkg/reactive)
// =============================================================================

// Signal is a reactive value container.
type Signal[T any] = reactive.Signal[T]

// Watcher is a running effect created by Watch.
type Watcher = reactive.Watcher

// Scope owns watchers and cleanups with a shared lifetime.
type Scope = reactive.Scope

// Cleanup runs before an effect re-executes and when it is disposed.
type Cleanup = reactive.Cleanup

// NewSignal creates a reactive signal with the given initial value.
//
// Example:
//
//	count := vueuse.NewSignal(0)
//	count.Set(1)
//	value := count.Get() // 1
func NewSignal[T any](initial T) *Signal[T] {
	return reactive.NewSignal(initial)
}

// Watch runs fn immediately and re-runs it whenever a signal it read
// changes.
var Watch = reactive.Watch

// NewScope creates a scope, nested under parent when parent is not nil.
var NewScope = reactive.NewScope

// Batch coalesces signal notifications inside fn into one pass.
var Batch = reactive.Batch

// Untracked runs fn without subscribing the current effect to the
// signals it reads.
var Untracked = reactive.Untracked

// =============================================================================
// Storage bindings (re-export from pkg/storage)
// =============================================================================

// Binding is a live association between a storage key and a reactive
// value.
type Binding[T any] = storage.Binding[T]

// Storage is the key-value backend contract.
type Storage = storage.Storage

// Event describes one change to a backend key.
type Event = storage.Event

// Serializer converts values to and from their stored string form.
type Serializer[T any] = storage.Serializer[T]

// Option configures a binding.
type Option = storage.Option

// Bus distributes change events between bindings in one process.
type Bus = storage.Bus

// Bind creates a binding between key and a reactive value with the
// given default.
//
// Example:
//
//	// backend holds "0" under "custom-key"
//	n := vueuse.Bind("custom-key", 1)
//	n.Get()  // 0: the stored value wins over the default
//	n.Set(2) // backend now holds "2"
func Bind[T any](key string, defaults T, opts ...Option) *Binding[T] {
	return storage.Bind(key, defaults, opts...)
}

// BindLazy is Bind with a default producer instead of a default value.
func BindLazy[T any](key string, defaults func() T, opts ...Option) *Binding[T] {
	return storage.BindLazy(key, defaults, opts...)
}

// BindDynamic binds a reactive key: when the key signal changes, the
// binding re-targets the new key.
func BindDynamic[T any](key *Signal[string], defaults T, opts ...Option) *Binding[T] {
	return storage.BindDynamic(key, defaults, opts...)
}

// SerializerFor returns the serializer inferred for T.
func SerializerFor[T any]() Serializer[T] {
	return storage.SerializerFor[T]()
}

// WithSerializer overrides the inferred serializer.
func WithSerializer[T any](s Serializer[T]) Option {
	return storage.WithSerializer(s)
}

// WithMergeFunc sets a custom policy for combining a stored value with
// the default.
func WithMergeFunc[T any](fn storage.MergeFunc[T]) Option {
	return storage.WithMergeFunc(fn)
}

// Binding options.
var (
	// WithStorage selects an explicit backend instead of the provider.
	WithStorage = storage.WithStorage

	// WithBus selects the event bus for same-process synchronization.
	WithBus = storage.WithBus

	// WithFlush sets the write scheduling policy.
	WithFlush = storage.WithFlush

	// MergeDefaults shallow-merges stored objects over the default.
	MergeDefaults = storage.MergeDefaults

	// Shallow compares values by identity instead of deep equality.
	Shallow = storage.Shallow

	// InitOnMounted defers backend reads until the owning scope mounts.
	InitOnMounted = storage.InitOnMounted

	// ListenToStorageChanges toggles applying external change events.
	ListenToStorageChanges = storage.ListenToStorageChanges

	// WriteDefaults toggles persisting the default for an absent key.
	WriteDefaults = storage.WriteDefaults

	// OnError replaces the logged error handler.
	OnError = storage.OnError

	// WithLogger sets the binding's logger.
	WithLogger = storage.WithLogger
)

// Flush policies.
var (
	// FlushSync writes through immediately.
	FlushSync = storage.FlushSync

	// Debounce delays the write until the value has been quiet for d.
	Debounce = storage.Debounce

	// Throttle writes at most once per interval, leading plus trailing.
	Throttle = storage.Throttle
)

// Backends.
var (
	// NewMemoryStorage creates an in-memory backend.
	NewMemoryStorage = storage.NewMemoryStorage

	// NewFileStorage creates a JSON file backend.
	NewFileStorage = storage.NewFileStorage

	// NewBus creates an event bus independent of the default one.
	NewBus = storage.NewBus

	// SetProvider replaces the default backend provider.
	SetProvider = storage.SetProvider
)
