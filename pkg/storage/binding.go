package storage

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/xiaofan33/vueuse/pkg/reactive"
)

// Binding is a live association between a storage key and a reactive
// value. Mutating the value writes it through the binding's serializer to
// the backend; external changes to the key (another binding in the same
// process, or another context reported by the backend) flow back into the
// value.
//
// A binding created inside a reactive scope closes automatically when the
// scope is disposed; otherwise call Close.
type Binding[T any] struct {
	signal *reactive.Signal[T]
	keySig *reactive.Signal[string]

	store      Storage
	ser        Serializer[T]
	bus        *Bus
	fl         flusher
	mergeFn    MergeFunc[T]
	defaultsFn func() T

	listen        bool
	writeDefaults bool

	logger  *slog.Logger
	onError func(error)

	mu             sync.Mutex
	key            string
	keyInitialized bool
	lastRaw        *string
	applying       bool
	started        bool
	closed         bool
	cancelBus      func()
	cancelNative   func()

	watcher    *reactive.Watcher
	keyWatcher *reactive.Watcher
}

// Bind creates a binding between key and a reactive value with the given
// default. The backend comes from WithStorage or, absent that, the
// configured provider.
//
// On creation the key is reconciled: an existing raw value is read and
// deserialized (merged with the default if a merge policy is set); an
// absent key gets the serialized default written (unless disabled or the
// default is nil).
//
// Example:
//
//	counter := storage.Bind("counter", 0)
//	counter.Set(5)        // backend now holds "5"
//	v := counter.Get()    // 5, subscribes the current listener
func Bind[T any](key string, defaults T, opts ...Option) *Binding[T] {
	return newBinding(key, nil, func() T { return defaults }, opts)
}

// BindLazy is Bind with a default producer instead of a default value.
// The producer runs on every reconciliation that needs the default.
func BindLazy[T any](key string, defaults func() T, opts ...Option) *Binding[T] {
	return newBinding(key, nil, defaults, opts)
}

// BindDynamic binds a reactive key. When the key signal changes the
// binding unsubscribes from the old key, reconciles against the new one
// and resubscribes. Values written under the old key stay persisted there.
func BindDynamic[T any](key *reactive.Signal[string], defaults T, opts ...Option) *Binding[T] {
	return newBinding("", key, func() T { return defaults }, opts)
}

func newBinding[T any](key string, keySig *reactive.Signal[string], defaults func() T, opts []Option) *Binding[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default().With("component", "storage")
	}

	b := &Binding[T]{
		keySig:        keySig,
		key:           key,
		bus:           cfg.bus,
		defaultsFn:    defaults,
		listen:        cfg.listenToStorageChanges,
		writeDefaults: cfg.writeDefaults,
		logger:        logger,
		onError:       cfg.onError,
	}

	if cfg.serializer != nil {
		ser, ok := cfg.serializer.(Serializer[T])
		if !ok {
			panic(fmt.Sprintf("storage: serializer type mismatch: got %T", cfg.serializer))
		}
		b.ser = ser
	} else {
		b.ser = SerializerFor[T]()
	}

	if cfg.mergeFn != nil {
		fn, ok := cfg.mergeFn.(MergeFunc[T])
		if !ok {
			panic(fmt.Sprintf("storage: merge function type mismatch: got %T", cfg.mergeFn))
		}
		b.mergeFn = fn
	} else if cfg.mergeDefaults {
		b.mergeFn = func(stored, def T) T {
			return mergeDefaults(stored, def).(T)
		}
	}

	if cfg.storeSet {
		b.store = cfg.store
	} else {
		b.store = resolveStorage(logger)
	}

	b.signal = reactive.NewSignal(defaults())
	if cfg.shallow {
		b.signal.WithEquals(shallowEquals[T])
	}

	b.fl = cfg.flush.newFlusher()

	scope := reactive.CurrentScope()
	if cfg.initOnMounted && scope != nil {
		scope.OnMount(b.start)
	} else {
		b.start()
	}
	if scope != nil {
		scope.OnCleanup(b.Close)
	}

	return b
}

// start performs initial reconciliation and wires the watchers. Runs once;
// deferred to scope mount when InitOnMounted is set.
func (b *Binding[T]) start() {
	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	if b.keySig != nil {
		// First run reconciles against the initial key; later runs
		// handle key switches.
		b.keyWatcher = reactive.Watch(func() reactive.Cleanup {
			k := b.keySig.Get()
			b.switchKey(k)
			return nil
		})
	} else {
		b.reconcile()
		b.subscribeExternal()
	}

	b.startValueWatcher()
}

// startValueWatcher installs the write path: a watcher on the value signal
// whose first run only establishes the dependency.
func (b *Binding[T]) startValueWatcher() {
	first := true
	b.watcher = reactive.Watch(func() reactive.Cleanup {
		v := b.signal.Get()

		if first {
			first = false
			return nil
		}

		b.mu.Lock()
		skip := b.applying || b.closed
		key := b.key
		b.mu.Unlock()
		if skip {
			// Externally driven update, already persisted.
			return nil
		}

		// The key is captured at scheduling time so a deferred write
		// cannot land under a key the binding switched to later.
		b.fl.flush(func() { b.persist(key, v) })
		return nil
	})
}

// Get returns the current value and subscribes the current listener.
func (b *Binding[T]) Get() T {
	return b.signal.Get()
}

// Peek returns the current value without subscribing.
func (b *Binding[T]) Peek() T {
	return b.signal.Peek()
}

// Set updates the value. The write reaches the backend through the flush
// policy; a nil value (for nilable T) removes the key instead and the
// value resets to the default.
func (b *Binding[T]) Set(value T) {
	b.signal.Set(value)
}

// Update atomically reads and updates the value.
func (b *Binding[T]) Update(fn func(T) T) {
	b.signal.Update(fn)
}

// Remove deletes the key from the backend and resets the value to the
// default. This is the explicit form of writing nil for value types that
// cannot express it.
func (b *Binding[T]) Remove() {
	key := b.Key()
	b.fl.flush(func() { b.persistRemove(key) })
}

// Trigger forces a write of the current value. Use after mutating a map,
// slice or pointed-to struct in place, which the binding cannot observe.
func (b *Binding[T]) Trigger() {
	b.signal.Touch()
}

// Signal exposes the underlying reactive signal.
func (b *Binding[T]) Signal() *reactive.Signal[T] {
	return b.signal
}

// Key returns the key the binding is currently bound to.
func (b *Binding[T]) Key() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

// Storage returns the resolved backend, nil if provider resolution failed.
func (b *Binding[T]) Storage() Storage {
	return b.store
}

// Close tears the binding down: external subscriptions are cancelled,
// pending flushes dropped, watchers disposed. Safe to call twice.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.unsubscribeExternal()
	b.fl.stop()
	if b.watcher != nil {
		b.watcher.Dispose()
	}
	if b.keyWatcher != nil {
		b.keyWatcher.Dispose()
	}
}

// switchKey re-targets the binding at a new key.
func (b *Binding[T]) switchKey(key string) {
	b.mu.Lock()
	if b.closed || (b.keyInitialized && b.key == key) {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	// A write still sitting in the flush policy targets the old key;
	// run it before re-targeting so it persists where it belongs.
	b.fl.flushNow()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.keyInitialized = true
	b.key = key
	b.mu.Unlock()

	b.unsubscribeExternal()
	b.reconcile()
	b.subscribeExternal()
}

// reconcile reads the current key and applies read-or-default semantics.
func (b *Binding[T]) reconcile() {
	def := b.defaultsFn()

	if b.store == nil {
		b.setInternal(def, nil)
		return
	}

	key := b.Key()
	raw, ok, err := b.store.GetItem(key)
	if err != nil {
		b.reportError(fmt.Errorf("read %q: %w", key, err))
		b.setInternal(def, nil)
		return
	}

	if !ok {
		if b.writeDefaults && !isNil(def) {
			s, err := b.ser.Write(def)
			if err != nil {
				b.reportError(fmt.Errorf("serialize default for %q: %w", key, err))
				b.setInternal(def, nil)
				return
			}
			if err := b.store.SetItem(key, s); err != nil {
				b.reportError(fmt.Errorf("write default for %q: %w", key, err))
				b.setInternal(def, nil)
				return
			}
			b.setInternal(def, &s)
			b.publish(key, nil, &s)
			return
		}
		b.setInternal(def, nil)
		return
	}

	b.setInternal(b.decode(raw, def), &raw)
}

// decode deserializes raw, falling back to the default on failure, and
// applies the merge policy.
func (b *Binding[T]) decode(raw string, def T) T {
	v, err := b.ser.Read(raw)
	if err != nil {
		b.reportError(fmt.Errorf("deserialize %q: %w", b.Key(), err))
		return def
	}
	if b.mergeFn != nil {
		return b.mergeFn(v, def)
	}
	return v
}

// setInternal applies an already-persisted value to the signal without
// re-triggering the write path, and records the raw form for
// deduplication.
func (b *Binding[T]) setInternal(v T, raw *string) {
	b.mu.Lock()
	b.applying = true
	b.lastRaw = raw
	b.mu.Unlock()

	b.signal.Set(v)

	b.mu.Lock()
	b.applying = false
	b.mu.Unlock()
}

// persist writes v under key. Called through the flush policy with the
// key current at scheduling time.
func (b *Binding[T]) persist(key string, v T) {
	if isNil(v) {
		b.persistRemove(key)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	old := b.lastRaw
	b.mu.Unlock()

	if b.store == nil {
		return
	}

	raw, err := b.ser.Write(v)
	if err != nil {
		b.reportError(fmt.Errorf("serialize %q: %w", key, err))
		return
	}
	if old != nil && *old == raw {
		return
	}

	if err := b.store.SetItem(key, raw); err != nil {
		// The observable keeps the caller-assigned value; the write is
		// simply dropped for this mutation.
		b.reportError(fmt.Errorf("write %q: %w", key, err))
		return
	}

	b.mu.Lock()
	b.lastRaw = &raw
	b.mu.Unlock()

	b.publish(key, old, &raw)
}

// persistRemove removes key and resets the value to the default.
func (b *Binding[T]) persistRemove(key string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	old := b.lastRaw
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.RemoveItem(key); err != nil {
			b.reportError(fmt.Errorf("remove %q: %w", key, err))
			return
		}
	}

	b.mu.Lock()
	b.lastRaw = nil
	b.mu.Unlock()

	if b.store != nil {
		b.publish(key, old, nil)
	}

	b.setInternal(b.defaultsFn(), nil)
}

// publish emits the process-local notification for a write that reached
// the backend.
func (b *Binding[T]) publish(key string, old, new *string) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(Event{
		Storage:  b.store,
		Key:      key,
		OldValue: old,
		NewValue: new,
	})
}

// subscribeExternal wires bus and native change notifications for the
// current key.
func (b *Binding[T]) subscribeExternal() {
	if !b.listen || b.store == nil {
		return
	}

	key := b.Key()

	var cancelBus func()
	if b.bus != nil {
		cancelBus = b.bus.Subscribe(b.store, key, func(e Event) {
			b.applyRaw(e.NewValue)
		})
	}

	var cancelNative func()
	if src, ok := b.store.(EventSource); ok {
		cancelNative = src.Subscribe(b.handleNative)
	}

	b.mu.Lock()
	b.cancelBus = cancelBus
	b.cancelNative = cancelNative
	b.mu.Unlock()
}

func (b *Binding[T]) unsubscribeExternal() {
	b.mu.Lock()
	cancelBus, cancelNative := b.cancelBus, b.cancelNative
	b.cancelBus, b.cancelNative = nil, nil
	b.mu.Unlock()

	if cancelBus != nil {
		cancelBus()
	}
	if cancelNative != nil {
		cancelNative()
	}
}

// handleNative processes a backend's native cross-context change event.
func (b *Binding[T]) handleNative(e Event) {
	if e.Storage != nil && e.Storage != b.store {
		return
	}

	key := b.Key()

	if e.Key == "" {
		// The backend cannot tell which keys changed; rescan ours.
		raw, ok, err := b.store.GetItem(key)
		if err != nil {
			b.reportError(fmt.Errorf("read %q: %w", key, err))
			return
		}
		if !ok {
			b.applyRaw(nil)
			return
		}
		b.applyRaw(&raw)
		return
	}

	if e.Key != key {
		return
	}
	b.applyRaw(e.NewValue)
}

// applyRaw applies an externally observed raw value. Events carrying the
// raw form the binding last wrote or applied are dropped, which guards
// against double processing when the native event and the bus event both
// fire for one write.
func (b *Binding[T]) applyRaw(raw *string) {
	b.mu.Lock()
	if b.closed || rawEqual(raw, b.lastRaw) {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	def := b.defaultsFn()
	if raw == nil {
		b.setInternal(def, nil)
		return
	}
	b.setInternal(b.decode(*raw, def), raw)
}

func (b *Binding[T]) reportError(err error) {
	if b.onError != nil {
		b.onError(err)
		return
	}
	b.logger.Error("storage operation failed", "error", err)
}

// isNil reports whether v is a nil pointer, map, slice, interface,
// channel or function. Non-nilable values are never nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// shallowEquals compares by identity: reference types by pointer,
// comparable values by ==.
func shallowEquals[T any](a, b T) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}

	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Chan,
		reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}

	if va.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}
