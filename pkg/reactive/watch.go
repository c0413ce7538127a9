package reactive

import (
	"sync"
	"sync/atomic"
)

// Watcher is a reactive side effect that re-runs when its dependencies
// change. Watchers are created with Watch and automatically track every
// signal read during their execution.
//
// Unlike a UI framework, this runtime has no render loop to defer to:
// a dirty watcher re-runs synchronously at notification time, so by the
// time Signal.Set returns all dependent watchers have run. Batch can be
// used to coalesce several writes into one run.
type Watcher struct {
	id uint64

	// fn is the watch function.
	fn func() Cleanup

	// cleanup is the cleanup function from the last run.
	cleanup Cleanup

	// sources are the signals this watcher currently depends on.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// scope owns this watcher.
	scope *Scope

	// running guards against reentrant runs; pending records a
	// notification that arrived during a run.
	running atomic.Bool
	pending atomic.Bool

	disposed atomic.Bool
}

// MarkDirty re-runs the watcher. Implements Listener.
// If called while the watcher is already running (a write inside its own
// body), the re-run happens after the current run completes.
func (w *Watcher) MarkDirty() {
	if w.disposed.Load() {
		return
	}

	w.pending.Store(true)
	if w.running.Load() {
		return
	}
	w.run()
}

// ID returns the unique identifier for this watcher. Implements Listener.
func (w *Watcher) ID() uint64 {
	return w.id
}

// run executes the watch function, looping while notifications arrived
// during execution.
func (w *Watcher) run() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	defer w.running.Store(false)

	for {
		w.pending.Store(false)

		if w.disposed.Load() {
			return
		}

		// Run cleanup from the previous run.
		if w.cleanup != nil {
			w.cleanup()
			w.cleanup = nil
		}

		// Unsubscribe from old sources; execution re-tracks from scratch.
		w.sourcesMu.Lock()
		for _, source := range w.sources {
			source.unsubscribe(w)
		}
		w.sources = w.sources[:0]
		w.sourcesMu.Unlock()

		oldListener := setCurrentListener(w)
		w.cleanup = w.fn()
		setCurrentListener(oldListener)

		if !w.pending.Load() {
			return
		}
	}
}

// addSource records a dependency. Called by signals read during a run.
func (w *Watcher) addSource(source *signalBase) {
	w.sourcesMu.Lock()
	defer w.sourcesMu.Unlock()

	for _, s := range w.sources {
		if s == source {
			return
		}
	}
	w.sources = append(w.sources, source)
}

// Dispose stops the watcher, runs its cleanup, and unsubscribes from all
// sources. A disposed watcher never runs again.
func (w *Watcher) Dispose() {
	if w.disposed.Swap(true) {
		return
	}

	if w.cleanup != nil {
		w.cleanup()
		w.cleanup = nil
	}

	w.sourcesMu.Lock()
	for _, source := range w.sources {
		source.unsubscribe(w)
	}
	w.sources = nil
	w.sourcesMu.Unlock()
}

// Watch creates a watcher within the current scope and runs it immediately.
// The function re-runs whenever any signal it read changes. A returned
// Cleanup is called before each re-run and on disposal.
//
// Example:
//
//	Watch(func() Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
func Watch(fn func() Cleanup) *Watcher {
	w := &Watcher{
		id:    nextID(),
		fn:    fn,
		scope: getCurrentScope(),
	}

	if w.scope != nil {
		w.scope.registerWatcher(w)
	}

	w.run()
	return w
}

// OnCleanup registers fn to run when the current scope is disposed.
// If no scope is active, fn is never called.
func OnCleanup(fn func()) {
	if scope := getCurrentScope(); scope != nil {
		scope.OnCleanup(fn)
	}
}

// OnMount registers fn to run when the current scope is mounted.
// If the scope is already mounted, or no scope is active, fn runs
// immediately.
func OnMount(fn func()) {
	scope := getCurrentScope()
	if scope == nil {
		fn()
		return
	}
	scope.OnMount(fn)
}
