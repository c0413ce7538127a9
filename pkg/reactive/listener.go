package reactive

// Listener is anything that can be notified when a dependency changes.
// It is implemented by watchers and by test doubles that observe signals.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	// For watchers this re-runs the watch function.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication during batch processing.
	ID() uint64
}

// Cleanup is a function returned by watch functions to release resources.
// It is called before the watcher re-runs and when the watcher is disposed.
type Cleanup func()
