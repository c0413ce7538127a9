package reactive

import (
	"sync"
	"sync/atomic"
)

// Scope owns reactive primitives. Disposing a Scope disposes every watcher
// and child scope it contains and runs registered cleanups, preventing
// leaked subscriptions.
//
// Scopes form a hierarchy: a component or subsystem creates a child scope
// of its parent's scope and disposes it on teardown.
type Scope struct {
	id uint64

	// parent is nil for a root Scope.
	parent *Scope

	// children are sub-scopes.
	children   []*Scope
	childrenMu sync.Mutex

	// watchers owned by this scope.
	watchers   []*Watcher
	watchersMu sync.Mutex

	// cleanups registered via OnCleanup, run in reverse order on Dispose.
	cleanups   []func()
	cleanupsMu sync.Mutex

	// mountFns run when the scope is mounted.
	mountFns   []func()
	mountFnsMu sync.Mutex

	mounted  atomic.Bool
	disposed atomic.Bool
}

// NewScope creates a scope with the given parent, registering it as a
// child. A nil parent creates a root scope.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		id:     nextID(),
		parent: parent,
	}

	if parent != nil {
		parent.addChild(s)
	}

	return s
}

// ID returns the unique identifier for this scope.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsDisposed reports whether this scope has been disposed.
func (s *Scope) IsDisposed() bool {
	return s.disposed.Load()
}

// IsMounted reports whether Mount has been called.
func (s *Scope) IsMounted() bool {
	return s.mounted.Load()
}

func (s *Scope) addChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	s.children = append(s.children, child)
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// registerWatcher adds a watcher to this scope. The watcher is disposed
// with the scope.
func (s *Scope) registerWatcher(w *Watcher) {
	if s.disposed.Load() {
		return
	}

	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	s.watchers = append(s.watchers, w)
}

// OnCleanup registers a function to run when this scope is disposed.
// If the scope is already disposed, fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	if s.disposed.Load() {
		fn()
		return
	}

	s.cleanupsMu.Lock()
	defer s.cleanupsMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// OnMount registers a function to run when this scope is mounted.
// If the scope is already mounted, fn runs immediately.
func (s *Scope) OnMount(fn func()) {
	if s.mounted.Load() {
		fn()
		return
	}

	s.mountFnsMu.Lock()
	defer s.mountFnsMu.Unlock()
	s.mountFns = append(s.mountFns, fn)
}

// Mount marks the scope as mounted and runs registered mount functions in
// registration order. Child scopes are mounted recursively. Mounting twice
// is a no-op.
func (s *Scope) Mount() {
	if s.disposed.Load() || s.mounted.Swap(true) {
		return
	}

	s.mountFnsMu.Lock()
	fns := s.mountFns
	s.mountFns = nil
	s.mountFnsMu.Unlock()

	for _, fn := range fns {
		fn()
	}

	s.childrenMu.Lock()
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.childrenMu.Unlock()

	for _, child := range children {
		child.Mount()
	}
}

// Run executes fn with this scope as the current scope for the goroutine.
// Watchers created inside fn belong to this scope.
func (s *Scope) Run(fn func()) {
	WithScope(s, fn)
}

// Dispose disposes this scope, its children (in reverse creation order),
// its watchers, and runs cleanups in reverse order. After disposal the
// scope cannot be reused.
func (s *Scope) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.childrenMu.Lock()
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	s.watchersMu.Lock()
	watchers := s.watchers
	s.watchers = nil
	s.watchersMu.Unlock()

	for _, w := range watchers {
		w.Dispose()
	}

	s.cleanupsMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
