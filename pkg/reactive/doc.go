// Package reactive provides the fine-grained reactivity runtime that the
// storage bindings build on: signals with automatic dependency tracking,
// watchers that re-run when their dependencies change, and scopes that own
// watchers and tear them down.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := reactive.NewSignal(0)
//	value := count.Get()  // read (subscribes the current listener)
//	count.Set(5)          // write (notifies subscribers)
//
// Watch runs a side effect and re-runs it when any signal it read changes:
//
//	reactive.Watch(func() reactive.Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
//
// Scope owns watchers and cleanups:
//
//	scope := reactive.NewScope(nil)
//	scope.Run(func() { ... })
//	defer scope.Dispose()
//
// # Scheduling
//
// There is no render loop: notification is synchronous. When Signal.Set
// returns, every dependent watcher has already re-run. Batch coalesces
// several writes into one notification phase.
//
// # Thread Safety
//
// All primitives are safe for concurrent use. The tracking context is
// per-goroutine; spawning goroutines requires explicit propagation via
// WithScope.
package reactive
