package reactive

import "testing"

func TestWatchRunsOnCreate(t *testing.T) {
	scope := NewScope(nil)
	defer scope.Dispose()

	ran := false
	scope.Run(func() {
		Watch(func() Cleanup {
			ran = true
			return nil
		})
	})

	if !ran {
		t.Error("watcher should run immediately on creation")
	}
}

func TestWatchTracksDependencies(t *testing.T) {
	scope := NewScope(nil)
	defer scope.Dispose()

	count := NewSignal(0)
	runCount := 0

	scope.Run(func() {
		Watch(func() Cleanup {
			_ = count.Get()
			runCount++
			return nil
		})
	})

	if runCount != 1 {
		t.Errorf("expected 1 run, got %d", runCount)
	}

	// Notification is synchronous: the watcher has re-run when Set returns.
	count.Set(1)
	if runCount != 2 {
		t.Errorf("expected 2 runs after signal change, got %d", runCount)
	}

	count.Set(1)
	if runCount != 2 {
		t.Errorf("same value should not re-run, got %d runs", runCount)
	}
}

func TestWatchCleanupBeforeRerunAndOnDispose(t *testing.T) {
	scope := NewScope(nil)

	count := NewSignal(0)
	cleanups := 0

	scope.Run(func() {
		Watch(func() Cleanup {
			_ = count.Get()
			return func() { cleanups++ }
		})
	})

	if cleanups != 0 {
		t.Errorf("cleanup should not run on first run, got %d", cleanups)
	}

	count.Set(1)
	if cleanups != 1 {
		t.Errorf("cleanup should run before re-run, got %d", cleanups)
	}

	scope.Dispose()
	if cleanups != 2 {
		t.Errorf("cleanup should run on dispose, got %d", cleanups)
	}

	// Disposed watchers stay quiet.
	count.Set(2)
	if cleanups != 2 {
		t.Errorf("disposed watcher should not run, got %d cleanups", cleanups)
	}
}

func TestWatchRetracksDependencies(t *testing.T) {
	scope := NewScope(nil)
	defer scope.Dispose()

	useFirst := NewSignal(true)
	first := NewSignal("a")
	second := NewSignal("b")
	runCount := 0

	scope.Run(func() {
		Watch(func() Cleanup {
			runCount++
			if useFirst.Get() {
				_ = first.Get()
			} else {
				_ = second.Get()
			}
			return nil
		})
	})

	useFirst.Set(false) // run 2, now tracking second

	second.Set("c") // run 3
	if runCount != 3 {
		t.Errorf("expected 3 runs, got %d", runCount)
	}

	// first is no longer a dependency.
	first.Set("x")
	if runCount != 3 {
		t.Errorf("stale dependency should not re-run watcher, got %d runs", runCount)
	}
}

func TestWatchWriteInsideBody(t *testing.T) {
	scope := NewScope(nil)
	defer scope.Dispose()

	source := NewSignal(0)
	derived := NewSignal(0)
	runCount := 0

	scope.Run(func() {
		Watch(func() Cleanup {
			runCount++
			derived.Set(source.Get() * 2)
			return nil
		})
	})

	source.Set(3)
	if derived.Peek() != 6 {
		t.Errorf("expected derived 6, got %d", derived.Peek())
	}
	if runCount != 2 {
		t.Errorf("expected 2 runs, got %d", runCount)
	}
}

func TestWatchDisposeDirectly(t *testing.T) {
	count := NewSignal(0)
	runCount := 0

	w := Watch(func() Cleanup {
		_ = count.Get()
		runCount++
		return nil
	})

	count.Set(1)
	if runCount != 2 {
		t.Errorf("expected 2 runs, got %d", runCount)
	}

	w.Dispose()
	count.Set(2)
	if runCount != 2 {
		t.Errorf("disposed watcher should not run, got %d runs", runCount)
	}
}

func TestBatchCoalescesNotifications(t *testing.T) {
	scope := NewScope(nil)
	defer scope.Dispose()

	a := NewSignal(0)
	b := NewSignal(0)
	runCount := 0

	scope.Run(func() {
		Watch(func() Cleanup {
			_ = a.Get()
			_ = b.Get()
			runCount++
			return nil
		})
	})

	Batch(func() {
		a.Set(1)
		b.Set(2)
	})

	if runCount != 2 {
		t.Errorf("expected 1 re-run for batched writes, got %d total runs", runCount)
	}
	if a.Peek() != 1 || b.Peek() != 2 {
		t.Errorf("batch should apply all writes, got a=%d b=%d", a.Peek(), b.Peek())
	}
}

func TestNestedBatch(t *testing.T) {
	a := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = a.Get()
	})

	Batch(func() {
		a.Set(1)
		Batch(func() {
			a.Set(2)
		})
		// Inner batch completion must not flush while outer is open.
		if listener.dirtyCount() != 0 {
			t.Errorf("notifications fired before outermost batch completed")
		}
	})

	if listener.dirtyCount() != 1 {
		t.Errorf("expected 1 deduplicated notification, got %d", listener.dirtyCount())
	}
}
