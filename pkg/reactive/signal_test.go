package reactive

import (
	"sync"
	"sync/atomic"
	"testing"
)

// testListener counts MarkDirty notifications.
type testListener struct {
	id    uint64
	dirty atomic.Int64
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() { l.dirty.Add(1) }
func (l *testListener) ID() uint64 { return l.id }

func (l *testListener) dirtyCount() int {
	return int(l.dirty.Load())
}

func TestSignalBasic(t *testing.T) {
	count := NewSignal(0)

	if count.Get() != 0 {
		t.Errorf("expected initial value 0, got %d", count.Get())
	}

	count.Set(5)
	if count.Get() != 5 {
		t.Errorf("expected value 5, got %d", count.Get())
	}

	count.Update(func(n int) int { return n * 2 })
	if count.Get() != 10 {
		t.Errorf("expected value 10, got %d", count.Get())
	}
}

func TestSignalPeekDoesNotSubscribe(t *testing.T) {
	count := NewSignal(42)

	listener := newTestListener()
	WithListener(listener, func() {
		if count.Peek() != 42 {
			t.Errorf("expected 42, got %d", count.Peek())
		}
	})

	count.Set(100)
	if listener.dirtyCount() != 0 {
		t.Errorf("Peek should not subscribe listener, got %d notifications", listener.dirtyCount())
	}
}

func TestSignalSubscription(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = count.Get()
	})

	count.Set(1)
	if listener.dirtyCount() != 1 {
		t.Errorf("expected 1 notification, got %d", listener.dirtyCount())
	}

	// Same value should not notify
	count.Set(1)
	if listener.dirtyCount() != 1 {
		t.Errorf("same value should not notify, got %d", listener.dirtyCount())
	}

	count.Set(2)
	if listener.dirtyCount() != 2 {
		t.Errorf("expected 2 notifications, got %d", listener.dirtyCount())
	}
}

func TestSignalNoTrackingOutsideContext(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	_ = count.Get()

	WithListener(listener, func() {
		// No read here
	})

	count.Set(1)
	if listener.dirtyCount() != 0 {
		t.Errorf("expected 0 notifications when not tracking, got %d", listener.dirtyCount())
	}
}

func TestSignalUntracked(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		Untracked(func() {
			_ = count.Get()
		})
	})

	count.Set(1)
	if listener.dirtyCount() != 0 {
		t.Errorf("Untracked read should not subscribe, got %d notifications", listener.dirtyCount())
	}
}

func TestSignalTouch(t *testing.T) {
	items := NewSignal(map[string]int{"a": 1})
	listener := newTestListener()

	WithListener(listener, func() {
		_ = items.Get()
	})

	// In-place mutation does not go through Set; Touch forces notification.
	items.Peek()["b"] = 2
	items.Touch()

	if listener.dirtyCount() != 1 {
		t.Errorf("expected 1 notification after Touch, got %d", listener.dirtyCount())
	}
}

func TestSignalWithEquals(t *testing.T) {
	// Treat all even numbers as equal.
	s := NewSignal(2).WithEquals(func(a, b int) bool {
		return a%2 == b%2
	})
	listener := newTestListener()

	WithListener(listener, func() {
		_ = s.Get()
	})

	s.Set(4) // Even, considered equal
	if listener.dirtyCount() != 0 {
		t.Errorf("custom equality should suppress notification, got %d", listener.dirtyCount())
	}

	s.Set(3) // Odd, changed
	if listener.dirtyCount() != 1 {
		t.Errorf("expected 1 notification, got %d", listener.dirtyCount())
	}
}

func TestSignalDeepEqualFallback(t *testing.T) {
	s := NewSignal([]int{1, 2})
	listener := newTestListener()

	WithListener(listener, func() {
		_ = s.Get()
	})

	// Equal slice contents: no notification.
	s.Set([]int{1, 2})
	if listener.dirtyCount() != 0 {
		t.Errorf("deep-equal value should not notify, got %d", listener.dirtyCount())
	}

	s.Set([]int{1, 2, 3})
	if listener.dirtyCount() != 1 {
		t.Errorf("expected 1 notification, got %d", listener.dirtyCount())
	}
}

func TestSignalConcurrentAccess(t *testing.T) {
	count := NewSignal(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				count.Update(func(n int) int { return n + 1 })
			}
		}()
	}
	wg.Wait()

	if count.Get() != 1000 {
		t.Errorf("expected 1000 after concurrent updates, got %d", count.Get())
	}
}
