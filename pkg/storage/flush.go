package storage

import (
	"sync"
	"time"
)

// FlushPolicy controls when a binding's backend writes execute. It affects
// scheduling only: when calls are coalesced the latest value wins, and the
// observable value is already updated by the time the write is scheduled.
type FlushPolicy interface {
	newFlusher() flusher
}

// flusher is one binding's write scheduler. flush schedules fn according
// to the policy; a later flush supersedes an earlier one that has not run
// yet. flushNow runs any pending fn inline instead of waiting out the
// policy. stop cancels outstanding work.
type flusher interface {
	flush(fn func())
	flushNow()
	stop()
}

// FlushSync executes writes inline. This is the default policy.
var FlushSync FlushPolicy = syncPolicy{}

type syncPolicy struct{}

func (syncPolicy) newFlusher() flusher { return syncFlusher{} }

type syncFlusher struct{}

func (syncFlusher) flush(fn func()) { fn() }
func (syncFlusher) flushNow()       {}
func (syncFlusher) stop()           {}

// Debounce delays each write by d, restarting the delay when a new write
// arrives. Only the latest write in a burst reaches the backend.
//
// Example:
//
//	storage.Bind("query", "", storage.WithFlush(storage.Debounce(300*time.Millisecond)))
func Debounce(d time.Duration) FlushPolicy {
	return debouncePolicy{d: d}
}

type debouncePolicy struct {
	d time.Duration
}

func (p debouncePolicy) newFlusher() flusher {
	return &debounceFlusher{d: p.d}
}

type debounceFlusher struct {
	d  time.Duration
	mu sync.Mutex

	timer   *time.Timer
	pending func()
}

func (f *debounceFlusher) flush(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
	}
	f.pending = fn
	f.timer = time.AfterFunc(f.d, f.fire)
}

func (f *debounceFlusher) fire() {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	f.timer = nil
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (f *debounceFlusher) flushNow() {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (f *debounceFlusher) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = nil
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

// Throttle executes at most one write per interval d: the first write in a
// window runs immediately, further writes are coalesced into one trailing
// write at the end of the window.
func Throttle(d time.Duration) FlushPolicy {
	return throttlePolicy{d: d}
}

type throttlePolicy struct {
	d time.Duration
}

func (p throttlePolicy) newFlusher() flusher {
	return &throttleFlusher{d: p.d}
}

type throttleFlusher struct {
	d  time.Duration
	mu sync.Mutex

	last    time.Time
	timer   *time.Timer
	pending func()
	stopped bool
}

func (f *throttleFlusher) flush(fn func()) {
	f.mu.Lock()

	if f.stopped {
		f.mu.Unlock()
		return
	}

	now := time.Now()
	if f.timer == nil && now.Sub(f.last) >= f.d {
		f.last = now
		f.mu.Unlock()
		fn()
		return
	}

	f.pending = fn
	if f.timer == nil {
		f.timer = time.AfterFunc(f.d-now.Sub(f.last), f.fire)
	}
	f.mu.Unlock()
}

func (f *throttleFlusher) fire() {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	f.timer = nil
	f.last = time.Now()
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (f *throttleFlusher) flushNow() {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if fn != nil {
		f.last = time.Now()
	}
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (f *throttleFlusher) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
	f.pending = nil
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}
