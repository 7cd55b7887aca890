package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when Advance is called. Expired
// callbacks run synchronously inside Advance in deadline order, so a
// callback must not call Advance itself.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	fn       func()
	done     bool
}

func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.changed = sync.NewCond(&f.mu)
	return f
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, deadline: f.now.Add(d), fn: fn}
	f.pending = append(f.pending, t)
	f.changed.Broadcast()
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.clock.prune()
	return true
}

// Advance moves time forward by d and fires every timer that came due,
// including timers scheduled by the callbacks it fires.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	target := f.now
	f.mu.Unlock()

	for {
		due := f.collect(target)
		if len(due) == 0 {
			return
		}
		for _, t := range due {
			t.fn()
		}
	}
}

func (f *Fake) collect(target time.Time) []*fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*fakeTimer
	for _, t := range f.pending {
		if !t.done && !t.deadline.After(target) {
			t.done = true
			due = append(due, t)
		}
	}
	f.prune()
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	return due
}

// prune drops finished timers. Callers hold f.mu.
func (f *Fake) prune() {
	live := f.pending[:0]
	for _, t := range f.pending {
		if !t.done {
			live = append(live, t)
		}
	}
	f.pending = live
	f.changed.Broadcast()
}

// WaitForTimers blocks until at least n timers are pending. It closes the
// race between a goroutine scheduling a timer and the test advancing time.
func (f *Fake) WaitForTimers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.pending) < n {
		f.changed.Wait()
	}
}

func (f *Fake) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
