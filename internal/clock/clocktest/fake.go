package clocktest

import (
	"sort"
	"sync"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/clock"
)

// Fake is a manually advanced clock. Timers fire synchronously, in deadline
// order, on the goroutine calling Advance.
type Fake struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	seq     int
	pending []*timer
}

var _ clock.Clock = (*Fake)(nil)

// New returns a fake clock reading start.
func New(start time.Time) *Fake {
	f := &Fake{now: start}
	f.cond = sync.NewCond(&f.mu)
	return f
}

type timer struct {
	f    *Fake
	when time.Time
	seq  int
	fn   func()
}

func (t *timer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	for i, p := range t.f.pending {
		if p == t {
			t.f.pending = append(t.f.pending[:i], t.f.pending[i+1:]...)
			t.f.cond.Broadcast()
			return true
		}
	}
	return false
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) clock.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &timer{f: f, when: f.now.Add(d), seq: f.seq, fn: fn}
	f.pending = append(f.pending, t)
	f.cond.Broadcast()
	return t
}

// Advance moves the clock forward by d and runs every timer that became due.
// Timers armed by those callbacks fire too if they fall inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		due := f.nextDue(target)
		if due == nil {
			break
		}
		f.now = due.when
		f.mu.Unlock()
		due.fn()
		f.mu.Lock()
	}
	f.now = target
	f.mu.Unlock()
}

// nextDue removes and returns the earliest timer at or before target.
func (f *Fake) nextDue(target time.Time) *timer {
	if len(f.pending) == 0 {
		return nil
	}
	sort.SliceStable(f.pending, func(i, j int) bool {
		if f.pending[i].when.Equal(f.pending[j].when) {
			return f.pending[i].seq < f.pending[j].seq
		}
		return f.pending[i].when.Before(f.pending[j].when)
	})
	first := f.pending[0]
	if first.when.After(target) {
		return nil
	}
	f.pending = f.pending[1:]
	f.cond.Broadcast()
	return first
}

// Pending returns the number of armed timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// BlockUntil waits until exactly n timers are armed.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.pending) != n {
		f.cond.Wait()
	}
}
