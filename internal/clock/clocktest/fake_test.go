package clocktest

import (
	"testing"
	"time"
)

func TestAdvanceFiresInOrder(t *testing.T) {
	c := New(time.Unix(0, 0))
	var got []int
	c.AfterFunc(2*time.Second, func() { got = append(got, 2) })
	c.AfterFunc(time.Second, func() { got = append(got, 1) })
	c.AfterFunc(5*time.Second, func() { got = append(got, 5) })

	c.Advance(3 * time.Second)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("fired = %v", got)
	}
	if c.Pending() != 1 {
		t.Fatalf("pending = %d", c.Pending())
	}
	if !c.Now().Equal(time.Unix(3, 0)) {
		t.Fatalf("now = %v", c.Now())
	}
}

func TestStop(t *testing.T) {
	c := New(time.Unix(0, 0))
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatal("Stop on pending timer returned false")
	}
	if tm.Stop() {
		t.Fatal("second Stop returned true")
	}
	c.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestChainedTimersInsideWindow(t *testing.T) {
	c := New(time.Unix(0, 0))
	var at []time.Time
	c.AfterFunc(time.Second, func() {
		at = append(at, c.Now())
		c.AfterFunc(time.Second, func() { at = append(at, c.Now()) })
	})
	c.Advance(5 * time.Second)
	if len(at) != 2 || !at[1].Equal(time.Unix(2, 0)) {
		t.Fatalf("fired at %v", at)
	}
}

func TestBlockUntil(t *testing.T) {
	c := New(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		c.BlockUntil(1)
		close(done)
	}()
	c.AfterFunc(time.Second, func() {})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BlockUntil did not return")
	}
}
