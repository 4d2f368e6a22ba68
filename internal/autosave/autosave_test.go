package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/clock/clocktest"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
)

type recorder struct {
	mu       sync.Mutex
	saved    []string
	failNext int
	statuses []Status
}

func (r *recorder) save(ctx context.Context, p *document.Presentation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return errors.New("disk full")
	}
	r.saved = append(r.saved, p.Title)
	return nil
}

func (r *recorder) onStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.saved...)
}

func setup(t *testing.T) (*Saver, *recorder, *clocktest.Fake, *document.Presentation) {
	t.Helper()
	clk := clocktest.New(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := &recorder{}
	s := New(clk, rec.save, Config{OnStatus: rec.onStatus})
	return s, rec, clk, document.NewPresentation(document.KindSlideDeck, "user_1", clk.Now())
}

func TestDebounceSavesLatestOnce(t *testing.T) {
	s, rec, clk, pres := setup(t)

	s.Notify(pres.WithTitle("a", clk.Now()))
	clk.Advance(time.Second)
	s.Notify(pres.WithTitle("b", clk.Now()))
	clk.Advance(500 * time.Millisecond)
	s.Notify(pres.WithTitle("c", clk.Now()))

	clk.Advance(2*time.Second - time.Millisecond)
	if got := rec.titles(); len(got) != 0 {
		t.Fatalf("saved early: %v", got)
	}
	if s.Status() != StatusUnsaved {
		t.Fatalf("status = %v", s.Status())
	}

	clk.Advance(time.Millisecond)
	if got := rec.titles(); len(got) != 1 || got[0] != "c" {
		t.Fatalf("saved = %v, want [c]", got)
	}
	if s.Status() != StatusSaved {
		t.Fatalf("status = %v", s.Status())
	}
	want := []Status{StatusUnsaved, StatusSaving, StatusSaved}
	if len(rec.statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", rec.statuses, want)
	}
	for i := range want {
		if rec.statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", rec.statuses, want)
		}
	}
}

func TestFailedSaveRetriesNextCycle(t *testing.T) {
	s, rec, clk, pres := setup(t)
	rec.failNext = 1

	s.Notify(pres)
	clk.Advance(DefaultDelay)
	if s.Status() != StatusUnsaved {
		t.Fatalf("status after failure = %v", s.Status())
	}
	if clk.Pending() != 1 {
		t.Fatal("no retry armed")
	}

	clk.Advance(DefaultDelay)
	if got := rec.titles(); len(got) != 1 {
		t.Fatalf("saved = %v", got)
	}
	if s.Status() != StatusSaved || clk.Pending() != 0 {
		t.Fatalf("status = %v pending = %d", s.Status(), clk.Pending())
	}
}

func TestSaveNowReportsError(t *testing.T) {
	s, rec, _, pres := setup(t)
	ctx := context.Background()

	if err := s.SaveNow(ctx); err != nil {
		t.Fatalf("nothing pending: %v", err)
	}

	rec.failNext = 1
	s.Notify(pres)
	if err := s.SaveNow(ctx); err == nil {
		t.Fatal("expected error from manual save")
	}
	if s.Status() != StatusUnsaved {
		t.Fatalf("status = %v", s.Status())
	}
	if err := s.SaveNow(ctx); err != nil {
		t.Fatalf("second manual save: %v", err)
	}
	if got := rec.titles(); len(got) != 1 {
		t.Fatalf("saved = %v", got)
	}
}

func TestCloseFlushes(t *testing.T) {
	s, rec, clk, pres := setup(t)
	ctx := context.Background()

	s.Notify(pres)
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if got := rec.titles(); len(got) != 1 {
		t.Fatalf("saved = %v", got)
	}
	if clk.Pending() != 0 {
		t.Fatal("timer left armed after close")
	}

	s.Notify(pres)
	clk.Advance(time.Minute)
	if got := rec.titles(); len(got) != 1 {
		t.Fatalf("saved after close: %v", got)
	}
	if err := s.SaveNow(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("SaveNow after close: %v", err)
	}
}
