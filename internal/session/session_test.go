package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/autosave"
	"github.com/nexusdeck/nexus/backend-go/internal/clock/clocktest"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

func seed(t *testing.T) (*store.Memory, *clocktest.Fake, *document.Presentation) {
	t.Helper()
	clk := clocktest.New(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemory()
	pres := document.NewPresentation(document.KindSlideDeck, "user_a", clk.Now())
	if err := st.Save(context.Background(), "user_a", pres); err != nil {
		t.Fatal(err)
	}
	return st, clk, pres
}

func title(t *testing.T, st store.Store, owner, id string) string {
	t.Helper()
	p, err := st.Load(context.Background(), owner, id)
	if err != nil {
		t.Fatal(err)
	}
	return p.Title
}

func TestEditsAreAutoSaved(t *testing.T) {
	ctx := context.Background()
	st, clk, pres := seed(t)

	s, err := Open(ctx, st, "user_a", pres.ID, clk, autosave.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if s.ID() != pres.ID || s.Owner() != "user_a" {
		t.Fatalf("session = %s/%s", s.ID(), s.Owner())
	}
	if err := s.Editor().SetTitle("Quarterly"); err != nil {
		t.Fatal(err)
	}
	if s.Status() != autosave.StatusUnsaved {
		t.Fatalf("status = %v", s.Status())
	}
	if got := title(t, st, "user_a", pres.ID); got == "Quarterly" {
		t.Fatal("saved before the debounce elapsed")
	}

	clk.Advance(autosave.DefaultDelay)
	if got := title(t, st, "user_a", pres.ID); got != "Quarterly" {
		t.Fatalf("title = %q", got)
	}
	if s.Status() != autosave.StatusSaved {
		t.Fatalf("status = %v", s.Status())
	}
}

func TestManualSaveAndClose(t *testing.T) {
	ctx := context.Background()
	st, clk, pres := seed(t)
	s, err := Open(ctx, st, "user_a", pres.ID, clk, autosave.Config{})
	if err != nil {
		t.Fatal(err)
	}
	ed := s.Editor()

	if err := ed.SetTitle("Manual"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, ed.Presentation()); err != nil {
		t.Fatal(err)
	}
	if got := title(t, st, "user_a", pres.ID); got != "Manual" {
		t.Fatalf("title = %q", got)
	}

	if err := ed.SetTitle("Flushed"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if got := title(t, st, "user_a", pres.ID); got != "Flushed" {
		t.Fatalf("title after close = %q", got)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := s.Save(ctx, ed.Presentation()); !errors.Is(err, ErrClosed) {
		t.Fatalf("save after close = %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	st, clk, pres := seed(t)
	tests := []struct {
		name  string
		owner string
		id    string
		want  error
	}{
		{"missing", "user_a", "pres_01h455vb4pex5vsknk084sn02q", store.ErrNotFound},
		{"other owner", "user_b", pres.ID, store.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), st, tt.owner, tt.id, clk, autosave.Config{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
