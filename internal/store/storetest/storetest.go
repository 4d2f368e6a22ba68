// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

// TestStore runs the presentation contract against a fresh store per case.
// Owners are created through users when the backend is also a UserStore.
func TestStore(t *testing.T, open func(t *testing.T) store.Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	owners := func(t *testing.T, s store.Store) (string, string) {
		alice, bob := typeid.NewUserID(), typeid.NewUserID()
		if us, ok := s.(store.UserStore); ok {
			for i, id := range []string{alice, bob} {
				_, err := us.CreateUser(ctx, store.User{
					ID: id, Email: []string{"alice@example.com", "bob@example.com"}[i], PasswordHash: "x",
				})
				if err != nil {
					t.Fatalf("create user: %v", err)
				}
			}
		}
		return alice, bob
	}

	t.Run("save and load", func(t *testing.T) {
		s := open(t)
		alice, _ := owners(t, s)
		pres := document.NewPresentation(document.KindSlideDeck, alice, now)

		if err := s.Save(ctx, alice, pres); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.Load(ctx, alice, pres.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.Title != pres.Title || len(got.Slides) != 1 || got.OwnerID != alice {
			t.Fatalf("loaded %+v", got)
		}
		if got.Slides[0].Elements[0].Content != pres.Slides[0].Elements[0].Content {
			t.Fatal("element content lost")
		}
	})

	t.Run("other owner is forbidden", func(t *testing.T) {
		s := open(t)
		alice, bob := owners(t, s)
		pres := document.NewPresentation(document.KindWebsite, alice, now)
		if err := s.Save(ctx, alice, pres); err != nil {
			t.Fatalf("save: %v", err)
		}

		if _, err := s.Load(ctx, bob, pres.ID); !errors.Is(err, store.ErrForbidden) {
			t.Errorf("load by other owner: %v", err)
		}
		if err := s.Save(ctx, bob, pres); !errors.Is(err, store.ErrForbidden) {
			t.Errorf("save by other owner: %v", err)
		}
		if err := s.Delete(ctx, bob, pres.ID); !errors.Is(err, store.ErrForbidden) {
			t.Errorf("delete by other owner: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		s := open(t)
		alice, _ := owners(t, s)
		id := typeid.NewPresentationID()
		if _, err := s.Load(ctx, alice, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("load: %v", err)
		}
		if err := s.Delete(ctx, alice, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("delete: %v", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		s := open(t)
		alice, bob := owners(t, s)
		older := document.NewPresentation(document.KindSlideDeck, alice, now)
		newer := document.NewPresentation(document.KindSlideDeck, alice, now.Add(time.Hour))
		foreign := document.NewPresentation(document.KindSlideDeck, bob, now)
		for _, p := range []*document.Presentation{older, newer} {
			if err := s.Save(ctx, alice, p); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
		if err := s.Save(ctx, bob, foreign); err != nil {
			t.Fatalf("save: %v", err)
		}

		list, err := s.List(ctx, alice)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
			t.Fatalf("list = %+v", list)
		}
		if list[0].SlideCount != 1 {
			t.Errorf("slide count = %d", list[0].SlideCount)
		}
	})

	t.Run("update then delete", func(t *testing.T) {
		s := open(t)
		alice, _ := owners(t, s)
		pres := document.NewPresentation(document.KindSlideDeck, alice, now)
		if err := s.Save(ctx, alice, pres); err != nil {
			t.Fatalf("save: %v", err)
		}
		renamed := pres.WithTitle("Quarterly", now.Add(time.Minute))
		if err := s.Save(ctx, alice, renamed); err != nil {
			t.Fatalf("resave: %v", err)
		}
		got, err := s.Load(ctx, alice, pres.ID)
		if err != nil || got.Title != "Quarterly" {
			t.Fatalf("load after update: %v %+v", err, got)
		}

		if err := s.Delete(ctx, alice, pres.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.Load(ctx, alice, pres.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("load after delete: %v", err)
		}
	})

	t.Run("invalid document rejected", func(t *testing.T) {
		s := open(t)
		alice, _ := owners(t, s)
		pres := document.NewPresentation(document.KindSlideDeck, alice, now)
		pres.Slides = nil
		if err := s.Save(ctx, alice, pres); err == nil {
			t.Fatal("saved a presentation with no slides")
		}
	})
}

// TestUsers runs the user contract.
func TestUsers(t *testing.T, open func(t *testing.T) store.UserStore) {
	ctx := context.Background()
	s := open(t)

	u := store.User{ID: typeid.NewUserID(), Email: "Ada@Example.com", DisplayName: "Ada", PasswordHash: "hash"}
	if _, err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name  string
		email string
		want  error
	}{
		{"exact", "Ada@Example.com", store.ErrEmailTaken},
		{"case folded", "ada@example.com", store.ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateUser(ctx, store.User{ID: typeid.NewUserID(), Email: tt.email, PasswordHash: "x"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	byEmail, err := s.UserByEmail(ctx, "ADA@example.com")
	if err != nil || byEmail.ID != u.ID || byEmail.PasswordHash != "hash" {
		t.Fatalf("by email: %v %+v", err, byEmail)
	}
	byID, err := s.UserByID(ctx, u.ID)
	if err != nil || byID.DisplayName != "Ada" {
		t.Fatalf("by id: %v %+v", err, byID)
	}
	if _, err := s.UserByID(ctx, typeid.NewUserID()); !errors.Is(err, store.ErrNoUser) {
		t.Fatalf("missing user: %v", err)
	}
}
