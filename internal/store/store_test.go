package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
	"github.com/nexusdeck/nexus/backend-go/internal/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) store.Store { return store.NewMemory() })
	storetest.TestUsers(t, func(t *testing.T) store.UserStore { return store.NewMemory() })
}

func TestFile(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) store.Store {
		s, err := store.NewFile(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestFileSkipsCorruptDocuments(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	pres := document.NewPresentation(document.KindSlideDeck, "user_a", time.Now())
	if err := s.Save(ctx, "user_a", pres); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pres_01h455vb4pex5vsknk084sn02q.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx, "user_a")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != pres.ID {
		t.Fatalf("list = %+v", list)
	}
	if _, err := os.Stat(filepath.Join(dir, pres.ID+".json.tmp")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("temp file left behind")
	}
}

func TestFileRejectsPathIDs(t *testing.T) {
	s, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background(), "user_a", "../../etc/passwd"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
