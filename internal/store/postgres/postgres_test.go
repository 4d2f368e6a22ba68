package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/nexusdeck/nexus/backend-go/internal/db"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
	"github.com/nexusdeck/nexus/backend-go/internal/store/storetest"
)

// These run only against a disposable database named by NEXUS_TEST_DATABASE_URL.
func open(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("NEXUS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("NEXUS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE presentations, users`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return New(pool)
}

func TestStore(t *testing.T) {
	storetest.TestStore(t, func(t *testing.T) store.Store { return open(t) })
}

func TestUsers(t *testing.T) {
	storetest.TestUsers(t, func(t *testing.T) store.UserStore { return open(t) })
}
