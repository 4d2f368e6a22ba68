// Package sqlite implements the store interfaces on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

type Store struct {
	db *sql.DB
}

// Open creates the database file and its tables if needed. Use ":memory:"
// for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_foreign_keys=1&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS presentations (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		kind TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		slide_count INTEGER NOT NULL,
		last_modified INTEGER NOT NULL,
		document TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_presentations_owner ON presentations(owner_id)`,
}

func (s *Store) List(ctx context.Context, owner string) ([]store.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, kind, thumbnail_url, slide_count, last_modified
		FROM presentations
		WHERE owner_id = ?
		ORDER BY last_modified DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	defer rows.Close()

	out := make([]store.Summary, 0)
	for rows.Next() {
		var sum store.Summary
		var kind string
		if err := rows.Scan(&sum.ID, &sum.Title, &kind, &sum.ThumbnailURL, &sum.SlideCount, &sum.LastModified); err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		sum.Kind = document.Kind(kind)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	return out, nil
}

func (s *Store) Load(ctx context.Context, owner, id string) (*document.Presentation, error) {
	var ownerID, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, document FROM presentations WHERE id = ?`, id,
	).Scan(&ownerID, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get presentation: %w", err)
	}
	if ownerID != owner {
		return nil, store.ErrForbidden
	}
	return store.Decode([]byte(data))
}

func (s *Store) Save(ctx context.Context, owner string, pres *document.Presentation) error {
	data, err := store.Encode(owner, pres)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO presentations (id, owner_id, title, kind, thumbnail_url, slide_count, last_modified, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			kind = excluded.kind,
			thumbnail_url = excluded.thumbnail_url,
			slide_count = excluded.slide_count,
			last_modified = excluded.last_modified,
			document = excluded.document
		WHERE presentations.owner_id = excluded.owner_id`,
		pres.ID, owner, pres.Title, string(pres.Kind), pres.ThumbnailURL,
		len(pres.Slides), pres.LastModified, string(data),
	)
	if err != nil {
		return fmt.Errorf("save presentation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrForbidden
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, owner, id string) error {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM presentations WHERE id = ?`, id,
	).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("get presentation: %w", err)
	}
	if ownerID != owner {
		return store.ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM presentations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete presentation: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u store.User) (*store.User, error) {
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.user(ctx, `WHERE email = ?`, strings.ToLower(email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*store.User, error) {
	return s.user(ctx, `WHERE id = ?`, id)
}

func (s *Store) user(ctx context.Context, where, arg string) (*store.User, error) {
	var u store.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password, display_name, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoUser
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
