// Package postgres implements the store interfaces on a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) List(ctx context.Context, owner string) ([]store.Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, kind, thumbnail_url, slide_count, last_modified
		FROM presentations
		WHERE owner_id = $1
		ORDER BY last_modified DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	defer rows.Close()

	out := make([]store.Summary, 0)
	for rows.Next() {
		var sum store.Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Kind, &sum.ThumbnailURL, &sum.SlideCount, &sum.LastModified); err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	return out, nil
}

func (s *Store) Load(ctx context.Context, owner, id string) (*document.Presentation, error) {
	var ownerID string
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id, document FROM presentations WHERE id = $1`, id,
	).Scan(&ownerID, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get presentation: %w", err)
	}
	if ownerID != owner {
		return nil, store.ErrForbidden
	}
	return store.Decode(data)
}

func (s *Store) Save(ctx context.Context, owner string, pres *document.Presentation) error {
	data, err := store.Encode(owner, pres)
	if err != nil {
		return err
	}

	// The conditional update leaves a row owned by someone else untouched.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO presentations (id, owner_id, title, kind, thumbnail_url, slide_count, last_modified, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			kind = EXCLUDED.kind,
			thumbnail_url = EXCLUDED.thumbnail_url,
			slide_count = EXCLUDED.slide_count,
			last_modified = EXCLUDED.last_modified,
			document = EXCLUDED.document
		WHERE presentations.owner_id = EXCLUDED.owner_id`,
		pres.ID, owner, pres.Title, string(pres.Kind), pres.ThumbnailURL,
		len(pres.Slides), pres.LastModified, data,
	)
	if err != nil {
		return fmt.Errorf("save presentation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrForbidden
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, owner, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM presentations WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete presentation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM presentations WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check presentation: %w", err)
	}
	if exists {
		return store.ErrForbidden
	}
	return store.ErrNotFound
}

func (s *Store) CreateUser(ctx context.Context, u store.User) (*store.User, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.DisplayName,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, store.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.user(ctx, `WHERE email = $1`, strings.ToLower(email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*store.User, error) {
	return s.user(ctx, `WHERE id = $1`, id)
}

func (s *Store) user(ctx context.Context, where string, arg string) (*store.User, error) {
	var u store.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password, display_name, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNoUser
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
