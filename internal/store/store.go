// Package store persists presentations and the users who own them.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
)

var (
	ErrNotFound   = errors.New("presentation not found")
	ErrForbidden  = errors.New("forbidden")
	ErrEmailTaken = errors.New("email already registered")
	ErrNoUser     = errors.New("user not found")
)

// Store is the document persistence boundary. Every call is scoped to an
// owner; touching another owner's presentation yields ErrForbidden.
type Store interface {
	List(ctx context.Context, owner string) ([]Summary, error)
	Load(ctx context.Context, owner, id string) (*document.Presentation, error)
	Save(ctx context.Context, owner string, pres *document.Presentation) error
	Delete(ctx context.Context, owner, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u User) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the dashboard view of a presentation.
type Summary struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Kind         document.Kind `json:"type"`
	ThumbnailURL string        `json:"thumbnailUrl,omitempty"`
	SlideCount   int           `json:"slideCount"`
	LastModified int64         `json:"lastModified"`
}

func Summarize(p *document.Presentation) Summary {
	return Summary{
		ID:           p.ID,
		Title:        p.Title,
		Kind:         p.Kind,
		ThumbnailURL: p.ThumbnailURL,
		SlideCount:   len(p.Slides),
		LastModified: p.LastModified,
	}
}

// SortRecent orders summaries most recently modified first.
func SortRecent(list []Summary) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LastModified > list[j].LastModified
	})
}

// Encode prepares a presentation for storage under owner. It is the document
// column codec shared by every backend.
func Encode(owner string, pres *document.Presentation) ([]byte, error) {
	if pres.ID == "" {
		return nil, errors.New("presentation has no id")
	}
	if err := pres.Validate(); err != nil {
		return nil, err
	}
	cp := *pres
	cp.OwnerID = owner
	data, err := json.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("marshal presentation: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (*document.Presentation, error) {
	var pres document.Presentation
	if err := json.Unmarshal(data, &pres); err != nil {
		return nil, fmt.Errorf("unmarshal presentation: %w", err)
	}
	return &pres, nil
}
