package store

import (
	"context"
	"strings"
	"sync"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
)

type record struct {
	owner   string
	data    []byte
	summary Summary
}

// Memory keeps everything in process. It backs the playground and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]record
	users   map[string]User
	emails  map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]record),
		users:   make(map[string]User),
		emails:  make(map[string]string),
	}
}

func (m *Memory) List(ctx context.Context, owner string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0)
	for _, r := range m.records {
		if r.owner == owner {
			out = append(out, r.summary)
		}
	}
	SortRecent(out)
	return out, nil
}

func (m *Memory) Load(ctx context.Context, owner, id string) (*document.Presentation, error) {
	m.mu.RLock()
	r, ok := m.records[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if r.owner != owner {
		return nil, ErrForbidden
	}
	return Decode(r.data)
}

func (m *Memory) Save(ctx context.Context, owner string, pres *document.Presentation) error {
	data, err := Encode(owner, pres)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[pres.ID]; ok && r.owner != owner {
		return ErrForbidden
	}
	m.records[pres.ID] = record{owner: owner, data: data, summary: Summarize(pres)}
	return nil
}

func (m *Memory) Delete(ctx context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if r.owner != owner {
		return ErrForbidden
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) CreateUser(ctx context.Context, u User) (*User, error) {
	key := strings.ToLower(u.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.emails[key]; taken {
		return nil, ErrEmailTaken
	}
	m.users[u.ID] = u
	m.emails[key] = u.ID
	return &u, nil
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNoUser
	}
	u := m.users[id]
	return &u, nil
}

func (m *Memory) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNoUser
	}
	return &u, nil
}
