// Package session owns one open presentation: the editor working on it and
// the auto-saver writing it back to the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nexusdeck/nexus/backend-go/internal/autosave"
	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/engine"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

var ErrClosed = errors.New("session closed")

// Session is created by Open and must be released with Close. The editor it
// hands out is not safe for concurrent use.
type Session struct {
	id     string
	owner  string
	store  store.Store
	editor *engine.Editor
	saver  *autosave.Saver

	mu     sync.Mutex
	closed bool
}

// Open loads presentation id for owner and starts editing it.
func Open(ctx context.Context, st store.Store, owner, id string, clk clock.Clock, cfg autosave.Config) (*Session, error) {
	pres, err := st.Load(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("load presentation: %w", err)
	}
	return New(st, owner, pres, clk, cfg), nil
}

// New starts a session over an already loaded presentation.
func New(st store.Store, owner string, pres *document.Presentation, clk clock.Clock, cfg autosave.Config) *Session {
	if clk == nil {
		clk = clock.Real()
	}
	s := &Session{id: pres.ID, owner: owner, store: st}
	s.saver = autosave.New(clk, s.write, cfg)
	s.editor = engine.NewEditor(pres, clk)
	s.editor.OnChange(s.saver.Notify)
	return s
}

func (s *Session) write(ctx context.Context, pres *document.Presentation) error {
	return s.store.Save(ctx, s.owner, pres)
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Owner() string { return s.owner }

func (s *Session) Editor() *engine.Editor { return s.editor }

// Status reports the auto-save state.
func (s *Session) Status() autosave.Status { return s.saver.Status() }

// Save writes pres right away, replacing any snapshot still waiting for the
// debounce, and returns the store's error.
func (s *Session) Save(ctx context.Context, pres *document.Presentation) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.saver.Notify(pres)
	return s.saver.SaveNow(ctx)
}

// Close flushes pending changes. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.saver.Close(ctx); err != nil {
		slog.Error("flush on close", "id", s.id, "error", err)
		return fmt.Errorf("flush presentation: %w", err)
	}
	return nil
}
