// Package autosave persists the latest document snapshot after edits settle.
package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
)

type Status string

const (
	StatusSaved   Status = "saved"
	StatusSaving  Status = "saving"
	StatusUnsaved Status = "unsaved"
)

const (
	DefaultDelay   = 2 * time.Second
	DefaultTimeout = 10 * time.Second
)

var ErrClosed = errors.New("saver closed")

// SaveFunc writes one snapshot.
type SaveFunc func(ctx context.Context, pres *document.Presentation) error

type Config struct {
	Delay   time.Duration
	Timeout time.Duration
	// OnStatus is called after every status change. It must not block.
	OnStatus func(Status)
}

// Saver debounces document changes into background saves. A failed save
// keeps its snapshot pending and tries again one delay later unless a newer
// change arrives first.
type Saver struct {
	clk  clock.Clock
	save SaveFunc
	cfg  Config

	// saving serializes calls to save so snapshots land in order.
	saving sync.Mutex

	mu      sync.Mutex
	pending *document.Presentation
	gen     uint64
	timer   clock.Timer
	status  Status
	closed  bool
}

func New(clk clock.Clock, save SaveFunc, cfg Config) *Saver {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Saver{clk: clk, save: save, cfg: cfg, status: StatusSaved}
}

func (s *Saver) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Notify records pres as the newest snapshot and restarts the debounce.
func (s *Saver) Notify(pres *document.Presentation) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = pres
	s.gen++
	s.arm()
	changed := s.setStatus(StatusUnsaved)
	s.mu.Unlock()
	s.emit(changed)
}

// arm must be called with mu held.
func (s *Saver) arm() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clk.AfterFunc(s.cfg.Delay, s.fire)
}

// setStatus must be called with mu held. It returns the status to report,
// or "" when nothing changed.
func (s *Saver) setStatus(st Status) Status {
	if s.status == st {
		return ""
	}
	s.status = st
	return st
}

func (s *Saver) emit(st Status) {
	if st != "" && s.cfg.OnStatus != nil {
		s.cfg.OnStatus(st)
	}
}

func (s *Saver) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.pending == nil || s.closed {
		s.mu.Unlock()
		return
	}
	snap, gen := s.pending, s.gen
	changed := s.setStatus(StatusSaving)
	s.mu.Unlock()
	s.emit(changed)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	err := s.write(ctx, snap)

	s.mu.Lock()
	switch {
	case s.gen != gen:
		// A newer change already re-armed the timer.
		changed = s.setStatus(StatusUnsaved)
	case err != nil:
		slog.Warn("auto-save failed, will retry", "id", snap.ID, "error", err)
		changed = s.setStatus(StatusUnsaved)
		if !s.closed {
			s.arm()
		}
	default:
		s.pending = nil
		changed = s.setStatus(StatusSaved)
	}
	s.mu.Unlock()
	s.emit(changed)
}

func (s *Saver) write(ctx context.Context, snap *document.Presentation) error {
	s.saving.Lock()
	defer s.saving.Unlock()
	return s.save(ctx, snap)
}

// SaveNow writes the pending snapshot immediately and reports the result.
// With nothing pending it returns nil.
func (s *Saver) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()
	return s.flush(ctx)
}

func (s *Saver) flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending == nil {
		s.mu.Unlock()
		return nil
	}
	snap, gen := s.pending, s.gen
	changed := s.setStatus(StatusSaving)
	s.mu.Unlock()
	s.emit(changed)

	err := s.write(ctx, snap)

	s.mu.Lock()
	switch {
	case err != nil:
		changed = s.setStatus(StatusUnsaved)
		if !s.closed && s.timer == nil {
			s.arm()
		}
	case s.gen == gen:
		s.pending = nil
		changed = s.setStatus(StatusSaved)
	default:
		changed = s.setStatus(StatusUnsaved)
	}
	s.mu.Unlock()
	s.emit(changed)
	return err
}

// Close stops the debounce and writes whatever is still pending. Later
// notifications are ignored.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.flush(ctx)
}
