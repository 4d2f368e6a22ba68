// Package live serves the editor over a WebSocket. Each open presentation
// gets a Room whose goroutine owns the editor; every inbound message and
// every asynchronous result is applied on that goroutine.
package live

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/autosave"
	"github.com/nexusdeck/nexus/backend-go/internal/capture"
	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/generate"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
	"github.com/nexusdeck/nexus/backend-go/internal/session"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

var (
	ErrBusy           = errors.New("presentation is open in another editor")
	ErrStopped        = errors.New("live hub stopped")
	ErrNoArtifact     = errors.New("export not found")
	ErrExportDisabled = errors.New("video export is not available")
	ErrNoGenerator    = errors.New("content generation is not configured")
)

type CaptureConfig struct {
	FPS    int
	Format string
	Width  int
	OutDir string
}

type Config struct {
	AutosaveDelay time.Duration
	Playback      playback.Config
	Capture       CaptureConfig
	Generator     generate.Generator
	Images        generate.ImageGenerator
	CloseTimeout  time.Duration
}

// Hub tracks open rooms and the exports they produced.
type Hub struct {
	store      store.Store
	playground *store.Memory
	clock      clock.Clock
	raster     *render.Rasterizer
	encoder    capture.Encoder
	cfg        Config

	mu        sync.Mutex
	rooms     map[string]*Room // presentationID -> room
	artifacts map[string]playback.Artifact
	stopped   bool
}

func NewHub(st store.Store, clk clock.Clock, raster *render.Rasterizer, enc capture.Encoder, cfg Config) *Hub {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.Capture.FPS <= 0 {
		cfg.Capture.FPS = 30
	}
	if cfg.Capture.Format == "" {
		cfg.Capture.Format = "webm"
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}
	return &Hub{
		store:      st,
		playground: store.NewMemory(),
		clock:      clk,
		raster:     raster,
		encoder:    enc,
		cfg:        cfg,
		rooms:      make(map[string]*Room),
		artifacts:  make(map[string]playback.Artifact),
	}
}

// Open starts a room for presentation id. A presentation can only be open in
// one room at a time.
func (h *Hub) Open(ctx context.Context, owner, id string) (*Room, error) {
	return h.open(ctx, h.store, owner, id, false)
}

// OpenPlayground starts a room over a fresh in-memory presentation that is
// discarded when the room closes.
func (h *Hub) OpenPlayground(ctx context.Context, owner string) (*Room, error) {
	pres := document.NewPresentation(document.KindSlideDeck, owner, h.clock.Now())
	if err := h.playground.Save(ctx, owner, pres); err != nil {
		return nil, err
	}
	room, err := h.open(ctx, h.playground, owner, pres.ID, true)
	if err != nil {
		h.playground.Delete(ctx, owner, pres.ID)
		return nil, err
	}
	return room, nil
}

func (h *Hub) open(ctx context.Context, st store.Store, owner, id string, playground bool) (*Room, error) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil, ErrStopped
	}
	if r, taken := h.rooms[id]; taken {
		h.mu.Unlock()
		if r != nil && r.sess.Owner() != owner {
			return nil, store.ErrForbidden
		}
		return nil, ErrBusy
	}
	// Reserve the id while the document loads.
	h.rooms[id] = nil
	h.mu.Unlock()

	room := newRoom(h, playground)
	sess, err := session.Open(ctx, st, owner, id, h.clock, autosave.Config{
		Delay:    h.cfg.AutosaveDelay,
		OnStatus: room.onSaveStatus,
	})
	if err != nil {
		h.mu.Lock()
		delete(h.rooms, id)
		h.mu.Unlock()
		return nil, err
	}
	room.attach(sess)

	h.mu.Lock()
	if h.stopped {
		delete(h.rooms, id)
		h.mu.Unlock()
		room.Close()
		return nil, ErrStopped
	}
	h.rooms[id] = room
	h.mu.Unlock()

	slog.Info("room opened", "presentation", id, "user", owner)
	return room, nil
}

func (h *Hub) remove(r *Room) {
	id := r.sess.ID()
	h.mu.Lock()
	if h.rooms[id] == r {
		delete(h.rooms, id)
	}
	h.mu.Unlock()

	if r.playground {
		if err := h.playground.Delete(context.Background(), r.sess.Owner(), id); err != nil {
			slog.Warn("discard playground", "presentation", id, "error", err)
		}
	}
	slog.Info("room closed", "presentation", id, "user", r.sess.Owner())
}

// Rooms returns the number of open rooms.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// addArtifact publishes a finished export under its file name. Names are
// random typeids, so knowing one is enough to download it.
func (h *Hub) addArtifact(a playback.Artifact) string {
	name := filepath.Base(a.Path)
	h.mu.Lock()
	h.artifacts[name] = a
	h.mu.Unlock()
	return name
}

// Artifact looks up a finished export by file name.
func (h *Hub) Artifact(name string) (playback.Artifact, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.artifacts[name]
	if !ok {
		return playback.Artifact{}, ErrNoArtifact
	}
	return a, nil
}

// Stop closes every room, flushing unsaved documents. Later opens fail.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		if r != nil {
			rooms = append(rooms, r)
		}
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range rooms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Close()
		}()
	}
	wg.Wait()
}
