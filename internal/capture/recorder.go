// Package capture records a running slide show into a video file. It is the
// server-side counterpart of the browser's screen recorder.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
)

var (
	ErrNotAcquired = errors.New("capture not acquired")
	ErrStopped     = errors.New("capture already stopped")
	ErrNoFrames    = errors.New("no frames recorded")
)

// FrameSource produces the picture currently on screen.
type FrameSource interface {
	Frame() (image.Image, error)
}

// Encoder turns a directory of numbered PNG frames into a video.
type Encoder interface {
	Available() error
	Encode(ctx context.Context, dir string, fps int, format, out string) error
}

type Config struct {
	FPS          int
	Format       string
	OutDir       string
	Name         string
	FramePattern string
	// EncodeTimeout bounds the encoder run started by Stop.
	EncodeTimeout time.Duration
	ContentType   func(format string) string
}

// Recorder samples a FrameSource at a fixed rate and encodes the frames on
// Stop. Frame n belongs to the interval starting n/FPS after Start; when
// rendering falls behind, the last frame is repeated so the video keeps the
// wall-clock length of the recording. It implements playback.Capture.
type Recorder struct {
	cfg   Config
	src   FrameSource
	enc   Encoder
	clock clock.Clock

	mu       sync.Mutex
	dir      string
	start    time.Time
	slots    int // frame intervals accounted for since start
	frames   int // frames written
	last     []byte
	running  bool
	stopped  bool
	timer    clock.Timer
	frameErr error
}

var _ playback.Capture = (*Recorder)(nil)

func NewRecorder(cfg Config, src FrameSource, enc Encoder, clk clock.Clock) *Recorder {
	if cfg.FPS <= 0 || cfg.FPS > 120 {
		cfg.FPS = 30
	}
	if cfg.Format == "" {
		cfg.Format = "mp4"
	}
	if cfg.Name == "" {
		cfg.Name = "presentation"
	}
	if cfg.FramePattern == "" {
		cfg.FramePattern = "frame_%06d.png"
	}
	if cfg.EncodeTimeout <= 0 {
		cfg.EncodeTimeout = 10 * time.Minute
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Recorder{cfg: cfg, src: src, enc: enc, clock: clk}
}

// Acquire checks the encoder and prepares a scratch directory for frames.
func (r *Recorder) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.enc.Available(); err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "nexus-capture-*")
	if err != nil {
		return fmt.Errorf("create frame dir: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir = dir
	return nil
}

// Start records the first frame and begins sampling.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dir == "" {
		return ErrNotAcquired
	}
	if r.stopped {
		return ErrStopped
	}
	r.running = true
	r.start = r.clock.Now()
	r.captureLocked()
	r.armLocked()
	return nil
}

func (r *Recorder) interval() time.Duration {
	return time.Second / time.Duration(r.cfg.FPS)
}

// dueLocked is the number of frame intervals begun by now.
func (r *Recorder) dueLocked(now time.Time) int {
	return int(now.Sub(r.start)/r.interval()) + 1
}

// armLocked schedules the next frame at its deadline measured from start.
func (r *Recorder) armLocked() {
	next := r.start.Add(time.Duration(r.slots) * r.interval())
	r.timer = r.clock.AfterFunc(max(next.Sub(r.clock.Now()), 0), r.tick)
}

func (r *Recorder) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	if due := r.dueLocked(r.clock.Now()); due > r.slots {
		r.fillLocked(due - 1)
		r.captureLocked()
	}
	r.armLocked()
}

// fillLocked repeats the last frame until n intervals are covered.
func (r *Recorder) fillLocked(n int) {
	for r.slots < n {
		r.repeatLocked()
	}
}

// captureLocked renders a fresh frame for the next interval. A failed render
// repeats the previous frame.
func (r *Recorder) captureLocked() {
	img, err := r.src.Frame()
	if err == nil {
		err = r.writeFrame(img)
	}
	if err != nil {
		if r.frameErr == nil {
			slog.Error("capture frame", "frame", r.frames, "error", err)
			r.frameErr = err
		}
		r.repeatLocked()
		return
	}
	r.slots++
}

func (r *Recorder) repeatLocked() {
	r.slots++
	if r.last == nil {
		return
	}
	if err := os.WriteFile(r.framePath(), r.last, 0o644); err != nil {
		if r.frameErr == nil {
			slog.Error("repeat frame", "frame", r.frames, "error", err)
			r.frameErr = err
		}
		return
	}
	r.frames++
}

func (r *Recorder) framePath() string {
	return filepath.Join(r.dir, fmt.Sprintf(r.cfg.FramePattern, r.frames))
}

func (r *Recorder) writeFrame(img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := os.WriteFile(r.framePath(), buf.Bytes(), 0o644); err != nil {
		return err
	}
	r.last = buf.Bytes()
	r.frames++
	return nil
}

// Frames returns the number of frames recorded so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Stop halts sampling and encodes what was recorded. The frame directory is
// removed afterwards. Only the first call does any work.
func (r *Recorder) Stop() (playback.Artifact, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return playback.Artifact{}, ErrStopped
	}
	r.stopped = true
	if r.running {
		// Cover a tick that was due but had not run yet.
		r.fillLocked(r.dueLocked(r.clock.Now()))
	}
	r.running = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	dir, frames := r.dir, r.frames
	r.mu.Unlock()

	if dir == "" {
		return playback.Artifact{}, ErrNotAcquired
	}
	defer os.RemoveAll(dir)

	if frames == 0 {
		return playback.Artifact{}, ErrNoFrames
	}

	if err := os.MkdirAll(r.cfg.OutDir, 0755); err != nil {
		return playback.Artifact{}, fmt.Errorf("create output dir: %w", err)
	}
	out := filepath.Join(r.cfg.OutDir, r.cfg.Name+"."+r.cfg.Format)

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.EncodeTimeout)
	defer cancel()

	slog.Info("encoding capture", "frames", frames, "fps", r.cfg.FPS, "format", r.cfg.Format)
	if err := r.enc.Encode(ctx, dir, r.cfg.FPS, r.cfg.Format, out); err != nil {
		return playback.Artifact{}, fmt.Errorf("encode capture: %w", err)
	}

	stat, err := os.Stat(out)
	if err != nil {
		return playback.Artifact{}, fmt.Errorf("stat output: %w", err)
	}
	mime := "application/octet-stream"
	if r.cfg.ContentType != nil {
		mime = r.cfg.ContentType(r.cfg.Format)
	}
	slog.Info("capture complete", "path", out, "size", stat.Size())
	return playback.Artifact{Path: out, MIMEType: mime, Size: stat.Size()}, nil
}
