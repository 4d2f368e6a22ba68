// Package playback runs slide shows and timed video exports. One goroutine
// owns all state; every input (user keys, timers, capture results) arrives as
// an event on a single queue.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
)

type State int

const (
	StateIdle State = iota
	StatePresenting
	StateExportSetup
	StateExportRunning
)

func (s State) String() string {
	switch s {
	case StatePresenting:
		return "presenting"
	case StateExportSetup:
		return "export-setup"
	case StateExportRunning:
		return "export-running"
	}
	return "idle"
}

// Artifact is the finalized output of a capture.
type Artifact struct {
	Path     string `json:"path"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Capture is a screen recording device. Acquire may block on user consent.
// Stop finalizes whatever has been recorded.
type Capture interface {
	Acquire(ctx context.Context) error
	Start() error
	Stop() (Artifact, error)
}

// Hooks receive scheduler output. They run on the scheduler goroutine and
// must not call back into the scheduler synchronously.
type Hooks struct {
	OnState      func(State)
	OnSlide      func(index int)
	OnExportDone func(Artifact, error)
	// OnExportRejected reports an Export that never started, for example
	// because the previous capture is still encoding.
	OnExportRejected func(error)
	OnExternal       func(target string)
	OnNotice         func(msg string)
}

type Config struct {
	SettleDelay time.Duration
	GraceDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{SettleDelay: time.Second, GraceDelay: time.Second}
}

var (
	ErrBusy    = errors.New("playback already active")
	ErrNoSlide = errors.New("presentation has no slides")
)

type phase int

const (
	phaseNone phase = iota
	phaseSettle
	phaseSlide
	phaseGrace
)

// Scheduler is the playback/export state machine.
type Scheduler struct {
	clock clock.Clock
	cfg   Config
	hooks Hooks

	mu      sync.Mutex
	queue   []event
	wake    chan struct{}
	closed  bool
	mirror  State
	current int

	// Owned by the Run goroutine.
	state    State
	slides   []document.Slide
	index    int
	phase    phase
	timer    clock.Timer
	timerGen int
	capture  Capture
	started  bool
	exportID int
	cancel   context.CancelFunc
	stopping bool
}

func NewScheduler(clk clock.Clock, cfg Config, hooks Hooks) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{
		clock: clk,
		cfg:   cfg,
		hooks: hooks,
		wake:  make(chan struct{}, 1),
	}
}

// State returns the last published state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror
}

// Index returns the last published slide index.
func (s *Scheduler) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// --- Inputs ---

// Present starts manual playback at slide start.
func (s *Scheduler) Present(slides []document.Slide, start int) {
	s.post(evPresent{slides: slides, start: start})
}

// Export starts a timed capture of every slide through c.
func (s *Scheduler) Export(slides []document.Slide, c Capture) {
	s.post(evExport{slides: slides, capture: c})
}

func (s *Scheduler) Next() { s.post(evStep{delta: 1}) }
func (s *Scheduler) Prev() { s.post(evStep{delta: -1}) }
func (s *Scheduler) Exit() { s.post(evExit{}) }

// Navigate jumps to a slide by name or id, or hands an external address to
// the host.
func (s *Scheduler) Navigate(target string) { s.post(evNavigate{target: target}) }

// Key applies a player keyboard binding.
func (s *Scheduler) Key(k Key) {
	switch k {
	case KeyNext:
		s.Next()
	case KeyPrev:
		s.Prev()
	case KeyExit:
		s.Exit()
	}
}

// UpdateSlides swaps in an edited slide list while presenting.
func (s *Scheduler) UpdateSlides(slides []document.Slide) {
	s.post(evUpdate{slides: slides})
}

// --- Event loop ---

type event interface{}

type (
	evPresent struct {
		slides []document.Slide
		start  int
	}
	evExport struct {
		slides  []document.Slide
		capture Capture
	}
	evStep     struct{ delta int }
	evExit     struct{}
	evNavigate struct{ target string }
	evUpdate   struct{ slides []document.Slide }
	evTimer    struct{ gen int }
	evAcquired struct {
		exportID int
		capture  Capture
		err      error
	}
	evStopped struct {
		artifact Artifact
		err      error
		deliver  bool
	}
)

// post queues ev. It reports false once Run has returned.
func (s *Scheduler) post(ev event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) drain() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.queue
	s.queue = nil
	return evs
}

// Run processes events until ctx is cancelled. On return any running
// capture has been stopped.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return ctx.Err()
		case <-s.wake:
		}
		for _, ev := range s.drain() {
			s.handle(ev)
		}
	}
}

func (s *Scheduler) handle(ev event) {
	switch ev := ev.(type) {
	case evPresent:
		s.onPresent(ev)
	case evExport:
		s.onExport(ev)
	case evStep:
		s.onStep(ev.delta)
	case evExit:
		s.exit()
	case evNavigate:
		s.onNavigate(ev.target)
	case evUpdate:
		s.onUpdate(ev.slides)
	case evTimer:
		if ev.gen == s.timerGen {
			s.timer = nil
			s.onTimer()
		}
	case evAcquired:
		s.onAcquired(ev)
	case evStopped:
		if ev.deliver {
			s.stopping = false
			s.deliver(ev.artifact, ev.err)
		}
	}
}

func (s *Scheduler) onPresent(ev evPresent) {
	if s.state != StateIdle {
		s.notice(ErrBusy.Error())
		return
	}
	if len(ev.slides) == 0 {
		s.notice(ErrNoSlide.Error())
		return
	}
	s.slides = ev.slides
	s.setState(StatePresenting)
	s.show(clampIndex(ev.start, len(ev.slides)))
}

func (s *Scheduler) onExport(ev evExport) {
	if s.state != StateIdle || s.stopping {
		s.reject(ErrBusy)
		return
	}
	if len(ev.slides) == 0 {
		s.reject(ErrNoSlide)
		return
	}
	s.slides = ev.slides
	s.exportID++
	s.setState(StateExportSetup)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	id, c := s.exportID, ev.capture
	go func() {
		err := c.Acquire(ctx)
		if !s.post(evAcquired{exportID: id, capture: c, err: err}) && err == nil {
			slog.Info("stopping capture acquired after shutdown")
			discard(c)
		}
	}()
}

func (s *Scheduler) reject(err error) {
	s.notice(err.Error())
	if s.hooks.OnExportRejected != nil {
		s.hooks.OnExportRejected(err)
	}
}

func (s *Scheduler) deliver(a Artifact, err error) {
	if s.hooks.OnExportDone != nil {
		s.hooks.OnExportDone(a, err)
	}
}

func (s *Scheduler) onAcquired(ev evAcquired) {
	if ev.exportID != s.exportID || s.state != StateExportSetup {
		// The user left before the device was granted.
		if ev.err == nil {
			slog.Info("stopping capture acquired after exit")
			s.stopAsync(ev.capture, false)
		}
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if ev.err != nil {
		slog.Info("capture acquisition failed", "error", ev.err)
		s.setState(StateIdle)
		s.notice(fmt.Sprintf("Export cancelled: %v", ev.err))
		return
	}
	if err := ev.capture.Start(); err != nil {
		slog.Error("failed to start capture", "error", err)
		s.setState(StateIdle)
		s.notice(fmt.Sprintf("Export cancelled: %v", err))
		return
	}
	s.capture = ev.capture
	s.started = true
	s.phase = phaseSettle
	s.arm(s.cfg.SettleDelay)
}

func (s *Scheduler) onTimer() {
	switch s.phase {
	case phaseSettle:
		s.setState(StateExportRunning)
		s.show(0)
	case phaseSlide:
		if s.index+1 < len(s.slides) {
			s.show(s.index + 1)
			return
		}
		s.phase = phaseGrace
		s.arm(s.cfg.GraceDelay)
	case phaseGrace:
		s.finishExport(true)
	}
}

func (s *Scheduler) onStep(delta int) {
	switch s.state {
	case StatePresenting:
		s.show(clampIndex(s.index+delta, len(s.slides)))
	case StateExportRunning:
		if s.phase == phaseGrace {
			return
		}
		next := s.index + delta
		if next >= len(s.slides) {
			s.disarm()
			s.phase = phaseGrace
			s.arm(s.cfg.GraceDelay)
			return
		}
		s.show(clampIndex(next, len(s.slides)))
	}
}

func (s *Scheduler) onNavigate(target string) {
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}
	if IsExternal(target) {
		if s.hooks.OnExternal != nil {
			s.hooks.OnExternal(target)
		}
		return
	}
	if s.state != StatePresenting && s.state != StateExportRunning {
		return
	}
	p := document.Presentation{Slides: s.slides}
	i := p.SlideIndex(target)
	if i < 0 {
		s.notice(fmt.Sprintf("No page named %q", target))
		return
	}
	if s.phase == phaseGrace {
		return
	}
	s.show(i)
}

func (s *Scheduler) onUpdate(slides []document.Slide) {
	if s.state != StatePresenting || len(slides) == 0 {
		return
	}
	s.slides = slides
	if s.index >= len(slides) {
		s.show(len(slides) - 1)
	}
}

// show switches to slide i. While exporting this re-arms the slide timer.
func (s *Scheduler) show(i int) {
	s.index = i
	s.mu.Lock()
	s.current = i
	s.mu.Unlock()
	if s.hooks.OnSlide != nil {
		s.hooks.OnSlide(i)
	}
	if s.state == StateExportRunning {
		s.phase = phaseSlide
		s.arm(SlideDuration(s.slides[i]))
	}
}

func (s *Scheduler) exit() {
	switch s.state {
	case StatePresenting:
		s.disarm()
		s.setState(StateIdle)
	case StateExportSetup, StateExportRunning:
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.finishExport(true)
	}
}

// finishExport tears down timers and stops the capture exactly once.
func (s *Scheduler) finishExport(deliver bool) {
	s.disarm()
	s.phase = phaseNone
	c := s.capture
	s.capture = nil
	started := s.started
	s.started = false
	s.setState(StateIdle)
	if c != nil && started {
		s.stopAsync(c, deliver)
	}
}

func (s *Scheduler) stopAsync(c Capture, deliver bool) {
	s.stopping = s.stopping || deliver
	go func() {
		art, err := c.Stop()
		if err != nil {
			slog.Error("failed to stop capture", "error", err)
		}
		if !s.post(evStopped{artifact: art, err: err, deliver: deliver}) && deliver && err == nil {
			slog.Warn("capture finished after shutdown", "path", art.Path)
		}
	}()
}

// discard stops a capture nobody will record with, releasing its resources.
func discard(c Capture) {
	if a, err := c.Stop(); err != nil {
		slog.Info("discarded capture", "error", err)
	} else if a.Path != "" {
		slog.Warn("discarded capture left an artifact", "path", a.Path)
	}
}

// teardown closes the queue, finishes a running capture and settles
// whatever background results were still queued.
func (s *Scheduler) teardown() {
	s.mu.Lock()
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.disarm()
	c, started := s.capture, s.started
	s.capture = nil
	s.started = false
	s.phase = phaseNone
	s.setState(StateIdle)
	if c != nil && started {
		art, err := c.Stop()
		if err != nil {
			slog.Error("failed to stop capture on shutdown", "error", err)
		} else {
			slog.Info("capture stopped on shutdown", "path", art.Path)
		}
		s.deliver(art, err)
	}

	for _, ev := range pending {
		switch ev := ev.(type) {
		case evAcquired:
			if ev.err == nil {
				discard(ev.capture)
			}
		case evStopped:
			if ev.deliver {
				s.deliver(ev.artifact, ev.err)
			}
		}
	}
	s.stopping = false
}

func (s *Scheduler) arm(d time.Duration) {
	s.disarm()
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(d, func() { s.post(evTimer{gen: gen}) })
}

// disarm stops the pending timer and invalidates any fire already queued.
func (s *Scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Scheduler) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.mu.Lock()
	s.mirror = st
	s.mu.Unlock()
	if s.hooks.OnState != nil {
		s.hooks.OnState(st)
	}
}

func (s *Scheduler) notice(msg string) {
	if s.hooks.OnNotice != nil {
		s.hooks.OnNotice(msg)
	}
}

// SlideDuration converts a slide's duration in seconds to a timer interval.
func SlideDuration(sl document.Slide) time.Duration {
	d := sl.Duration
	if d <= 0 {
		d = document.DefaultDuration
	}
	return time.Duration(d * float64(time.Second))
}

// TotalDuration is how long an uninterrupted export of slides records.
func TotalDuration(slides []document.Slide, cfg Config) time.Duration {
	total := cfg.SettleDelay + cfg.GraceDelay
	for _, sl := range slides {
		total += SlideDuration(sl)
	}
	return total
}

func clampIndex(i, n int) int {
	return max(0, min(i, n-1))
}
