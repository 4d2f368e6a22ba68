package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/capture"
	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

var ErrTooLong = errors.New("presentation too long to render")

// VideoOptions configures one server-side render.
type VideoOptions struct {
	Format   string
	FPS      int
	Width    int
	OutDir   string
	Playback playback.Config
	// MaxDuration rejects decks whose playback would run longer.
	MaxDuration time.Duration
}

// RenderVideo plays slides through a scheduler while a recorder samples the
// rendered slide, the way the browser export drives a screen capture. The
// returned artifact file belongs to the caller. Cancelling ctx exits the show
// early and discards the recording.
func RenderVideo(ctx context.Context, slides []document.Slide, raster *render.Rasterizer, enc capture.Encoder, clk clock.Clock, opts VideoOptions) (playback.Artifact, error) {
	if !validFormat(opts.Format) {
		return playback.Artifact{}, ErrUnsupportedFormat
	}
	if len(slides) == 0 {
		return playback.Artifact{}, playback.ErrNoSlide
	}
	if total := playback.TotalDuration(slides, opts.Playback); opts.MaxDuration > 0 && total > opts.MaxDuration {
		return playback.Artifact{}, fmt.Errorf("%w: %v exceeds %v", ErrTooLong, total, opts.MaxDuration)
	}
	if opts.OutDir == "" {
		opts.OutDir = os.TempDir()
	}

	src := capture.NewSlideSource(raster, slides, opts.Width)
	rec := capture.NewRecorder(capture.Config{
		FPS:          opts.FPS,
		Format:       opts.Format,
		OutDir:       opts.OutDir,
		Name:         typeid.NewExportID(),
		FramePattern: FramePattern,
		ContentType:  ContentType,
	}, src, enc, clk)

	tracked := &startedCapture{Recorder: rec}
	type result struct {
		art playback.Artifact
		err error
	}
	done := make(chan result, 2)
	idle := make(chan struct{}, 1)
	sched := playback.NewScheduler(clk, opts.Playback, playback.Hooks{
		OnSlide: src.Show,
		OnState: func(st playback.State) {
			if st == playback.StateIdle {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		},
		OnExportDone: func(a playback.Artifact, err error) {
			done <- result{a, err}
		},
		// A private scheduler only reports notices for exports that never
		// started.
		OnNotice: func(msg string) {
			select {
			case done <- result{err: errors.New(msg)}:
			default:
			}
		},
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go sched.Run(runCtx)

	sched.Export(slides, tracked)

	select {
	case res := <-done:
		return res.art, res.err
	case <-ctx.Done():
	}

	sched.Exit()
	<-idle
	if tracked.started.Load() {
		// The recorder is being stopped; drop what it produces.
		if res := <-done; res.err == nil {
			os.Remove(res.art.Path)
		}
	}
	return playback.Artifact{}, ctx.Err()
}

// startedCapture records whether the scheduler ever started the recorder,
// which decides whether an early exit still produces a result.
type startedCapture struct {
	*capture.Recorder
	started atomic.Bool
}

func (c *startedCapture) Start() error {
	err := c.Recorder.Start()
	if err == nil {
		c.started.Store(true)
	}
	return err
}

func validFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}
