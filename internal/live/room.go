package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nexusdeck/nexus/backend-go/internal/autosave"
	"github.com/nexusdeck/nexus/backend-go/internal/capture"
	"github.com/nexusdeck/nexus/backend-go/internal/deck"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/engine"
	"github.com/nexusdeck/nexus/backend-go/internal/export"
	"github.com/nexusdeck/nexus/backend-go/internal/generate"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
	"github.com/nexusdeck/nexus/backend-go/internal/session"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

const inboxSize = 64

// Room is one editing session bound to one connection.
type Room struct {
	ID         string
	hub        *Hub
	playground bool
	sess       *session.Session
	sched      *playback.Scheduler

	client atomic.Pointer[Client]
	source atomic.Pointer[capture.SlideSource]

	inbox     chan func()
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	schedDone chan struct{}
	started   atomic.Bool
	closeOnce sync.Once

	// Owned by the run goroutine.
	editor    *engine.Editor
	exporting bool
	pending   []pendingGeneration
}

// pendingGeneration holds generated slides that arrived mid-gesture.
type pendingGeneration struct {
	seq    int64
	reply  string
	slides []document.Slide
}

func newRoom(h *Hub, playground bool) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Room{
		ID:         typeid.NewSessionID(),
		hub:        h,
		playground: playground,
		inbox:      make(chan func(), inboxSize),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		schedDone:  make(chan struct{}),
	}
	r.sched = playback.NewScheduler(h.clock, h.cfg.Playback, playback.Hooks{
		OnState:          r.onPlayState,
		OnSlide:          r.onPlaySlide,
		OnExportDone:     r.onExportDone,
		OnExportRejected: func(error) { r.later(r.resetExport) },
		OnExternal: func(target string) {
			r.send(TypePlayExternal, 0, PlayExternalPayload{Target: target})
		},
		OnNotice: func(msg string) {
			r.send(TypeNotice, 0, NoticePayload{Message: msg})
		},
	})
	return r
}

func (r *Room) attach(sess *session.Session) {
	r.sess = sess
	r.editor = sess.Editor()
	r.editor.OnChange(r.onDocChange)
}

// PresentationID is the id of the presentation being edited.
func (r *Room) PresentationID() string { return r.sess.ID() }

// Start binds the connection and begins processing. It sends the welcome
// message before anything else.
func (r *Room) Start(c *Client) {
	r.client.Store(c)
	r.started.Store(true)
	go func() {
		defer close(r.schedDone)
		r.sched.Run(r.ctx)
	}()
	go r.run()
	r.post(func() {
		c.Send(TypeWelcome, 0, WelcomePayload{
			ClientID:     c.ClientID,
			Presentation: r.editor.Presentation(),
			SaveStatus:   string(r.sess.Status()),
			PlayState:    r.sched.State().String(),
		})
		r.sendRender()
	})
}

func (r *Room) run() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case fn := <-r.inbox:
			fn()
		}
	}
}

// post queues fn for the run goroutine. It gives up once the room closes.
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.ctx.Done():
	}
}

// later queues fn without blocking the caller. Unless the inbox is full, fn
// runs before any message dispatched after it returns.
func (r *Room) later(fn func()) {
	select {
	case r.inbox <- fn:
	default:
		go r.post(fn)
	}
}

// Dispatch queues an inbound message.
func (r *Room) Dispatch(msg Message) {
	r.post(func() { r.handle(msg) })
}

// Close stops playback, flushes the document and releases the connection.
// It is safe to call from any goroutine, more than once.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		if r.started.Load() {
			<-r.done
			<-r.schedDone
		}
		if r.sess != nil {
			ctx, cancel := context.WithTimeout(context.Background(), r.hub.cfg.CloseTimeout)
			r.sess.Close(ctx)
			cancel()
		}
		if c := r.client.Load(); c != nil {
			c.shut()
		}
		if r.sess != nil {
			r.hub.remove(r)
		}
	})
}

func (r *Room) send(typ string, seq int64, payload any) {
	if c := r.client.Load(); c != nil {
		c.Send(typ, seq, payload)
	}
}

// --- Hooks (run off the room goroutine) ---

func (r *Room) onSaveStatus(st autosave.Status) {
	r.send(TypeSaveStatus, 0, SaveStatusPayload{Status: string(st)})
}

func (r *Room) onPlayState(st playback.State) {
	if st == playback.StateIdle {
		r.later(r.resetExport)
	}
	r.send(TypePlayState, 0, PlayStatePayload{State: st.String()})
}

// resetExport allows the next export once the scheduler is done with the
// current one or refused it.
func (r *Room) resetExport() {
	r.exporting = false
	r.source.Store(nil)
}

func (r *Room) onPlaySlide(i int) {
	if src := r.source.Load(); src != nil {
		src.Show(i)
	}
	r.send(TypePlaySlide, 0, PlaySlidePayload{Index: i})
}

func (r *Room) onExportDone(a playback.Artifact, err error) {
	if err != nil {
		slog.Error("export failed", "presentation", r.sess.ID(), "error", err)
		r.send(TypeExportDone, 0, ExportDonePayload{Error: err.Error()})
		return
	}
	name := r.hub.addArtifact(a)
	r.send(TypeExportDone, 0, ExportDonePayload{
		Artifact:    a,
		DownloadURL: "/exports/" + name,
	})
}

// onDocChange runs on the room goroutine after every committed edit.
func (r *Room) onDocChange(p *document.Presentation) {
	r.send(TypeDocSync, 0, DocSyncPayload{Presentation: p, SlideIndex: r.editor.SlideIndex()})
	if r.sched.State() == playback.StatePresenting {
		r.sched.UpdateSlides(p.Slides)
	}
}

func (r *Room) sendRender() {
	r.send(TypeRender, 0, RenderPayload{
		SlideIndex: r.editor.SlideIndex(),
		Selected:   r.editor.Selected(),
		Editing:    r.editor.Editing(),
		Mode:       r.editor.Mode().String(),
		Display:    r.editor.Render(),
	})
}

// --- Message handling ---

func (r *Room) handle(msg Message) {
	reply, err := r.apply(msg)
	switch {
	case errors.Is(err, errAsync):
		return
	case errors.Is(err, document.ErrLastSlide):
		r.send(TypeNotice, msg.Seq, NoticePayload{Message: "A presentation needs at least one slide."})
	case err != nil:
		r.send(TypeError, msg.Seq, ErrorPayload{Message: err.Error()})
	case msg.Seq != 0 && reply != nil:
		r.send(TypeAck, msg.Seq, reply)
	case msg.Seq != 0:
		r.send(TypeAck, msg.Seq, nil)
	}
	if editorMessage(msg.Type) {
		r.sendRender()
	}
}

// errAsync marks messages answered later by a background task.
var errAsync = errors.New("answered asynchronously")

func editorMessage(typ string) bool {
	switch typ {
	case TypePresent, TypeExport, TypeNext, TypePrev, TypeExit, TypeNavigate, TypeKey,
		TypeSave, TypeGenerate:
		return false
	}
	return true
}

func decode[T any](msg Message) (T, error) {
	var v T
	if len(msg.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return v, nil
}

func (r *Room) apply(msg Message) (*AckPayload, error) {
	ed := r.editor
	switch msg.Type {
	case TypePointerDown:
		p, err := decode[PointerPayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, r.pointerDown(p)

	case TypePointerMove:
		p, err := decode[PointerPayload](msg)
		if err != nil {
			return nil, err
		}
		ed.PointerMove(p.PointerID, geom.Point{X: p.X, Y: p.Y})
		return nil, nil

	case TypePointerUp:
		p, err := decode[PointerPayload](msg)
		if err != nil {
			return nil, err
		}
		err = ed.PointerUp(p.PointerID, geom.Point{X: p.X, Y: p.Y})
		r.flushPending()
		return nil, err

	case TypePointerCancel:
		p, err := decode[PointerPayload](msg)
		if err != nil {
			return nil, err
		}
		ed.PointerCancel(p.PointerID)
		r.flushPending()
		return nil, nil

	case TypeSelect:
		p, err := decode[ElementRefPayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, ed.Select(p.ElementID)

	case TypeTextBegin:
		p, err := decode[ElementRefPayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, ed.BeginTextEdit(p.ElementID)

	case TypeTextEdit:
		p, err := decode[TextPayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, ed.EditText(p.Content)

	case TypeTextEnd:
		ed.EndTextEdit()
		return nil, nil

	case TypeViewport:
		p, err := decode[ViewportPayload](msg)
		if err != nil {
			return nil, err
		}
		if p.Scale <= 0 {
			return nil, fmt.Errorf("invalid scale %v", p.Scale)
		}
		ed.SetScale(geom.Scale(p.Scale))
		return nil, nil

	case TypeElementAdd:
		p, err := decode[ElementAddPayload](msg)
		if err != nil {
			return nil, err
		}
		el, err := ed.AddElement(p.Type, p.Shape, p.Content)
		if err != nil {
			return nil, err
		}
		return &AckPayload{Element: &el}, nil

	case TypeElementUpdate:
		p, err := decode[ElementUpdatePayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, ed.UpdateElement(p.Element)

	case TypeElementRaise, TypeElementLower, TypeElementDuplicate, TypeElementDelete:
		p, err := decode[ElementRefPayload](msg)
		if err != nil {
			return nil, err
		}
		return r.layer(msg.Type, p.ElementID)

	case TypeSlideAdd:
		s, err := ed.AddSlide()
		if err != nil {
			return nil, err
		}
		return &AckPayload{Slide: &s}, nil

	case TypeSlideDuplicate:
		p, err := decode[SlideRefPayload](msg)
		if err != nil {
			return nil, err
		}
		s, err := ed.DuplicateSlide(p.Index)
		if err != nil {
			return nil, err
		}
		return &AckPayload{Slide: &s}, nil

	case TypeSlideDelete:
		p, err := decode[SlideRefPayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, ed.DeleteSlide(p.Index)

	case TypeSlideSelect:
		p, err := decode[SlideRefPayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, ed.SelectSlide(p.Index)

	case TypeSlideUpdate:
		p, err := decode[SlideUpdatePayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, ed.UpdateSlide(p.Index, p.Update)

	case TypeTitleSet:
		p, err := decode[TitlePayload](msg)
		if err != nil {
			return nil, err
		}
		return nil, ed.SetTitle(p.Title)

	case TypePresent:
		p, err := decode[PresentPayload](msg)
		if err != nil {
			return nil, err
		}
		r.sched.Present(ed.Slides(), p.Start)
		return nil, nil

	case TypeExport:
		return nil, r.startExport()

	case TypeNext:
		r.sched.Next()
		return nil, nil

	case TypePrev:
		r.sched.Prev()
		return nil, nil

	case TypeExit:
		r.sched.Exit()
		return nil, nil

	case TypeNavigate:
		p, err := decode[NavigatePayload](msg)
		if err != nil {
			return nil, err
		}
		r.sched.Navigate(p.Target)
		return nil, nil

	case TypeKey:
		p, err := decode[KeyPayload](msg)
		if err != nil {
			return nil, err
		}
		r.sched.Key(playback.ParseKey(p.Key))
		return nil, nil

	case TypeSave:
		r.save(msg.Seq)
		return nil, errAsync

	case TypeGenerate:
		p, err := decode[GeneratePayload](msg)
		if err != nil {
			return nil, err
		}
		if err := r.generate(msg.Seq, p.Prompt); err != nil {
			return nil, err
		}
		return nil, errAsync
	}
	slog.Warn("unknown message type", "type", msg.Type, "room", r.ID)
	return nil, fmt.Errorf("unknown message type %q", msg.Type)
}

// pointerDown routes by target; without one the element under the pointer
// is hit tested.
func (r *Room) pointerDown(p PointerPayload) error {
	ed := r.editor
	at := geom.Point{X: p.X, Y: p.Y}
	switch p.Target {
	case "element":
		return ed.PointerDownElement(p.PointerID, p.ElementID, at)
	case "handle":
		h, err := engine.ParseHandle(p.Handle)
		if err != nil {
			return err
		}
		return ed.PointerDownHandle(p.PointerID, p.ElementID, h, at)
	case "canvas":
		ed.PointerDownCanvas()
		return nil
	case "":
		if id, ok := ed.HitTest(at); ok {
			return ed.PointerDownElement(p.PointerID, id, at)
		}
		ed.PointerDownCanvas()
		return nil
	}
	return fmt.Errorf("unknown pointer target %q", p.Target)
}

func (r *Room) layer(typ, id string) (*AckPayload, error) {
	ed := r.editor
	switch typ {
	case TypeElementRaise:
		return nil, ed.Raise(id)
	case TypeElementLower:
		return nil, ed.Lower(id)
	case TypeElementDuplicate:
		el, err := ed.Duplicate(id)
		if err != nil {
			return nil, err
		}
		return &AckPayload{Element: &el}, nil
	default:
		return nil, ed.Delete(id)
	}
}

func (r *Room) startExport() error {
	if r.hub.encoder == nil || r.hub.raster == nil {
		return ErrExportDisabled
	}
	if r.exporting || r.sched.State() != playback.StateIdle {
		return playback.ErrBusy
	}
	slides := r.editor.Slides()
	cfg := r.hub.cfg.Capture
	src := capture.NewSlideSource(r.hub.raster, slides, cfg.Width)
	rec := capture.NewRecorder(capture.Config{
		FPS:          cfg.FPS,
		Format:       cfg.Format,
		OutDir:       cfg.OutDir,
		Name:         typeid.NewExportID(),
		FramePattern: export.FramePattern,
		ContentType:  export.ContentType,
	}, src, r.hub.encoder, r.hub.clock)

	r.exporting = true
	r.source.Store(src)
	r.sched.Export(slides, rec)
	return nil
}

// save writes the current snapshot in the background; the outcome is
// answered with an ack or an error.
func (r *Room) save(seq int64) {
	pres := r.editor.Presentation()
	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, autosave.DefaultTimeout)
		defer cancel()
		if err := r.sess.Save(ctx, pres); err != nil {
			slog.Error("manual save", "presentation", pres.ID, "error", err)
			r.send(TypeError, seq, ErrorPayload{Message: "save failed: " + err.Error()})
			return
		}
		r.send(TypeAck, seq, nil)
	}()
}

func (r *Room) generate(seq int64, prompt string) error {
	gen := r.hub.cfg.Generator
	if gen == nil {
		return ErrNoGenerator
	}
	if prompt == "" {
		return errors.New("prompt is required")
	}
	images := r.hub.cfg.Images
	go func() {
		res, err := gen.Generate(r.ctx, prompt)
		if err != nil {
			slog.Error("generate slides", "room", r.ID, "error", err)
			r.send(TypeError, seq, ErrorPayload{Message: "generation failed: " + err.Error()})
			return
		}
		slides, err := generate.Build(r.ctx, res, images, generate.IDs{})
		if err != nil {
			if r.ctx.Err() == nil {
				r.send(TypeError, seq, ErrorPayload{Message: "generation failed: " + err.Error()})
			}
			return
		}
		r.post(func() {
			r.pending = append(r.pending, pendingGeneration{seq: seq, reply: res.Reply, slides: slides})
			r.flushPending()
		})
	}()
	return nil
}

// flushPending appends generated slides once no gesture holds the editor.
func (r *Room) flushPending() {
	for len(r.pending) > 0 {
		g := r.pending[0]
		first := len(r.editor.Slides())
		if err := r.editor.AppendSlides(g.slides); errors.Is(err, engine.ErrInteractionActive) {
			return
		} else if err != nil {
			r.send(TypeError, g.seq, ErrorPayload{Message: err.Error()})
		} else {
			if len(g.slides) == 0 {
				first = -1
			}
			r.send(TypeGenerateDone, g.seq, GenerateDonePayload{
				Reply:    deck.Reply(g.reply, len(g.slides)),
				FirstNew: first,
			})
		}
		r.pending = r.pending[1:]
	}
}
