package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
)

var (
	ErrInteractionActive = errors.New("another interaction is in progress")
	ErrNotEditable       = errors.New("element does not hold text")
	ErrNoDocument        = errors.New("no presentation loaded")
)

// ChangeFunc observes every committed document mutation.
type ChangeFunc func(*document.Presentation)

// Editor owns the working presentation and the pointer state machine for
// the slide being edited. It is not safe for concurrent use; callers
// serialize access through one goroutine.
type Editor struct {
	pres  *document.Presentation
	slide int

	selected string
	editing  string

	active  *Interaction
	preview *geom.Rect

	scale     geom.Scale
	clock     clock.Clock
	listeners []ChangeFunc
}

// NewEditor creates an editor over pres at the default editor scale.
func NewEditor(pres *document.Presentation, clk clock.Clock) *Editor {
	if clk == nil {
		clk = clock.Real()
	}
	return &Editor{
		pres:  pres,
		scale: geom.DefaultEditorScale,
		clock: clk,
	}
}

// Load replaces the working document and resets all transient state.
func (e *Editor) Load(pres *document.Presentation) {
	e.pres = pres
	e.slide = 0
	e.selected = ""
	e.editing = ""
	e.reset()
}

// OnChange registers a listener for committed mutations.
func (e *Editor) OnChange(fn ChangeFunc) {
	e.listeners = append(e.listeners, fn)
}

// commit publishes next as the working document.
func (e *Editor) commit(next *document.Presentation) {
	e.pres = next
	if e.slide >= len(next.Slides) {
		e.slide = len(next.Slides) - 1
	}
	for _, fn := range e.listeners {
		fn(next)
	}
}

// commitSlide replaces the current slide.
func (e *Editor) commitSlide(s document.Slide) error {
	next, err := e.pres.WithSlide(e.slide, s, e.clock.Now())
	if err != nil {
		return err
	}
	e.commit(next)
	return nil
}

// --- Queries ---

// Presentation returns the committed document.
func (e *Editor) Presentation() *document.Presentation { return e.pres }

// SlideIndex returns the index of the slide being edited.
func (e *Editor) SlideIndex() int { return e.slide }

// CurrentSlide returns the slide being edited.
func (e *Editor) CurrentSlide() document.Slide {
	if e.pres == nil || len(e.pres.Slides) == 0 {
		return document.Slide{}
	}
	return e.pres.Slides[e.slide]
}

// Selected returns the selected element id, or "".
func (e *Editor) Selected() string { return e.selected }

// Editing returns the element in text-edit mode, or "".
func (e *Editor) Editing() string { return e.editing }

// Mode reports the pointer state.
func (e *Editor) Mode() Mode {
	if e.active == nil {
		return ModeIdle
	}
	return e.active.Mode
}

// Scale returns the editor's screen scale.
func (e *Editor) Scale() geom.Scale { return e.scale }

// SetScale changes the zoom. It is ignored mid-gesture.
func (e *Editor) SetScale(s geom.Scale) {
	if s > 0 && e.active == nil {
		e.scale = s
	}
}

// DisplayRect returns the geometry an element should be drawn with: the
// preview during a gesture, otherwise the committed rect.
func (e *Editor) DisplayRect(id string) (geom.Rect, bool) {
	g, ok := e.Geometry(id)
	if !ok {
		return geom.Rect{}, false
	}
	return g.Current(), true
}

// Geometry returns the committed rect and any preview for an element.
func (e *Editor) Geometry(id string) (Geometry, bool) {
	el, ok := e.CurrentSlide().Element(id)
	if !ok {
		return Geometry{}, false
	}
	g := Geometry{Committed: el.Rect()}
	if e.active != nil && e.active.ElementID == id && e.preview != nil {
		p := *e.preview
		g.Preview = &p
	}
	return g, true
}

// HitTest returns the topmost element under a screen point. Higher z wins;
// equal z goes to the later element in the list.
func (e *Editor) HitTest(screen geom.Point) (string, bool) {
	p := e.scale.ToLogical(screen)
	order := render.PaintOrder(e.CurrentSlide().Elements)
	for i := len(order) - 1; i >= 0; i-- {
		r, _ := e.DisplayRect(order[i].ID)
		if r.Contains(p) {
			return order[i].ID, true
		}
	}
	return "", false
}

// Render lays out the current slide with the preview overlay and the
// selection chrome.
func (e *Editor) Render() render.DisplayList {
	opts := render.Options{Editing: e.editing}
	if e.active != nil && e.preview != nil {
		opts.Overlay = map[string]geom.Rect{e.active.ElementID: *e.preview}
	}
	dl := render.Compile(e.CurrentSlide(), e.scale, opts)

	if r, ok := e.DisplayRect(e.selected); ok {
		b := e.scale.RectToScreen(r)
		sel := &render.Selection{ElementID: e.selected, Bounds: b}
		if e.editing != e.selected {
			for _, h := range Handles {
				sel.Handles = append(sel.Handles, render.HandleMark{Name: string(h), At: h.Anchor(b)})
			}
		}
		dl.Selection = sel
	}
	return dl
}

// --- Pointer state machine ---

// PointerDownElement selects an element and starts dragging it.
func (e *Editor) PointerDownElement(pointerID int, id string, at geom.Point) error {
	if e.active != nil {
		return ErrInteractionActive
	}
	el, ok := e.CurrentSlide().Element(id)
	if !ok {
		return fmt.Errorf("%w: %s", document.ErrElementNotFound, id)
	}
	// Clicks inside the element being edited go to the text surface.
	if e.editing == id {
		return nil
	}
	e.editing = ""
	e.selected = id
	e.active = &Interaction{
		Mode:      ModeDragging,
		PointerID: pointerID,
		ElementID: id,
		Start:     at,
		Origin:    el.Rect(),
	}
	return nil
}

// PointerDownHandle starts resizing the element from one of its grips.
func (e *Editor) PointerDownHandle(pointerID int, id string, h Handle, at geom.Point) error {
	if e.active != nil {
		return ErrInteractionActive
	}
	if _, err := ParseHandle(string(h)); err != nil {
		return err
	}
	el, ok := e.CurrentSlide().Element(id)
	if !ok {
		return fmt.Errorf("%w: %s", document.ErrElementNotFound, id)
	}
	e.editing = ""
	e.selected = id
	e.active = &Interaction{
		Mode:      ModeResizing,
		PointerID: pointerID,
		ElementID: id,
		Handle:    h,
		Start:     at,
		Origin:    el.Rect(),
	}
	return nil
}

// PointerDownCanvas clears the selection when the empty canvas is pressed.
func (e *Editor) PointerDownCanvas() {
	if e.active != nil {
		return
	}
	e.editing = ""
	e.selected = ""
}

// PointerMove updates the preview geometry. The document is not touched.
func (e *Editor) PointerMove(pointerID int, at geom.Point) {
	if e.active == nil || e.active.PointerID != pointerID {
		return
	}
	r := e.active.candidate(e.scale, at)
	e.preview = &r
}

// PointerUp commits the gesture as a single mutation. Transient state is
// cleared whether or not the commit succeeds.
func (e *Editor) PointerUp(pointerID int, at geom.Point) error {
	in := e.active
	if in == nil || in.PointerID != pointerID {
		return nil
	}
	defer e.reset()

	if e.preview == nil && at == in.Start {
		return nil
	}
	final := in.candidate(e.scale, at)
	if final == in.Origin {
		return nil
	}

	slide := e.CurrentSlide()
	el, ok := slide.Element(in.ElementID)
	if !ok {
		return fmt.Errorf("%w: %s", document.ErrElementNotFound, in.ElementID)
	}
	next, err := slide.WithElement(el.WithRect(final))
	if err != nil {
		return err
	}
	return e.commitSlide(next)
}

// PointerCancel aborts the gesture after pointer capture was lost.
func (e *Editor) PointerCancel(pointerID int) {
	if e.active == nil || e.active.PointerID != pointerID {
		return
	}
	e.reset()
}

func (e *Editor) reset() {
	e.active = nil
	e.preview = nil
}

// --- Selection & text editing ---

// Select marks an element as current. Pass "" to clear.
func (e *Editor) Select(id string) error {
	if e.active != nil {
		return ErrInteractionActive
	}
	if id != "" {
		if _, ok := e.CurrentSlide().Element(id); !ok {
			return fmt.Errorf("%w: %s", document.ErrElementNotFound, id)
		}
	}
	if e.editing != id {
		e.editing = ""
	}
	e.selected = id
	return nil
}

// BeginTextEdit enters inline text editing on a text or button element.
func (e *Editor) BeginTextEdit(id string) error {
	if e.active != nil {
		return ErrInteractionActive
	}
	el, ok := e.CurrentSlide().Element(id)
	if !ok {
		return fmt.Errorf("%w: %s", document.ErrElementNotFound, id)
	}
	if !el.Type.HasText() {
		return fmt.Errorf("%w: %s is %s", ErrNotEditable, id, el.Type)
	}
	e.selected = id
	e.editing = id
	return nil
}

// EditText writes the edited content straight to the document.
func (e *Editor) EditText(content string) error {
	if e.editing == "" {
		return ErrNotEditable
	}
	slide := e.CurrentSlide()
	el, ok := slide.Element(e.editing)
	if !ok {
		id := e.editing
		e.editing = ""
		return fmt.Errorf("%w: %s", document.ErrElementNotFound, id)
	}
	if el.Content == content {
		return nil
	}
	el.Content = content
	next, err := slide.WithElement(el)
	if err != nil {
		return err
	}
	return e.commitSlide(next)
}

// EndTextEdit leaves inline text editing.
func (e *Editor) EndTextEdit() {
	e.editing = ""
}

// SelectSlide switches the slide being edited.
func (e *Editor) SelectSlide(i int) error {
	if e.active != nil {
		return ErrInteractionActive
	}
	if _, err := e.pres.Slide(i); err != nil {
		return err
	}
	if i != e.slide {
		e.selected = ""
		e.editing = ""
	}
	e.slide = i
	return nil
}

// Slides returns a copy of the slide list.
func (e *Editor) Slides() []document.Slide {
	return slices.Clone(e.pres.Slides)
}
