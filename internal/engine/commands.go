package engine

import (
	"errors"
	"fmt"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

// guard rejects document edits while a gesture holds the pointer.
func (e *Editor) guard() error {
	if e.pres == nil {
		return ErrNoDocument
	}
	if e.active != nil {
		return ErrInteractionActive
	}
	return nil
}

// AddElement appends a new element with default geometry and style on top
// of the current slide and selects it.
func (e *Editor) AddElement(t document.ElementType, shape document.ShapeType, content string) (document.Element, error) {
	if err := e.guard(); err != nil {
		return document.Element{}, err
	}
	if !t.Valid() {
		return document.Element{}, fmt.Errorf("unknown element type %q", t)
	}
	slide := e.CurrentSlide()
	el := document.NewElement(t, shape, content, slide.MaxZ()+1)
	next, err := slide.AppendElement(el)
	if err != nil {
		return document.Element{}, err
	}
	if err := e.commitSlide(next); err != nil {
		return document.Element{}, err
	}
	e.editing = ""
	e.selected = el.ID
	return el, nil
}

// UpdateElement replaces an element's fields wholesale, keyed by id.
func (e *Editor) UpdateElement(el document.Element) error {
	if err := e.guard(); err != nil {
		return err
	}
	next, err := e.CurrentSlide().WithElement(el)
	if err != nil {
		return err
	}
	return e.commitSlide(next)
}

// AddSlide appends an empty slide named page-N and switches to it.
func (e *Editor) AddSlide() (document.Slide, error) {
	if err := e.guard(); err != nil {
		return document.Slide{}, err
	}
	s := document.NewSlide(document.PageName(len(e.pres.Slides) + 1))
	e.commit(e.pres.WithSlides([]document.Slide{s}, e.clock.Now()))
	e.slide = len(e.pres.Slides) - 1
	e.selected = ""
	e.editing = ""
	return s, nil
}

// DuplicateSlide inserts a copy of slide i after it with fresh ids.
func (e *Editor) DuplicateSlide(i int) (document.Slide, error) {
	if err := e.guard(); err != nil {
		return document.Slide{}, err
	}
	src, err := e.pres.Slide(i)
	if err != nil {
		return document.Slide{}, err
	}
	cp := src
	cp.ID = typeid.NewSlideID()
	cp.Name = document.PageName(len(e.pres.Slides) + 1)
	cp.Elements = make([]document.Element, len(src.Elements))
	for j, el := range src.Elements {
		el = el.Clone()
		el.ID = typeid.NewElementID()
		cp.Elements[j] = el
	}
	e.commit(e.pres.InsertSlide(i+1, cp, e.clock.Now()))
	return cp, nil
}

// DeleteSlide removes slide i. The last remaining slide cannot be deleted.
func (e *Editor) DeleteSlide(i int) error {
	if err := e.guard(); err != nil {
		return err
	}
	next, err := e.pres.RemoveSlide(i, e.clock.Now())
	if err != nil {
		return err
	}
	removedCurrent := i == e.slide
	if i < e.slide {
		e.slide--
	}
	e.commit(next)
	if removedCurrent {
		e.selected = ""
		e.editing = ""
	}
	return nil
}

// AppendSlides adds generated slides to the end of the deck.
func (e *Editor) AppendSlides(slides []document.Slide) error {
	if err := e.guard(); err != nil {
		return err
	}
	if len(slides) == 0 {
		return nil
	}
	e.commit(e.pres.WithSlides(slides, e.clock.Now()))
	return nil
}

// SlideUpdate is a partial update of slide-level fields. Nil fields are
// left alone.
type SlideUpdate struct {
	Name            *string              `json:"name,omitempty"`
	Background      *string              `json:"backgroundColor,omitempty"`
	BackgroundImage *string              `json:"backgroundImage,omitempty"`
	Duration        *float64             `json:"duration,omitempty"`
	Transition      *document.Transition `json:"transition,omitempty"`
}

var ErrEmptyUpdate = errors.New("slide update has no fields")

// UpdateSlide applies u to slide i.
func (e *Editor) UpdateSlide(i int, u SlideUpdate) error {
	if err := e.guard(); err != nil {
		return err
	}
	s, err := e.pres.Slide(i)
	if err != nil {
		return err
	}
	changed := false
	if u.Name != nil {
		s.Name, changed = *u.Name, true
	}
	if u.Background != nil {
		s.Background, changed = *u.Background, true
	}
	if u.BackgroundImage != nil {
		s.BackgroundImage, changed = *u.BackgroundImage, true
	}
	if u.Duration != nil {
		s.Duration, changed = *u.Duration, true
	}
	if u.Transition != nil {
		s.Transition, changed = document.ParseTransition(string(*u.Transition)), true
	}
	if !changed {
		return ErrEmptyUpdate
	}
	next, err := e.pres.WithSlide(i, s, e.clock.Now())
	if err != nil {
		return err
	}
	e.commit(next)
	return nil
}

// SetTitle renames the presentation.
func (e *Editor) SetTitle(title string) error {
	if err := e.guard(); err != nil {
		return err
	}
	e.commit(e.pres.WithTitle(title, e.clock.Now()))
	return nil
}
