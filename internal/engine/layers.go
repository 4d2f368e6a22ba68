package engine

import (
	"fmt"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

// DuplicateOffset is how far a duplicate lands from its source.
var DuplicateOffset = geom.Point{X: 20, Y: 20}

// Raise moves an element one step up the visual stack.
func (e *Editor) Raise(id string) error { return e.restack(id, +1) }

// Lower moves an element one step down the visual stack.
func (e *Editor) Lower(id string) error { return e.restack(id, -1) }

// restack trades places with the neighbour in the requested direction so
// every other element keeps its relative order. With no neighbour the
// element's own z moves by one.
func (e *Editor) restack(id string, dir int) error {
	if err := e.guard(); err != nil {
		return err
	}
	slide := e.CurrentSlide()
	next, err := Restack(slide, id, dir)
	if err != nil {
		return err
	}
	return e.commitSlide(next)
}

// Restack is the pure form of Raise (dir > 0) and Lower (dir < 0).
func Restack(slide document.Slide, id string, dir int) (document.Slide, error) {
	order := render.PaintOrder(slide.Elements)
	rank := -1
	for i, el := range order {
		if el.ID == id {
			rank = i
			break
		}
	}
	if rank < 0 {
		return slide, fmt.Errorf("%w: %s", document.ErrElementNotFound, id)
	}

	cur := order[rank].Clone()
	neighbour := rank + 1
	if dir < 0 {
		neighbour = rank - 1
	}
	if neighbour < 0 || neighbour >= len(order) {
		if dir < 0 {
			cur.Style.ZIndex--
		} else {
			cur.Style.ZIndex++
		}
		return slide.WithElement(cur)
	}

	// Paint order sorts by z, then list position. Trading both moves the
	// pair exactly one rank, ties included.
	other := order[neighbour].Clone()
	cur.Style.ZIndex, other.Style.ZIndex = other.Style.ZIndex, cur.Style.ZIndex
	return slide.Exchange(cur, other)
}

// Duplicate copies an element with a fresh id, offset from the original,
// and selects the copy.
func (e *Editor) Duplicate(id string) (document.Element, error) {
	if err := e.guard(); err != nil {
		return document.Element{}, err
	}
	slide := e.CurrentSlide()
	src, ok := slide.Element(id)
	if !ok {
		return document.Element{}, fmt.Errorf("%w: %s", document.ErrElementNotFound, id)
	}
	cp := src.Clone()
	cp.ID = typeid.NewElementID()
	cp.Position = cp.Position.Add(DuplicateOffset)

	next, err := slide.AppendElement(cp)
	if err != nil {
		return document.Element{}, err
	}
	if err := e.commitSlide(next); err != nil {
		return document.Element{}, err
	}
	e.editing = ""
	e.selected = cp.ID
	return cp, nil
}

// Delete removes an element and clears the selection.
func (e *Editor) Delete(id string) error {
	if err := e.guard(); err != nil {
		return err
	}
	next, err := e.CurrentSlide().WithoutElement(id)
	if err != nil {
		return err
	}
	if err := e.commitSlide(next); err != nil {
		return err
	}
	e.selected = ""
	e.editing = ""
	return nil
}
