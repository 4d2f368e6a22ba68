package document

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrLastSlide       = errors.New("cannot delete the last slide")
	ErrSlideNotFound   = errors.New("slide not found")
	ErrElementNotFound = errors.New("element not found")
	ErrDuplicateID     = errors.New("duplicate element id")
	ErrInvalidDuration = errors.New("slide duration must be positive")
)

// Slide returns the slide at index i.
func (p *Presentation) Slide(i int) (Slide, error) {
	if i < 0 || i >= len(p.Slides) {
		return Slide{}, fmt.Errorf("%w: index %d", ErrSlideNotFound, i)
	}
	return p.Slides[i], nil
}

// SlideIndex finds a slide by id or name. Ids take precedence.
func (p *Presentation) SlideIndex(target string) int {
	if target == "" {
		return -1
	}
	for i, s := range p.Slides {
		if s.ID == target {
			return i
		}
	}
	for i, s := range p.Slides {
		if s.Name == target {
			return i
		}
	}
	return -1
}

// clone copies the presentation header and gives it a fresh slide slice.
func (p *Presentation) clone(now time.Time) *Presentation {
	next := *p
	next.Slides = slices.Clone(p.Slides)
	next.LastModified = now.UnixMilli()
	return &next
}

// WithSlide returns a copy of p with slide i replaced.
func (p *Presentation) WithSlide(i int, s Slide, now time.Time) (*Presentation, error) {
	if i < 0 || i >= len(p.Slides) {
		return nil, fmt.Errorf("%w: index %d", ErrSlideNotFound, i)
	}
	if s.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	next := p.clone(now)
	next.Slides[i] = s
	return next, nil
}

// WithSlides returns a copy of p with the given slides appended.
func (p *Presentation) WithSlides(slides []Slide, now time.Time) *Presentation {
	next := p.clone(now)
	next.Slides = append(next.Slides, slides...)
	return next
}

// InsertSlide returns a copy of p with s inserted at index i (clamped).
func (p *Presentation) InsertSlide(i int, s Slide, now time.Time) *Presentation {
	i = max(0, min(i, len(p.Slides)))
	next := p.clone(now)
	next.Slides = slices.Insert(next.Slides, i, s)
	return next
}

// RemoveSlide returns a copy of p without slide i. Removing the only slide
// is rejected and p is left untouched.
func (p *Presentation) RemoveSlide(i int, now time.Time) (*Presentation, error) {
	if i < 0 || i >= len(p.Slides) {
		return nil, fmt.Errorf("%w: index %d", ErrSlideNotFound, i)
	}
	if len(p.Slides) <= 1 {
		return nil, ErrLastSlide
	}
	next := p.clone(now)
	next.Slides = slices.Delete(next.Slides, i, i+1)
	return next, nil
}

// WithTitle returns a renamed copy of p.
func (p *Presentation) WithTitle(title string, now time.Time) *Presentation {
	next := p.clone(now)
	next.Title = title
	return next
}

// Element finds an element by id.
func (s Slide) Element(id string) (Element, bool) {
	i := s.elementIndex(id)
	if i < 0 {
		return Element{}, false
	}
	return s.Elements[i], true
}

func (s Slide) elementIndex(id string) int {
	return slices.IndexFunc(s.Elements, func(e Element) bool { return e.ID == id })
}

// WithElement returns a copy of s with the element sharing el's id replaced.
// The stored element is normalized.
func (s Slide) WithElement(el Element) (Slide, error) {
	i := s.elementIndex(el.ID)
	if i < 0 {
		return s, fmt.Errorf("%w: %s", ErrElementNotFound, el.ID)
	}
	s.Elements = slices.Clone(s.Elements)
	s.Elements[i] = el.Normalized()
	return s, nil
}

// WithElements returns a copy of s with every given element replaced in one
// step. Either all replacements apply or none do.
func (s Slide) WithElements(els ...Element) (Slide, error) {
	out := slices.Clone(s.Elements)
	for _, el := range els {
		i := s.elementIndex(el.ID)
		if i < 0 {
			return s, fmt.Errorf("%w: %s", ErrElementNotFound, el.ID)
		}
		out[i] = el.Normalized()
	}
	s.Elements = out
	return s, nil
}

// Exchange returns a copy of s with a stored at b's list position and b at
// a's. Elements with equal z values stack by list position.
func (s Slide) Exchange(a, b Element) (Slide, error) {
	i, j := s.elementIndex(a.ID), s.elementIndex(b.ID)
	if i < 0 {
		return s, fmt.Errorf("%w: %s", ErrElementNotFound, a.ID)
	}
	if j < 0 {
		return s, fmt.Errorf("%w: %s", ErrElementNotFound, b.ID)
	}
	s.Elements = slices.Clone(s.Elements)
	s.Elements[i], s.Elements[j] = b.Normalized(), a.Normalized()
	return s, nil
}

// AppendElement returns a copy of s with el added at the end of the list.
func (s Slide) AppendElement(el Element) (Slide, error) {
	if s.elementIndex(el.ID) >= 0 {
		return s, fmt.Errorf("%w: %s", ErrDuplicateID, el.ID)
	}
	s.Elements = append(slices.Clone(s.Elements), el.Normalized())
	return s, nil
}

// WithoutElement returns a copy of s with the element removed.
func (s Slide) WithoutElement(id string) (Slide, error) {
	i := s.elementIndex(id)
	if i < 0 {
		return s, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	s.Elements = slices.Delete(slices.Clone(s.Elements), i, i+1)
	return s, nil
}

// MaxZ returns the highest z-order on the slide, or 0 when empty.
func (s Slide) MaxZ() int {
	z := 0
	for i, e := range s.Elements {
		if i == 0 || e.Style.ZIndex > z {
			z = e.Style.ZIndex
		}
	}
	return z
}

// Validate checks the structural invariants of the document.
func (p *Presentation) Validate() error {
	if len(p.Slides) == 0 {
		return errors.New("presentation has no slides")
	}
	for i, s := range p.Slides {
		if s.Duration <= 0 {
			return fmt.Errorf("slide %d: %w", i, ErrInvalidDuration)
		}
		seen := make(map[string]bool, len(s.Elements))
		for _, e := range s.Elements {
			if seen[e.ID] {
				return fmt.Errorf("slide %d: %w: %s", i, ErrDuplicateID, e.ID)
			}
			seen[e.ID] = true
			if !e.Type.Valid() {
				return fmt.Errorf("slide %d: element %s has unknown type %q", i, e.ID, e.Type)
			}
		}
	}
	return nil
}
