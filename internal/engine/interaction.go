package engine

import (
	"fmt"
	"strings"

	"github.com/nexusdeck/nexus/backend-go/internal/geom"
)

// Mode is the state of the pointer interaction machine.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDragging
	ModeResizing
)

func (m Mode) String() string {
	switch m {
	case ModeDragging:
		return "dragging"
	case ModeResizing:
		return "resizing"
	}
	return "idle"
}

// Handle names one of the eight resize grips.
type Handle string

const (
	HandleN  Handle = "n"
	HandleS  Handle = "s"
	HandleE  Handle = "e"
	HandleW  Handle = "w"
	HandleNE Handle = "ne"
	HandleNW Handle = "nw"
	HandleSE Handle = "se"
	HandleSW Handle = "sw"
)

// Handles lists every resize grip, clockwise from the top-left corner.
var Handles = []Handle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

// ParseHandle validates a handle name.
func ParseHandle(s string) (Handle, error) {
	for _, h := range Handles {
		if string(h) == s {
			return h, nil
		}
	}
	return "", fmt.Errorf("unknown resize handle %q", s)
}

func (h Handle) north() bool { return strings.Contains(string(h), "n") }
func (h Handle) south() bool { return strings.Contains(string(h), "s") }
func (h Handle) east() bool  { return strings.Contains(string(h), "e") }
func (h Handle) west() bool  { return strings.Contains(string(h), "w") }

// Anchor returns the handle's position on r.
func (h Handle) Anchor(r geom.Rect) geom.Point {
	p := r.Center()
	if h.north() {
		p.Y = r.Y
	}
	if h.south() {
		p.Y = r.Bottom()
	}
	if h.west() {
		p.X = r.X
	}
	if h.east() {
		p.X = r.Right()
	}
	return p
}

// Resize applies a logical delta to r as if the handle were dragged by it.
// Width and height never drop below geom.MinExtent; for north and west
// handles the opposite edge stays where it was.
func Resize(r geom.Rect, h Handle, d geom.Point) geom.Rect {
	out := r
	if h.east() {
		out.Width = r.Width + d.X
	}
	if h.west() {
		out.Width = r.Width - d.X
		out.X = r.X + d.X
	}
	if h.south() {
		out.Height = r.Height + d.Y
	}
	if h.north() {
		out.Height = r.Height - d.Y
		out.Y = r.Y + d.Y
	}

	if out.Width < geom.MinExtent {
		out.Width = geom.MinExtent
		if h.west() {
			out.X = r.Right() - geom.MinExtent
		}
	}
	if out.Height < geom.MinExtent {
		out.Height = geom.MinExtent
		if h.north() {
			out.Y = r.Bottom() - geom.MinExtent
		}
	}
	return out
}

// Interaction is an in-flight drag or resize. Start is the pointer position
// in screen pixels when the gesture began; Origin is the committed geometry
// at that moment.
type Interaction struct {
	Mode      Mode
	PointerID int
	ElementID string
	Handle    Handle
	Start     geom.Point
	Origin    geom.Rect
}

// candidate computes the previewed geometry for a pointer at screen point at.
func (in *Interaction) candidate(scale geom.Scale, at geom.Point) geom.Rect {
	delta := at.Sub(in.Start)
	d := scale.DeltaToLogical(delta.X, delta.Y)
	if in.Mode == ModeResizing {
		return Resize(in.Origin, in.Handle, d)
	}
	return in.Origin.Offset(d)
}

// Geometry is an element's committed rect plus an optional uncommitted
// preview from the active gesture.
type Geometry struct {
	Committed geom.Rect  `json:"committed"`
	Preview   *geom.Rect `json:"preview,omitempty"`
}

// Current returns the preview when present, otherwise the committed rect.
func (g Geometry) Current() geom.Rect {
	if g.Preview != nil {
		return *g.Preview
	}
	return g.Committed
}
