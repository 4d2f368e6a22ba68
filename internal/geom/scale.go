package geom

// Scale is the number of screen pixels per logical canvas unit.
//
// Every view of a slide (editor canvas, filmstrip thumbnail, full-screen
// player, captured frame) renders the same stored geometry through a Scale.
// Values written back to the document are always converted with ToLogical or
// DeltaToLogical first.
type Scale float64

// DefaultEditorScale matches the editor's initial zoom.
const DefaultEditorScale Scale = 0.8

// ToScreen converts a logical point to screen pixels.
func (s Scale) ToScreen(p Point) Point {
	return Point{X: p.X * float64(s), Y: p.Y * float64(s)}
}

// ToLogical converts a screen point to logical units. A non-positive scale
// leaves the point unchanged.
func (s Scale) ToLogical(p Point) Point {
	if s <= 0 {
		return p
	}
	return Point{X: p.X / float64(s), Y: p.Y / float64(s)}
}

// DeltaToLogical converts a screen-space pointer delta to a logical delta.
func (s Scale) DeltaToLogical(dx, dy float64) Point {
	return s.ToLogical(Point{X: dx, Y: dy})
}

// Length scales a single scale-dependent value such as a font size, border
// width or corner radius.
func (s Scale) Length(v float64) float64 {
	return v * float64(s)
}

// SizeToScreen scales an extent.
func (s Scale) SizeToScreen(sz Size) Size {
	return Size{Width: sz.Width * float64(s), Height: sz.Height * float64(s)}
}

// RectToScreen scales a rect's origin and extent.
func (s Scale) RectToScreen(r Rect) Rect {
	return Rect{
		X:      r.X * float64(s),
		Y:      r.Y * float64(s),
		Width:  r.Width * float64(s),
		Height: r.Height * float64(s),
	}
}

// Matrix returns the scale as an affine matrix.
func (s Scale) Matrix() Matrix {
	return ScaleMatrix(float64(s), float64(s))
}

// FitScale returns the largest scale at which the logical canvas fits inside
// a viewport of the given pixel size.
func FitScale(width, height float64) Scale {
	if width <= 0 || height <= 0 {
		return 0
	}
	return Scale(min(width/CanvasWidth, height/CanvasHeight))
}

// Viewport maps the logical canvas into a letterboxed screen area: scaled to
// fit and centred.
type Viewport struct {
	Width  float64
	Height float64
}

// Scale returns the fit scale of the viewport.
func (v Viewport) Scale() Scale {
	return FitScale(v.Width, v.Height)
}

// Matrix returns the logical-to-screen transform: Translate(centre) * Scale.
func (v Viewport) Matrix() Matrix {
	s := float64(v.Scale())
	tx := (v.Width - CanvasWidth*s) / 2
	ty := (v.Height - CanvasHeight*s) / 2
	return Translate(tx, ty).Multiply(ScaleMatrix(s, s))
}

// ToLogical maps a screen point in the viewport back to canvas units.
func (v Viewport) ToLogical(p Point) Point {
	return v.Matrix().Invert().TransformPoint(p)
}
