package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestScaleRoundTrip(t *testing.T) {
	points := []Point{
		{0, 0},
		{480, 270},
		{960, 540},
		{-12.5, 33.25},
		{1e-3, 7e5},
	}
	scales := []Scale{0.1, 0.25, 0.8, 1, 1.333, 2.5, 17}

	for _, s := range scales {
		for _, p := range points {
			got := s.ToLogical(s.ToScreen(p))
			if !near(got.X, p.X) || !near(got.Y, p.Y) {
				t.Errorf("scale %v: round trip of %+v = %+v", s, p, got)
			}
		}
	}
}

func TestScaleDerivedValues(t *testing.T) {
	s := Scale(0.5)
	if got := s.Length(24); got != 12 {
		t.Errorf("Length(24) = %v, want 12", got)
	}
	if got := s.DeltaToLogical(10, -20); got != (Point{20, -40}) {
		t.Errorf("DeltaToLogical = %+v", got)
	}
	r := s.RectToScreen(Rect{X: 100, Y: 50, Width: 300, Height: 60})
	if r != (Rect{X: 50, Y: 25, Width: 150, Height: 30}) {
		t.Errorf("RectToScreen = %+v", r)
	}
}

func TestZeroScaleToLogical(t *testing.T) {
	p := Point{3, 4}
	if got := Scale(0).ToLogical(p); got != p {
		t.Errorf("ToLogical with zero scale = %+v, want %+v", got, p)
	}
}

func TestFitScale(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		want Scale
	}{
		{"exact", 960, 540, 1},
		{"wide viewport", 1920, 540, 1},
		{"tall viewport", 480, 1000, 0.5},
		{"hd", 1920, 1080, 2},
		{"empty", 0, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FitScale(tt.w, tt.h); !near(float64(got), float64(tt.want)) {
				t.Errorf("FitScale(%v, %v) = %v, want %v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestViewportRoundTrip(t *testing.T) {
	v := Viewport{Width: 1280, Height: 1024}
	m := v.Matrix()

	corner := m.TransformPoint(Point{0, 0})
	if !near(corner.X, 0) || corner.Y <= 0 {
		t.Errorf("letterboxed origin = %+v, want x=0 and y>0", corner)
	}

	for _, p := range []Point{{0, 0}, {960, 540}, {123.4, 321}} {
		got := v.ToLogical(m.TransformPoint(p))
		if !near(got.X, p.X) || !near(got.Y, p.Y) {
			t.Errorf("viewport round trip of %+v = %+v", p, got)
		}
	}
}

func TestMatrixInvert(t *testing.T) {
	m := Translate(10, -4).Multiply(ScaleMatrix(2, 3))
	if !m.Multiply(m.Invert()).IsIdentity() {
		t.Errorf("m * m^-1 is not identity: %v", m.Multiply(m.Invert()))
	}
	if !(Matrix{}).Invert().IsIdentity() {
		t.Error("singular matrix should invert to identity")
	}
}

func TestRectUnionAndContains(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: 5, Width: 10, Height: 20}
	u := a.Union(b)
	if u != (Rect{X: 0, Y: 0, Width: 15, Height: 25}) {
		t.Errorf("Union = %+v", u)
	}
	if !u.Contains(Point{15, 25}) {
		t.Error("union should contain its far corner")
	}
	if (Rect{}).Union(a) != a {
		t.Error("union with empty rect should return the other")
	}
	if !(Rect{Width: 0, Height: 3}).IsEmpty() {
		t.Error("zero width rect should be empty")
	}
}

func TestSizeClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Size
		want Size
	}{
		{"unchanged", Size{Width: 200, Height: 50}, Size{Width: 200, Height: 50}},
		{"zero", Size{}, Size{Width: MinExtent, Height: MinExtent}},
		{"negative", Size{Width: -5, Height: 10}, Size{Width: MinExtent, Height: 10}},
		{"below floor", Size{Width: 40, Height: 2}, Size{Width: 40, Height: MinExtent}},
		{"nan", Size{Width: math.NaN(), Height: 30}, Size{Width: MinExtent, Height: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamp(); got != tt.want {
				t.Errorf("Clamp(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
