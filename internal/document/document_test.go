package document

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/geom"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func twoSlides() *Presentation {
	p := NewPresentation(KindSlideDeck, "user_1", epoch)
	return p.WithSlides([]Slide{NewSlide(PageName(2))}, epoch)
}

func TestNewPresentation(t *testing.T) {
	p := NewPresentation(KindSlideDeck, "user_1", epoch)
	if p.Title != "Untitled Presentation" {
		t.Errorf("title = %q", p.Title)
	}
	if len(p.Slides) != 1 || p.Slides[0].Name != "index" {
		t.Fatalf("slides = %+v", p.Slides)
	}
	if len(p.Slides[0].Elements) != 1 {
		t.Fatalf("want title element, got %d elements", len(p.Slides[0].Elements))
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	w := NewPresentation(KindWebsite, "user_1", epoch)
	if w.Title != "Untitled Website" || w.Kind != KindWebsite {
		t.Errorf("website = %q %q", w.Title, w.Kind)
	}
}

func TestNewElementDefaults(t *testing.T) {
	tests := []struct {
		name     string
		typ      ElementType
		shape    ShapeType
		size     geom.Size
		fontSize float64
		radius   float64
		fill     FillKind
	}{
		{"text", ElementText, "", geom.Size{Width: 300, Height: 60}, 24, 0, FillNone},
		{"button", ElementButton, "", geom.Size{Width: 160, Height: 50}, 18, 20, FillSolid},
		{"image", ElementImage, "", geom.Size{Width: 300, Height: 300}, 24, 0, FillNone},
		{"rounded shape", ElementShape, ShapeRounded, geom.Size{Width: 300, Height: 300}, 24, 20, FillSolid},
		{"circle", ElementShape, ShapeCircle, geom.Size{Width: 300, Height: 300}, 24, 0, FillSolid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := NewElement(tt.typ, tt.shape, "", 7)
			if el.Size != tt.size {
				t.Errorf("size = %+v, want %+v", el.Size, tt.size)
			}
			if el.Position != (geom.Point{X: 300, Y: 200}) {
				t.Errorf("position = %+v", el.Position)
			}
			if el.Style.FontSize != tt.fontSize {
				t.Errorf("font size = %v, want %v", el.Style.FontSize, tt.fontSize)
			}
			if el.Style.BorderRadius != tt.radius {
				t.Errorf("radius = %v, want %v", el.Style.BorderRadius, tt.radius)
			}
			if el.Style.Fill.Kind != tt.fill {
				t.Errorf("fill = %v, want %v", el.Style.Fill.Kind, tt.fill)
			}
			if el.Style.ZIndex != 7 {
				t.Errorf("z = %d", el.Style.ZIndex)
			}
		})
	}
}

func TestRemoveLastSlideRejected(t *testing.T) {
	p := NewPresentation(KindSlideDeck, "user_1", epoch)
	before, _ := json.Marshal(p)

	next, err := p.RemoveSlide(0, epoch.Add(time.Minute))
	if !errors.Is(err, ErrLastSlide) {
		t.Fatalf("err = %v, want ErrLastSlide", err)
	}
	if next != nil {
		t.Fatal("expected no new presentation")
	}
	after, _ := json.Marshal(p)
	if string(before) != string(after) {
		t.Fatal("presentation changed after rejected delete")
	}
}

func TestRemoveSlideCopyOnWrite(t *testing.T) {
	p := twoSlides()
	later := epoch.Add(time.Second)

	next, err := p.RemoveSlide(0, later)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Slides) != 2 {
		t.Fatalf("original mutated: %d slides", len(p.Slides))
	}
	if len(next.Slides) != 1 || next.Slides[0].Name != "page-2" {
		t.Fatalf("next slides = %+v", next.Slides)
	}
	if next.LastModified != later.UnixMilli() {
		t.Errorf("LastModified not bumped")
	}
}

func TestSlideElementHelpers(t *testing.T) {
	s := NewSlide("a")
	a := NewElement(ElementText, "", "a", 3)
	b := NewElement(ElementShape, ShapeCircle, "", 9)

	s, err := s.AppendElement(a)
	if err != nil {
		t.Fatal(err)
	}
	s, err = s.AppendElement(b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendElement(a); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate append err = %v", err)
	}
	if got := s.MaxZ(); got != 9 {
		t.Errorf("MaxZ = %d, want 9", got)
	}

	moved := a.WithRect(geom.Rect{X: 1, Y: 2, Width: 3, Height: 4})
	s2, err := s.WithElement(moved)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Element(a.ID); got.Position.X != 300 {
		t.Error("WithElement mutated the source slide")
	}
	if got, _ := s2.Element(a.ID); got.Position.X != 1 {
		t.Errorf("position = %+v", got.Position)
	}

	s3, err := s2.WithoutElement(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(s3.Elements) != 1 || len(s2.Elements) != 2 {
		t.Fatalf("remove: %d / %d", len(s3.Elements), len(s2.Elements))
	}
	if _, err := s3.WithoutElement("missing"); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestSlideIndex(t *testing.T) {
	p := twoSlides()
	if got := p.SlideIndex("page-2"); got != 1 {
		t.Errorf("by name = %d", got)
	}
	if got := p.SlideIndex(p.Slides[0].ID); got != 0 {
		t.Errorf("by id = %d", got)
	}
	if got := p.SlideIndex("nope"); got != -1 {
		t.Errorf("missing = %d", got)
	}
}

func TestParseFill(t *testing.T) {
	tests := []struct {
		in    string
		kind  FillKind
		angle float64
		stops int
	}{
		{"", FillNone, 0, 0},
		{"transparent", FillNone, 0, 0},
		{"#ff0000", FillSolid, 0, 0},
		{"linear-gradient(90deg, #fff 0%, #000 100%)", FillGradient, 90, 2},
		{"linear-gradient(to right, rgba(0, 0, 0, 0.5), #000)", FillGradient, 90, 2},
		{"linear-gradient(#fff, #eee, #000)", FillGradient, 180, 3},
		{"linear-gradient(45deg, #abc)", FillSolid, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f := ParseFill(tt.in)
			if f.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", f.Kind, tt.kind)
			}
			if f.Kind == FillGradient {
				if f.Angle != tt.angle {
					t.Errorf("angle = %v, want %v", f.Angle, tt.angle)
				}
				if len(f.Stops) != tt.stops {
					t.Errorf("stops = %d, want %d", len(f.Stops), tt.stops)
				}
				if last := f.Stops[len(f.Stops)-1]; last.Offset != 1 {
					t.Errorf("last offset = %v", last.Offset)
				}
			}
		})
	}

	f := ParseFill("linear-gradient(to right, rgba(0, 0, 0, 0.5) 20%, #000)")
	if f.Stops[0].Color != "rgba(0, 0, 0, 0.5)" || f.Stops[0].Offset != 0.2 {
		t.Errorf("first stop = %+v", f.Stops[0])
	}
}

func TestStyleLegacyJSON(t *testing.T) {
	var s Style
	if err := json.Unmarshal([]byte(`{"backgroundColor":"#123456","zIndex":4}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.Opacity != 1 {
		t.Errorf("opacity = %v, want default 1", s.Opacity)
	}
	if s.Fill.Kind != FillSolid || s.Fill.Color != "#123456" {
		t.Errorf("fill = %+v", s.Fill)
	}
	if s.ZIndex != 4 {
		t.Errorf("z = %d", s.ZIndex)
	}

	var k Kind
	if err := json.Unmarshal([]byte(`"slide"`), &k); err != nil || k != KindSlideDeck {
		t.Errorf("kind = %q, %v", k, err)
	}
}

func TestValidate(t *testing.T) {
	p := twoSlides()
	p.Slides[1].Duration = 0
	if err := p.Validate(); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("err = %v", err)
	}

	p = twoSlides()
	el := p.Slides[0].Elements[0]
	p.Slides[0].Elements = append(p.Slides[0].Elements, el)
	if err := p.Validate(); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v", err)
	}
}

func TestElementSizeFloor(t *testing.T) {
	floor := geom.Size{Width: geom.MinExtent, Height: geom.MinExtent}
	degenerate := func(id string) Element {
		el := NewElement(ElementShape, ShapeRectangle, "", 1)
		el.ID = id
		el.Size = geom.Size{Width: 0, Height: -30}
		return el
	}
	base := NewSlide("index")
	base.Elements = []Element{NewElement(ElementText, "", "", 1)}
	existing := base.Elements[0].ID

	tests := []struct {
		name  string
		apply func() (Slide, string, error)
	}{
		{"append", func() (Slide, string, error) {
			s, err := base.AppendElement(degenerate("el_new"))
			return s, "el_new", err
		}},
		{"replace", func() (Slide, string, error) {
			s, err := base.WithElement(degenerate(existing))
			return s, existing, err
		}},
		{"replace many", func() (Slide, string, error) {
			s, err := base.WithElements(degenerate(existing))
			return s, existing, err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, id, err := tt.apply()
			if err != nil {
				t.Fatal(err)
			}
			el, _ := s.Element(id)
			if el.Size != floor {
				t.Fatalf("size = %+v, want %+v", el.Size, floor)
			}
		})
	}

	var el Element
	raw := `{"id":"el_1","type":"shape","position":{"x":1,"y":2},"size":{"width":-5,"height":10},"style":{}}`
	if err := json.Unmarshal([]byte(raw), &el); err != nil {
		t.Fatal(err)
	}
	if el.Size != (geom.Size{Width: geom.MinExtent, Height: 10}) || el.Position != (geom.Point{X: 1, Y: 2}) {
		t.Fatalf("decoded = %+v at %+v", el.Size, el.Position)
	}
	if el.Style.Opacity != 1 {
		t.Errorf("style defaults lost: opacity = %v", el.Style.Opacity)
	}
}
