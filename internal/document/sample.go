package document

import (
	"fmt"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/geom"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

const (
	DefaultFontFamily  = "Inter"
	DefaultBackground  = "#ffffff"
	DefaultDuration    = 3.0
	DefaultAccentColor = "#3b82f6"
)

// Fonts lists the font families offered by the editor.
var Fonts = []string{
	"Inter", "Roboto", "Open Sans", "Lato",
	"Montserrat", "Playfair Display", "Merriweather", "Courier Prime",
}

// NewPresentation builds a fresh document with a single title slide.
func NewPresentation(kind Kind, ownerID string, now time.Time) *Presentation {
	if kind != KindWebsite {
		kind = KindSlideDeck
	}
	title := "Untitled Presentation"
	if kind == KindWebsite {
		title = "Untitled Website"
	}

	slide := NewSlide("index")
	slide.Elements = []Element{{
		ID:       typeid.NewElementID(),
		Type:     ElementText,
		Content:  "Double click to edit title",
		Position: geom.Point{X: 100, Y: 100},
		Size:     geom.Size{Width: 760, Height: 100},
		Style: Style{
			Fill:       NoFill(),
			TextColor:  "#1f2937",
			FontSize:   48,
			FontFamily: DefaultFontFamily,
			FontWeight: "bold",
			Opacity:    1,
			ZIndex:     1,
			TextAlign:  AlignCenter,
		},
	}}

	return &Presentation{
		ID:           typeid.NewPresentationID(),
		OwnerID:      ownerID,
		Title:        title,
		Slides:       []Slide{slide},
		LastModified: now.UnixMilli(),
		Kind:         kind,
	}
}

// NewSlide returns an empty slide with default background, duration and
// transition.
func NewSlide(name string) Slide {
	return Slide{
		ID:         typeid.NewSlideID(),
		Name:       name,
		Elements:   []Element{},
		Background: DefaultBackground,
		Duration:   DefaultDuration,
		Transition: TransitionFade,
	}
}

// PageName returns the default name for the n-th slide (1-based).
func PageName(n int) string {
	return fmt.Sprintf("page-%d", n)
}

// NewElement returns an element of the given type with default geometry and
// style, placed at z.
func NewElement(t ElementType, shape ShapeType, content string, z int) Element {
	size := geom.Size{Width: 300, Height: 300}
	switch t {
	case ElementButton:
		size = geom.Size{Width: 160, Height: 50}
	case ElementText:
		size = geom.Size{Width: 300, Height: 60}
	}

	style := Style{
		Fill:       NoFill(),
		TextColor:  "#000000",
		FontSize:   24,
		FontFamily: DefaultFontFamily,
		Opacity:    1,
		ZIndex:     z,
		TextAlign:  AlignCenter,
	}
	if t == ElementShape || t == ElementButton {
		style.Fill = SolidFill(DefaultAccentColor)
	}
	if t == ElementButton {
		style.FontSize = 18
		style.TextColor = "#ffffff"
		style.BorderRadius = 20
	}
	if t == ElementShape && shape == "" {
		shape = ShapeRectangle
	}
	if t != ElementShape {
		shape = ""
	}
	if shape == ShapeRounded {
		style.BorderRadius = 20
	}

	if content == "" {
		switch t {
		case ElementText:
			content = "New Text"
		case ElementButton:
			content = "Button"
		}
	}

	return Element{
		ID:       typeid.NewElementID(),
		Type:     t,
		Shape:    shape,
		Content:  content,
		Position: geom.Point{X: 300, Y: 200},
		Size:     size,
		Style:    style,
		Animation: &Animation{
			Kind:     AnimationFade,
			Duration: 1,
		},
	}
}
