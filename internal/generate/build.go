// Package generate turns language-model output into slides.
package generate

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

const (
	PlaceholderFailed = "https://placehold.co/600x400?text=AI+Gen+Failed"
	PlaceholderError  = "https://placehold.co/600x400?text=Error"
	DefaultSlideName  = "AI Page"
)

// Generator produces slide fragments for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Result, error)
}

// ImageGenerator returns an image URL (often a data URL) for a prompt. An
// empty URL with a nil error means the provider declined.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type Result struct {
	Reply  string          `json:"reply"`
	Slides []SlideFragment `json:"slides"`
}

type SlideFragment struct {
	Name                  string            `json:"name"`
	BackgroundColor       string            `json:"backgroundColor"`
	BackgroundImagePrompt string            `json:"backgroundImagePrompt,omitempty"`
	Transition            string            `json:"transition,omitempty"`
	Elements              []ElementFragment `json:"elements"`
}

// ElementFragment mirrors the loose model schema; numbers the model left out
// stay nil and pick up defaults in Build.
type ElementFragment struct {
	Type       string   `json:"type"`
	Content    string   `json:"content"`
	Link       string   `json:"link,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily string   `json:"fontFamily,omitempty"`
	TextColor  string   `json:"textColor,omitempty"`
	BgColor    string   `json:"bgColor,omitempty"`
	ShapeType  string   `json:"shapeType,omitempty"`
}

// IDs supplies identifiers for built slides and elements. The zero value
// uses typeids.
type IDs struct {
	Slide   func() string
	Element func() string
}

func (ids IDs) slide() string {
	if ids.Slide != nil {
		return ids.Slide()
	}
	return typeid.NewSlideID()
}

func (ids IDs) element() string {
	if ids.Element != nil {
		return ids.Element()
	}
	return typeid.NewElementID()
}

// maxImageRequests bounds concurrent image generation calls.
const maxImageRequests = 4

// Build converts fragments into slides. Image prompts are resolved
// concurrently; a failed image becomes a placeholder instead of failing the
// batch. Only cancellation of ctx is returned as an error.
func Build(ctx context.Context, res *Result, images ImageGenerator, ids IDs) ([]document.Slide, error) {
	if res == nil || len(res.Slides) == 0 {
		return nil, nil
	}

	slides := make([]document.Slide, len(res.Slides))
	for i, frag := range res.Slides {
		slides[i] = buildSlide(frag, ids)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxImageRequests)
	for i, frag := range res.Slides {
		if p := strings.TrimSpace(frag.BackgroundImagePrompt); p != "" {
			g.Go(func() error {
				url, err := generateImage(gctx, images, p)
				if err != nil {
					slog.Warn("background image generation failed", "slide", i, "error", err)
					return nil
				}
				slides[i].BackgroundImage = url
				return nil
			})
		}
		for j := range slides[i].Elements {
			el := &slides[i].Elements[j]
			if el.Type != document.ElementImage {
				continue
			}
			prompt := el.Content
			g.Go(func() error {
				url, err := generateImage(gctx, images, prompt)
				switch {
				case err != nil:
					slog.Warn("image generation failed", "error", err)
					el.Content = PlaceholderError
				case url == "":
					el.Content = PlaceholderFailed
				default:
					el.Content = url
				}
				return nil
			})
		}
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slides, nil
}

func generateImage(ctx context.Context, images ImageGenerator, prompt string) (string, error) {
	if images == nil {
		return "", nil
	}
	return images.GenerateImage(ctx, prompt)
}

func buildSlide(frag SlideFragment, ids IDs) document.Slide {
	s := document.NewSlide(frag.Name)
	s.ID = ids.slide()
	if s.Name == "" {
		s.Name = DefaultSlideName
	}
	if frag.BackgroundColor != "" {
		s.Background = frag.BackgroundColor
	}
	s.Transition = document.ParseTransition(strings.ToLower(strings.TrimSpace(frag.Transition)))

	s.Elements = make([]document.Element, len(frag.Elements))
	for i, ef := range frag.Elements {
		s.Elements[i] = buildElement(ef, ids.element(), i+1)
	}
	return s
}

func buildElement(ef ElementFragment, id string, z int) document.Element {
	t := document.ElementType(strings.ToLower(ef.Type))
	if !t.Valid() {
		t = document.ElementText
	}

	el := document.Element{
		ID:      id,
		Type:    t,
		Content: ef.Content,
		Link:    ef.Link,
		Position: geom.Point{
			X: orDefault(ef.X, 100),
			Y: orDefault(ef.Y, 100),
		},
		Size: geom.Size{
			Width:  orDefault(ef.Width, 200),
			Height: orDefault(ef.Height, 50),
		},
		Style: document.Style{
			Fill:       document.ParseFill(ef.BgColor),
			TextColor:  "#000000",
			FontSize:   orDefault(ef.FontSize, 16),
			FontFamily: document.DefaultFontFamily,
			Opacity:    1,
			ZIndex:     z,
			TextAlign:  document.AlignCenter,
		},
	}
	if ef.TextColor != "" {
		el.Style.TextColor = ef.TextColor
	}
	if ef.FontFamily != "" {
		el.Style.FontFamily = ef.FontFamily
	}
	if t == document.ElementButton {
		el.Style.BorderRadius = 20
	}
	if t == document.ElementShape {
		el.Shape = parseShape(ef.ShapeType)
	}
	return el.Normalized()
}

func parseShape(s string) document.ShapeType {
	switch sh := document.ShapeType(strings.ToLower(s)); sh {
	case document.ShapeCircle, document.ShapeTriangle, document.ShapeStar,
		document.ShapeRounded, document.ShapeDiamond, document.ShapeArrow:
		return sh
	}
	return document.ShapeRectangle
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
