package document

import (
	"encoding/json"

	"github.com/nexusdeck/nexus/backend-go/internal/geom"
)

type Kind string

const (
	KindSlideDeck Kind = "slide-deck"
	KindWebsite   Kind = "website"
)

// UnmarshalJSON accepts the legacy "slide" value for slide decks.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Kind(s) {
	case KindWebsite:
		*k = KindWebsite
	default:
		*k = KindSlideDeck
	}
	return nil
}

// Presentation is the root of the document tree. It is treated as immutable
// once published: edits produce a new value through the With* helpers.
type Presentation struct {
	ID           string  `json:"id" yaml:"id"`
	OwnerID      string  `json:"userId,omitempty" yaml:"userId,omitempty"`
	Title        string  `json:"title" yaml:"title"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty" yaml:"thumbnailUrl,omitempty"`
	Slides       []Slide `json:"slides" yaml:"slides"`
	LastModified int64   `json:"lastModified" yaml:"lastModified"`
	Kind         Kind    `json:"type" yaml:"type"`
}

type Transition string

const (
	TransitionNone  Transition = "none"
	TransitionFade  Transition = "fade"
	TransitionSlide Transition = "slide"
	TransitionCover Transition = "cover"
	TransitionZoom  Transition = "zoom"
	TransitionPush  Transition = "push"
)

// Transitions lists every supported slide transition.
var Transitions = []Transition{
	TransitionNone, TransitionFade, TransitionSlide,
	TransitionCover, TransitionZoom, TransitionPush,
}

// ParseTransition maps free-form input onto a known transition, falling back
// to fade.
func ParseTransition(s string) Transition {
	for _, t := range Transitions {
		if string(t) == s {
			return t
		}
	}
	return TransitionFade
}

type Slide struct {
	ID              string     `json:"id" yaml:"id"`
	Name            string     `json:"name,omitempty" yaml:"name,omitempty"`
	Elements        []Element  `json:"elements" yaml:"elements"`
	Background      string     `json:"backgroundColor" yaml:"backgroundColor"`
	BackgroundImage string     `json:"backgroundImage,omitempty" yaml:"backgroundImage,omitempty"`
	Duration        float64    `json:"duration" yaml:"duration"`
	Transition      Transition `json:"transition,omitempty" yaml:"transition,omitempty"`
}

type ElementType string

const (
	ElementText   ElementType = "text"
	ElementImage  ElementType = "image"
	ElementShape  ElementType = "shape"
	ElementVideo  ElementType = "video"
	ElementButton ElementType = "button"
)

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	switch t {
	case ElementText, ElementImage, ElementShape, ElementVideo, ElementButton:
		return true
	}
	return false
}

// HasText reports whether elements of this type carry editable text.
func (t ElementType) HasText() bool {
	return t == ElementText || t == ElementButton
}

type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeTriangle  ShapeType = "triangle"
	ShapeStar      ShapeType = "star"
	ShapeRounded   ShapeType = "rounded"
	ShapeDiamond   ShapeType = "diamond"
	ShapeArrow     ShapeType = "arrow"
)

type Element struct {
	ID        string      `json:"id" yaml:"id"`
	Type      ElementType `json:"type" yaml:"type"`
	Shape     ShapeType   `json:"shapeType,omitempty" yaml:"shapeType,omitempty"`
	Content   string      `json:"content" yaml:"content"`
	Link      string      `json:"link,omitempty" yaml:"link,omitempty"`
	Position  geom.Point  `json:"position" yaml:"position"`
	Size      geom.Size   `json:"size" yaml:"size"`
	Style     Style       `json:"style" yaml:"style"`
	Animation *Animation  `json:"animation,omitempty" yaml:"animation,omitempty"`
}

// UnmarshalJSON normalizes decoded geometry, so stored and imported
// documents never carry degenerate sizes.
func (e *Element) UnmarshalJSON(data []byte) error {
	type plain Element
	if err := json.Unmarshal(data, (*plain)(e)); err != nil {
		return err
	}
	*e = e.Normalized()
	return nil
}

// Normalized returns e with its size clamped to geom.MinExtent.
func (e Element) Normalized() Element {
	e.Size = e.Size.Clamp()
	return e
}

// Rect returns the element's committed geometry.
func (e Element) Rect() geom.Rect {
	return geom.RectOf(e.Position, e.Size)
}

// WithRect returns a copy of e with position and size replaced.
func (e Element) WithRect(r geom.Rect) Element {
	e.Position = r.Origin()
	e.Size = r.Size()
	return e
}

// Clone returns a deep copy of e.
func (e Element) Clone() Element {
	if e.Animation != nil {
		a := *e.Animation
		e.Animation = &a
	}
	e.Style.Fill = e.Style.Fill.Clone()
	return e
}

type BorderStyle string

const (
	BorderSolid  BorderStyle = "solid"
	BorderDashed BorderStyle = "dashed"
	BorderDotted BorderStyle = "dotted"
	BorderNone   BorderStyle = "none"
)

type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// Style holds visual attributes. Font size, border width and border radius
// are in logical units and scale with the view.
type Style struct {
	Fill         Fill        `json:"fill" yaml:"fill"`
	TextColor    string      `json:"color,omitempty" yaml:"color,omitempty"`
	FontSize     float64     `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	FontFamily   string      `json:"fontFamily,omitempty" yaml:"fontFamily,omitempty"`
	FontWeight   string      `json:"fontWeight,omitempty" yaml:"fontWeight,omitempty"`
	BorderColor  string      `json:"borderColor,omitempty" yaml:"borderColor,omitempty"`
	BorderWidth  float64     `json:"borderWidth,omitempty" yaml:"borderWidth,omitempty"`
	BorderStyle  BorderStyle `json:"borderStyle,omitempty" yaml:"borderStyle,omitempty"`
	BorderRadius float64     `json:"borderRadius,omitempty" yaml:"borderRadius,omitempty"`
	Opacity      float64     `json:"opacity" yaml:"opacity"`
	ZIndex       int         `json:"zIndex" yaml:"zIndex"`
	Shadow       bool        `json:"boxShadow,omitempty" yaml:"boxShadow,omitempty"`
	TextAlign    TextAlign   `json:"textAlign,omitempty" yaml:"textAlign,omitempty"`
	LineHeight   string      `json:"lineHeight,omitempty" yaml:"lineHeight,omitempty"`
}

// UnmarshalJSON defaults opacity to fully opaque and upgrades the legacy
// backgroundColor/background strings into a Fill.
func (s *Style) UnmarshalJSON(data []byte) error {
	type plain Style
	aux := struct {
		*plain
		Opacity         *float64 `json:"opacity"`
		BackgroundColor string   `json:"backgroundColor"`
		Background      string   `json:"background"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	s.Opacity = 1
	if aux.Opacity != nil {
		s.Opacity = *aux.Opacity
	}

	if s.Fill.Kind == "" {
		legacy := aux.Background
		if legacy == "" {
			legacy = aux.BackgroundColor
		}
		s.Fill = ParseFill(legacy)
	}
	return nil
}

type AnimationKind string

const (
	AnimationNone  AnimationKind = "none"
	AnimationFade  AnimationKind = "fade"
	AnimationSlide AnimationKind = "slide"
	AnimationScale AnimationKind = "scale"
)

// Animation describes an element's entrance animation. Duration and Delay are
// in seconds.
type Animation struct {
	Kind     AnimationKind `json:"type" yaml:"type"`
	Duration float64       `json:"duration" yaml:"duration"`
	Delay    float64       `json:"delay" yaml:"delay"`
}
