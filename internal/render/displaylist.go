// Package render turns a slide into a scale-specific display list and
// rasterizes display lists into images for thumbnails and captured frames.
package render

import (
	"sort"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
)

// Item is one element ready to paint. All lengths are in screen pixels.
type Item struct {
	ElementID    string               `json:"elementId"`
	Type         document.ElementType `json:"type"`
	Shape        document.ShapeType   `json:"shape,omitempty"`
	Bounds       geom.Rect            `json:"bounds"`
	Content      string               `json:"content,omitempty"`
	Fill         document.Fill        `json:"fill"`
	TextColor    string               `json:"color,omitempty"`
	FontSize     float64              `json:"fontSize,omitempty"`
	FontFamily   string               `json:"fontFamily,omitempty"`
	FontWeight   string               `json:"fontWeight,omitempty"`
	TextAlign    document.TextAlign   `json:"textAlign,omitempty"`
	BorderColor  string               `json:"borderColor,omitempty"`
	BorderWidth  float64              `json:"borderWidth,omitempty"`
	BorderStyle  document.BorderStyle `json:"borderStyle,omitempty"`
	BorderRadius float64              `json:"borderRadius,omitempty"`
	Opacity      float64              `json:"opacity"`
	Shadow       bool                 `json:"shadow,omitempty"`
	ZIndex       int                  `json:"zIndex"`
	Editing      bool                 `json:"editing,omitempty"`
}

// HandleMark is a resize handle drawn around the selection.
type HandleMark struct {
	Name string     `json:"name"`
	At   geom.Point `json:"at"`
}

// Selection outlines the selected element.
type Selection struct {
	ElementID string       `json:"elementId"`
	Bounds    geom.Rect    `json:"bounds"`
	Handles   []HandleMark `json:"handles"`
}

// DisplayList is a slide laid out at one scale, items in paint order.
type DisplayList struct {
	Width           float64    `json:"width"`
	Height          float64    `json:"height"`
	Scale           geom.Scale `json:"scale"`
	Background      string     `json:"background"`
	BackgroundImage string     `json:"backgroundImage,omitempty"`
	Items           []Item     `json:"items"`
	Selection       *Selection `json:"selection,omitempty"`
}

// Options control what Compile overlays on the committed slide.
type Options struct {
	// Overlay replaces the committed geometry of the listed elements, used
	// for the in-flight drag/resize preview.
	Overlay map[string]geom.Rect
	// Editing is the element currently in text-edit mode.
	Editing string
}

// Compile lays out slide at scale. Items are sorted by z-order; elements
// sharing a z keep their list order.
func Compile(slide document.Slide, scale geom.Scale, opts Options) DisplayList {
	dl := DisplayList{
		Width:           geom.CanvasWidth * float64(scale),
		Height:          geom.CanvasHeight * float64(scale),
		Scale:           scale,
		Background:      slide.Background,
		BackgroundImage: slide.BackgroundImage,
		Items:           make([]Item, 0, len(slide.Elements)),
	}
	if dl.Background == "" {
		dl.Background = document.DefaultBackground
	}

	for _, el := range PaintOrder(slide.Elements) {
		r := el.Rect()
		if o, ok := opts.Overlay[el.ID]; ok {
			r = o
		}
		dl.Items = append(dl.Items, Item{
			ElementID:    el.ID,
			Type:         el.Type,
			Shape:        el.Shape,
			Bounds:       scale.RectToScreen(r),
			Content:      el.Content,
			Fill:         el.Style.Fill,
			TextColor:    el.Style.TextColor,
			FontSize:     scale.Length(el.Style.FontSize),
			FontFamily:   el.Style.FontFamily,
			FontWeight:   el.Style.FontWeight,
			TextAlign:    el.Style.TextAlign,
			BorderColor:  el.Style.BorderColor,
			BorderWidth:  scale.Length(el.Style.BorderWidth),
			BorderStyle:  el.Style.BorderStyle,
			BorderRadius: scale.Length(el.Style.BorderRadius),
			Opacity:      el.Style.Opacity,
			Shadow:       el.Style.Shadow,
			ZIndex:       el.Style.ZIndex,
			Editing:      el.ID == opts.Editing,
		})
	}
	return dl
}

// PaintOrder returns the elements sorted bottom to top.
func PaintOrder(elements []document.Element) []document.Element {
	out := make([]document.Element, len(elements))
	copy(out, elements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Style.ZIndex < out[j].Style.ZIndex
	})
	return out
}

// Find returns the item for an element id.
func (dl DisplayList) Find(id string) (Item, bool) {
	for _, it := range dl.Items {
		if it.ElementID == id {
			return it, true
		}
	}
	return Item{}, false
}
