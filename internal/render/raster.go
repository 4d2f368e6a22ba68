package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
)

// ImageSource resolves an element's content (an image URL or asset path)
// into pixels.
type ImageSource interface {
	Image(src string) (image.Image, error)
}

// Rasterizer paints display lists with gg. It is safe for concurrent use.
type Rasterizer struct {
	images ImageSource

	mu    sync.Mutex
	fonts map[string]*truetype.Font
}

// NewRasterizer creates a rasterizer. images may be nil, in which case image
// and video elements are drawn as placeholders.
func NewRasterizer(images ImageSource) *Rasterizer {
	return &Rasterizer{
		images: images,
		fonts:  make(map[string]*truetype.Font),
	}
}

// Rasterize paints dl into a new image of dl's pixel size.
func (r *Rasterizer) Rasterize(dl DisplayList) (image.Image, error) {
	w, h := int(math.Round(dl.Width)), int(math.Round(dl.Height))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty display list %dx%d", w, h)
	}
	dc := gg.NewContext(w, h)

	dc.SetColor(parseColor(dl.Background, 1))
	dc.Clear()
	if dl.BackgroundImage != "" {
		r.drawImage(dc, dl.BackgroundImage, geom.Rect{Width: dl.Width, Height: dl.Height}, 1)
	}

	for _, it := range dl.Items {
		if err := r.drawItem(dc, it); err != nil {
			return nil, fmt.Errorf("drawing element %s: %w", it.ElementID, err)
		}
	}

	if dl.Selection != nil {
		drawSelection(dc, *dl.Selection)
	}
	return dc.Image(), nil
}

// Thumbnail renders slide at the given pixel width.
func (r *Rasterizer) Thumbnail(slide document.Slide, width int) (image.Image, error) {
	scale := geom.Scale(float64(width) / geom.CanvasWidth)
	return r.Rasterize(Compile(slide, scale, Options{}))
}

// EncodePNG rasterizes dl and writes it as PNG.
func (r *Rasterizer) EncodePNG(w io.Writer, dl DisplayList) error {
	img, err := r.Rasterize(dl)
	if err != nil {
		return err
	}
	dc := gg.NewContextForImage(img)
	return dc.EncodePNG(w)
}

func (r *Rasterizer) drawItem(dc *gg.Context, it Item) error {
	b := it.Bounds
	if b.IsEmpty() {
		return nil
	}
	opacity := it.Opacity
	if opacity <= 0 {
		return nil
	}

	switch it.Type {
	case document.ElementImage, document.ElementVideo:
		r.drawImage(dc, it.Content, b, opacity)
		strokeOutline(dc, it, opacity)
		return nil
	}

	if it.Shadow {
		dc.SetColor(color.NRGBA{A: uint8(64 * opacity)})
		outline(dc, it, b.Offset(geom.Point{X: 4, Y: 4}))
		dc.Fill()
	}

	if !it.Fill.IsZero() {
		setFill(dc, it.Fill, b, opacity)
		outline(dc, it, b)
		dc.Fill()
	}
	strokeOutline(dc, it, opacity)

	if it.Type.HasText() && it.Content != "" {
		if err := r.drawText(dc, it, opacity); err != nil {
			return err
		}
	}
	return nil
}

// outline appends the element's path to dc without painting it.
func outline(dc *gg.Context, it Item, b geom.Rect) {
	if it.Type != document.ElementShape {
		if it.BorderRadius > 0 {
			dc.DrawRoundedRectangle(b.X, b.Y, b.Width, b.Height, it.BorderRadius)
		} else {
			dc.DrawRectangle(b.X, b.Y, b.Width, b.Height)
		}
		return
	}

	switch it.Shape {
	case document.ShapeCircle:
		c := b.Center()
		dc.DrawEllipse(c.X, c.Y, b.Width/2, b.Height/2)
	case document.ShapeRounded:
		radius := it.BorderRadius
		if radius <= 0 {
			radius = min(b.Width, b.Height) / 8
		}
		dc.DrawRoundedRectangle(b.X, b.Y, b.Width, b.Height, radius)
	case document.ShapeTriangle, document.ShapeStar, document.ShapeDiamond, document.ShapeArrow:
		polygon(dc, shapePoints(it.Shape, b))
	default:
		if it.BorderRadius > 0 {
			dc.DrawRoundedRectangle(b.X, b.Y, b.Width, b.Height, it.BorderRadius)
		} else {
			dc.DrawRectangle(b.X, b.Y, b.Width, b.Height)
		}
	}
}

func polygon(dc *gg.Context, pts []geom.Point) {
	for i, p := range pts {
		if i == 0 {
			dc.MoveTo(p.X, p.Y)
		} else {
			dc.LineTo(p.X, p.Y)
		}
	}
	dc.ClosePath()
}

// shapePoints returns the unit polygon for a shape scaled into b.
func shapePoints(shape document.ShapeType, b geom.Rect) []geom.Point {
	var unit []geom.Point
	switch shape {
	case document.ShapeTriangle:
		unit = []geom.Point{{X: 0.5, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	case document.ShapeDiamond:
		unit = []geom.Point{{X: 0.5, Y: 0}, {X: 1, Y: 0.5}, {X: 0.5, Y: 1}, {X: 0, Y: 0.5}}
	case document.ShapeArrow:
		unit = []geom.Point{
			{X: 0, Y: 0.3}, {X: 0.6, Y: 0.3}, {X: 0.6, Y: 0}, {X: 1, Y: 0.5},
			{X: 0.6, Y: 1}, {X: 0.6, Y: 0.7}, {X: 0, Y: 0.7},
		}
	case document.ShapeStar:
		for i := 0; i < 10; i++ {
			rad := 0.5
			if i%2 == 1 {
				rad = 0.2
			}
			a := -math.Pi/2 + float64(i)*math.Pi/5
			unit = append(unit, geom.Point{X: 0.5 + rad*math.Cos(a), Y: 0.5 + rad*math.Sin(a)})
		}
	}
	pts := make([]geom.Point, len(unit))
	for i, u := range unit {
		pts[i] = geom.Point{X: b.X + u.X*b.Width, Y: b.Y + u.Y*b.Height}
	}
	return pts
}

func strokeOutline(dc *gg.Context, it Item, opacity float64) {
	if it.BorderWidth <= 0 || it.BorderStyle == document.BorderNone || it.BorderColor == "" {
		return
	}
	dc.SetColor(parseColor(it.BorderColor, opacity))
	dc.SetLineWidth(it.BorderWidth)
	switch it.BorderStyle {
	case document.BorderDashed:
		dc.SetDash(it.BorderWidth*3, it.BorderWidth*2)
	case document.BorderDotted:
		dc.SetDash(it.BorderWidth, it.BorderWidth)
	}
	outline(dc, it, it.Bounds)
	dc.Stroke()
	dc.SetDash()
}

// setFill installs a solid colour or linear gradient as the fill style.
func setFill(dc *gg.Context, f document.Fill, b geom.Rect, opacity float64) {
	if f.Kind != document.FillGradient {
		dc.SetColor(parseColor(f.Color, opacity))
		return
	}

	// CSS angles: 0deg points up, 90deg points right.
	rad := f.Angle * math.Pi / 180
	dx, dy := math.Sin(rad), -math.Cos(rad)
	half := (math.Abs(b.Width*dx) + math.Abs(b.Height*dy)) / 2
	c := b.Center()
	grad := gg.NewLinearGradient(c.X-dx*half, c.Y-dy*half, c.X+dx*half, c.Y+dy*half)
	for _, s := range f.Stops {
		grad.AddColorStop(s.Offset, parseColor(s.Color, opacity))
	}
	dc.SetFillStyle(grad)
}

func (r *Rasterizer) drawText(dc *gg.Context, it Item, opacity float64) error {
	size := it.FontSize
	if size <= 0 {
		size = 16
	}
	face, err := r.face(it.FontFamily, it.FontWeight, size)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetColor(parseColor(it.TextColor, opacity))

	align := gg.AlignCenter
	ax := 0.5
	x := it.Bounds.Center().X
	switch it.TextAlign {
	case document.AlignLeft:
		align, ax, x = gg.AlignLeft, 0, it.Bounds.X
	case document.AlignRight:
		align, ax, x = gg.AlignRight, 1, it.Bounds.Right()
	}
	dc.DrawStringWrapped(it.Content, x, it.Bounds.Center().Y, ax, 0.5, it.Bounds.Width, 1.2, align)
	return nil
}

// face returns a new face over a cached parsed font. Faces hold glyph caches
// and are not shared between goroutines. Monospace families map to Go Mono,
// all others to Go Regular.
func (r *Rasterizer) face(family, weight string, size float64) (font.Face, error) {
	name := "regular"
	if strings.Contains(strings.ToLower(family), "mono") || strings.HasPrefix(family, "Courier") {
		name = "mono"
	}
	if weight == "bold" || weight == "700" || weight == "800" || weight == "900" {
		name += "-bold"
	}

	r.mu.Lock()
	ft, ok := r.fonts[name]
	if !ok {
		var err error
		ft, err = truetype.Parse(fontData[name])
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("failed to parse font %s: %w", name, err)
		}
		r.fonts[name] = ft
	}
	r.mu.Unlock()

	return truetype.NewFace(ft, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

var fontData = map[string][]byte{
	"regular":      goregular.TTF,
	"regular-bold": gobold.TTF,
	"mono":         gomono.TTF,
	"mono-bold":    gomonobold.TTF,
}

func (r *Rasterizer) drawImage(dc *gg.Context, src string, b geom.Rect, opacity float64) {
	var img image.Image
	if r.images != nil && src != "" {
		var err error
		img, err = r.images.Image(src)
		if err != nil {
			img = nil
		}
	}
	if img == nil {
		dc.SetColor(color.NRGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: uint8(255 * opacity)})
		dc.DrawRectangle(b.X, b.Y, b.Width, b.Height)
		dc.Fill()
		return
	}

	dst, ok := dc.Image().(draw.Image)
	if !ok {
		return
	}
	target := image.Rect(int(b.X), int(b.Y), int(math.Round(b.Right())), int(math.Round(b.Bottom())))
	scaled := image.NewRGBA(image.Rect(0, 0, target.Dx(), target.Dy()))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
	mask := image.NewUniform(color.Alpha{A: uint8(255 * opacity)})
	draw.DrawMask(dst, target, scaled, image.Point{}, mask, image.Point{}, draw.Over)
}

func drawSelection(dc *gg.Context, sel Selection) {
	b := sel.Bounds
	dc.SetColor(parseColor("#3b82f6", 1))
	dc.SetLineWidth(2)
	dc.DrawRectangle(b.X, b.Y, b.Width, b.Height)
	dc.Stroke()
	for _, h := range sel.Handles {
		dc.DrawRectangle(h.At.X-4, h.At.Y-4, 8, 8)
		dc.SetColor(color.White)
		dc.FillPreserve()
		dc.SetColor(parseColor("#3b82f6", 1))
		dc.Stroke()
	}
}
