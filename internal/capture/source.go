package capture

import (
	"image"
	"sync"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
)

// SlideSource renders whichever slide the scheduler is showing. Rendered
// frames are cached per slide.
type SlideSource struct {
	raster *render.Rasterizer
	scale  geom.Scale

	mu     sync.Mutex
	slides []document.Slide
	index  int
	cache  map[int]image.Image
}

func NewSlideSource(raster *render.Rasterizer, slides []document.Slide, width int) *SlideSource {
	if width <= 0 {
		width = int(geom.CanvasWidth)
	}
	return &SlideSource{
		raster: raster,
		scale:  geom.Scale(float64(width) / geom.CanvasWidth),
		slides: slides,
		cache:  make(map[int]image.Image),
	}
}

// Show selects the slide rendered by subsequent frames.
func (s *SlideSource) Show(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.slides) {
		s.index = i
	}
}

func (s *SlideSource) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if img, ok := s.cache[s.index]; ok {
		return img, nil
	}
	img, err := s.raster.Rasterize(render.Compile(s.slides[s.index], s.scale, render.Options{}))
	if err != nil {
		return nil, err
	}
	s.cache[s.index] = img
	return img, nil
}
