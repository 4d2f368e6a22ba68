// Package deck serves the presentation dashboard: listing, creating,
// opening, saving and deleting whole presentations.
package deck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"

	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/generate"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
	"github.com/nexusdeck/nexus/backend-go/internal/typeid"
)

var (
	ErrNotFound        = errors.New("presentation not found")
	ErrForbidden       = errors.New("forbidden")
	ErrIDMismatch      = errors.New("presentation id does not match")
	ErrNoGenerator     = errors.New("content generation is not configured")
	ErrNothingToDraw   = errors.New("presentation has no slides")
	ErrInvalidDocument = errors.New("invalid presentation document")
)

type Service struct {
	store     store.Store
	clock     clock.Clock
	raster    *render.Rasterizer
	generator generate.Generator
	images    generate.ImageGenerator
}

type Option func(*Service)

// WithGenerator enables content generation. images may be nil.
func WithGenerator(g generate.Generator, images generate.ImageGenerator) Option {
	return func(s *Service) {
		s.generator = g
		s.images = images
	}
}

func NewService(st store.Store, clk clock.Clock, raster *render.Rasterizer, opts ...Option) *Service {
	s := &Service{store: st, clock: clk, raster: raster}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, userID string, kind document.Kind, title string) (*document.Presentation, error) {
	pres := document.NewPresentation(kind, userID, s.clock.Now())
	if title != "" {
		pres = pres.WithTitle(title, s.clock.Now())
	}
	if err := s.store.Save(ctx, userID, pres); err != nil {
		return nil, fmt.Errorf("create presentation: %w", mapErr(err))
	}
	return pres, nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (*document.Presentation, error) {
	pres, err := s.store.Load(ctx, userID, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return pres, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]store.Summary, error) {
	list, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	return list, nil
}

// Save replaces the stored document. The caller's body must carry the same
// id as the route.
func (s *Service) Save(ctx context.Context, id, userID string, pres *document.Presentation) (*document.Presentation, error) {
	if pres.ID != id {
		return nil, ErrIDMismatch
	}
	if err := pres.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	cp := *pres
	cp.OwnerID = userID
	cp.LastModified = s.clock.Now().UnixMilli()
	if err := s.store.Save(ctx, userID, &cp); err != nil {
		return nil, mapErr(err)
	}
	return &cp, nil
}

// Import stores an exported document as a new presentation owned by userID.
func (s *Service) Import(ctx context.Context, userID string, data []byte) (*document.Presentation, error) {
	var pres document.Presentation
	if err := json.Unmarshal(data, &pres); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := pres.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	pres.ID = typeid.NewPresentationID()
	pres.OwnerID = userID
	pres.LastModified = s.clock.Now().UnixMilli()
	if err := s.store.Save(ctx, userID, &pres); err != nil {
		return nil, mapErr(err)
	}
	return &pres, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return mapErr(s.store.Delete(ctx, userID, id))
}

// Thumbnail renders the first slide as PNG at the given width.
func (s *Service) Thumbnail(ctx context.Context, w io.Writer, id, userID string, width int) error {
	pres, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if len(pres.Slides) == 0 {
		return ErrNothingToDraw
	}
	img, err := s.raster.Thumbnail(pres.Slides[0], width)
	if err != nil {
		return fmt.Errorf("render thumbnail: %w", err)
	}
	return png.Encode(w, img)
}

type GenerateResult struct {
	Reply        string                 `json:"reply"`
	Presentation *document.Presentation `json:"presentation"`
	// FirstNew is the index of the first appended slide, or -1.
	FirstNew int `json:"firstNew"`
}

// Generate asks the model for slides and appends them to the presentation.
func (s *Service) Generate(ctx context.Context, id, userID, prompt string) (*GenerateResult, error) {
	if s.generator == nil {
		return nil, ErrNoGenerator
	}
	pres, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	res, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	slides, err := generate.Build(ctx, res, s.images, generate.IDs{})
	if err != nil {
		return nil, err
	}

	out := &GenerateResult{Reply: Reply(res.Reply, len(slides)), Presentation: pres, FirstNew: -1}
	if len(slides) == 0 {
		return out, nil
	}
	out.FirstNew = len(pres.Slides)
	next := pres.WithSlides(slides, s.clock.Now())
	if err := s.store.Save(ctx, userID, next); err != nil {
		return nil, mapErr(err)
	}
	out.Presentation = next
	return out, nil
}

// Reply picks the assistant message shown after a generation.
func Reply(reply string, slides int) string {
	switch {
	case reply != "":
		return reply
	case slides > 0:
		return fmt.Sprintf("I've created %d new slides for you!", slides)
	default:
		return "I couldn't generate any slides for that request. Try being more specific."
	}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrForbidden):
		return ErrForbidden
	}
	return err
}
