package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
)

type fakeImages struct {
	urls map[string]string
	errs map[string]error
}

func (f fakeImages) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if err := f.errs[prompt]; err != nil {
		return "", err
	}
	return f.urls[prompt], nil
}

func ptr(v float64) *float64 { return &v }

func seqIDs() IDs {
	var n atomic.Int64
	next := func(prefix string) func() string {
		return func() string { return fmt.Sprintf("%s%d", prefix, n.Add(1)) }
	}
	return IDs{Slide: next("s"), Element: next("e")}
}

func TestBuildDefaults(t *testing.T) {
	res := &Result{Slides: []SlideFragment{{
		Transition: "ZOOM",
		Elements: []ElementFragment{
			{Type: "text", Content: "Hello"},
			{Type: "button", Content: "Go", X: ptr(10), Y: ptr(20), Width: ptr(120), Height: ptr(40), FontSize: ptr(22), BgColor: "#112233", Link: "page-2"},
			{Type: "shape", ShapeType: "Star"},
			{Type: "hologram"},
		},
	}}}

	slides, err := Build(context.Background(), res, nil, seqIDs())
	if err != nil {
		t.Fatal(err)
	}
	if len(slides) != 1 {
		t.Fatalf("slides = %d", len(slides))
	}
	s := slides[0]
	if s.Name != DefaultSlideName || s.Background != "#ffffff" || s.Duration != 3 || s.Transition != document.TransitionZoom {
		t.Fatalf("slide = %+v", s)
	}

	text := s.Elements[0]
	if text.Position.X != 100 || text.Position.Y != 100 || text.Size.Width != 200 || text.Size.Height != 50 {
		t.Errorf("text geometry = %+v %+v", text.Position, text.Size)
	}
	if text.Style.FontSize != 16 || text.Style.FontFamily != "Inter" || text.Style.TextColor != "#000000" {
		t.Errorf("text style = %+v", text.Style)
	}
	if text.Style.TextAlign != document.AlignCenter || text.Style.BorderRadius != 0 {
		t.Errorf("text style = %+v", text.Style)
	}

	btn := s.Elements[1]
	if btn.Style.BorderRadius != 20 || btn.Style.FontSize != 22 || btn.Link != "page-2" {
		t.Errorf("button = %+v", btn)
	}
	if btn.Style.Fill.Kind != document.FillSolid || btn.Style.Fill.Color != "#112233" {
		t.Errorf("button fill = %+v", btn.Style.Fill)
	}
	if s.Elements[2].Shape != document.ShapeStar {
		t.Errorf("shape = %q", s.Elements[2].Shape)
	}
	if s.Elements[3].Type != document.ElementText {
		t.Errorf("unknown type became %q", s.Elements[3].Type)
	}
	for i, el := range s.Elements {
		if el.Style.ZIndex != i+1 {
			t.Errorf("element %d z = %d", i, el.Style.ZIndex)
		}
	}
}

func TestBuildClampsSize(t *testing.T) {
	res := &Result{Slides: []SlideFragment{{Elements: []ElementFragment{
		{Type: "shape", Width: ptr(0), Height: ptr(-30)},
		{Type: "text", Width: ptr(2), Height: ptr(40)},
	}}}}
	slides, err := Build(context.Background(), res, nil, seqIDs())
	if err != nil {
		t.Fatal(err)
	}
	want := []geom.Size{
		{Width: geom.MinExtent, Height: geom.MinExtent},
		{Width: geom.MinExtent, Height: 40},
	}
	for i, el := range slides[0].Elements {
		if el.Size != want[i] {
			t.Errorf("element %d size = %+v, want %+v", i, el.Size, want[i])
		}
	}
}

func TestBuildImages(t *testing.T) {
	res := &Result{Slides: []SlideFragment{{
		Name:                  "cover",
		BackgroundImagePrompt: "skyline",
		Elements: []ElementFragment{
			{Type: "image", Content: "server room"},
			{Type: "image", Content: "blocked"},
			{Type: "image", Content: "broken"},
		},
	}, {
		Name:                  "second",
		BackgroundImagePrompt: "broken",
	}}}
	images := fakeImages{
		urls: map[string]string{"skyline": "data:image/png;base64,AAA", "server room": "data:image/png;base64,BBB"},
		errs: map[string]error{"broken": errors.New("quota")},
	}

	slides, err := Build(context.Background(), res, images, IDs{})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"background", slides[0].BackgroundImage, "data:image/png;base64,AAA"},
		{"generated", slides[0].Elements[0].Content, "data:image/png;base64,BBB"},
		{"declined", slides[0].Elements[1].Content, PlaceholderFailed},
		{"failed", slides[0].Elements[2].Content, PlaceholderError},
		{"failed background", slides[1].BackgroundImage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := &Result{Slides: []SlideFragment{{Name: "x"}}}
	if _, err := Build(ctx, res, nil, IDs{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenAIClientGenerate(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		content := "```json\n{\"reply\":\"Done\",\"slides\":[{\"name\":\"intro\",\"elements\":[]}]}\n```"
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Config{Provider: ProviderDeepSeek, APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Generate(context.Background(), "pitch deck")
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply != "Done" || len(res.Slides) != 1 || res.Slides[0].Name != "intro" {
		t.Fatalf("result = %+v", res)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq.Model != "deepseek-chat" || gotReq.ResponseFormat["type"] != "json_object" {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || !strings.Contains(gotReq.Messages[0].Content, "960x540") {
		t.Errorf("messages = %+v", gotReq.Messages)
	}

	// DeepSeek has no image endpoint.
	url, err := c.GenerateImage(context.Background(), "cat")
	if err != nil || url != "" {
		t.Fatalf("image = %q, %v", url, err)
	}
}

func TestOpenAIClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "truncated",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"choices": []any{map[string]any{
						"message":       map[string]string{"content": `{"reply":"Do`},
						"finish_reason": "length",
					}},
				})
			},
			want: ErrTruncated,
		},
		{
			name: "empty",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"choices":[]}`))
			},
			want: ErrEmptyResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c, err := NewOpenAIClient(Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer srv.Close()
		c, _ := NewOpenAIClient(Config{Provider: ProviderGrok, APIKey: "k", BaseURL: srv.URL})
		_, err := c.Generate(context.Background(), "x")
		if err == nil || !strings.Contains(err.Error(), "401") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("config", func(t *testing.T) {
		if _, err := NewOpenAIClient(Config{Provider: ProviderOpenAI}); !errors.Is(err, ErrMissingKey) {
			t.Errorf("missing key: %v", err)
		}
		if _, err := NewOpenAIClient(Config{Provider: "gemini", APIKey: "k"}); !errors.Is(err, ErrUnknownProvider) {
			t.Errorf("unknown provider: %v", err)
		}
	})
}

func TestOpenAIClientImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req imageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/images/generations" || req.ResponseFormat != "b64_json" {
			http.Error(w, "unexpected", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"data":[{"b64_json":"QUJD"}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	url, err := c.GenerateImage(context.Background(), "cat")
	if err != nil {
		t.Fatal(err)
	}
	if url != "data:image/png;base64,QUJD" {
		t.Fatalf("url = %q", url)
	}
}
