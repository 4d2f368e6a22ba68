package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/nexusdeck/nexus/backend-go/internal/auth"
	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

// fakeEncoder writes a marker file instead of running ffmpeg.
type fakeEncoder struct {
	calls atomic.Int32
	fps   atomic.Int32
}

func (f *fakeEncoder) Available() error { return nil }

func (f *fakeEncoder) Encode(ctx context.Context, dir string, fps int, format, out string) error {
	f.calls.Add(1)
	f.fps.Store(int32(fps))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	return os.WriteFile(out, []byte(strings.Repeat("x", len(entries))), 0o644)
}

func samplePresentation() *document.Presentation {
	pres := document.NewPresentation(document.KindWebsite, "user_a", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	pres.Title = "Launch: <Q3> plan"
	second := document.NewSlide("pricing")
	btn := document.NewElement(document.ElementButton, "", "Home", 1)
	btn.Link = "index"
	ext := document.NewElement(document.ElementButton, "", "Docs", 2)
	ext.Link = "https://example.com/docs"
	second.Elements = []document.Element{btn, ext}
	pres.Slides = append(pres.Slides, second)
	return pres
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title, ext, want string
	}{
		{"Quarterly Review", "json", "Quarterly-Review.json"},
		{"  ", "html", "presentation.html"},
		{"a/b\\c", ".yaml", "a-b-c.yaml"},
		{"Launch: <Q3> plan", "mp4", "Launch---Q3--plan.mp4"},
	}
	for _, tt := range tests {
		if got := Filename(tt.title, tt.ext); got != tt.want {
			t.Errorf("Filename(%q, %q) = %q, want %q", tt.title, tt.ext, got, tt.want)
		}
	}
}

func TestJSONAndYAML(t *testing.T) {
	pres := samplePresentation()

	data, err := JSON(pres)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Title != pres.Title || len(back.Slides) != 2 || back.Slides[1].Elements[1].Link != "https://example.com/docs" {
		t.Fatalf("parsed %+v", back)
	}
	if _, err := ParseJSON([]byte(`{"slides":[]}`)); err == nil {
		t.Fatal("empty document accepted")
	}

	y, err := YAML(pres)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := yaml.Unmarshal(y, &generic); err != nil {
		t.Fatal(err)
	}
	if generic["title"] != pres.Title || generic["type"] != "website" {
		t.Fatalf("yaml = %v", generic)
	}
}

func TestHTML(t *testing.T) {
	out, err := HTML(samplePresentation())
	if err != nil {
		t.Fatal(err)
	}
	page := string(out)

	for _, want := range []string{
		`data-target="index"`,
		`href="https://example.com/docs"`,
		`"durations":[3,3]`,
		`"names":["index","pricing"]`,
		"Launch: &lt;Q3&gt; plan",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(page, "<Q3>") {
		t.Error("title not escaped")
	}
}

func TestRenderVideo(t *testing.T) {
	slides := []document.Slide{document.NewSlide("a"), document.NewSlide("b")}
	slides[0].Duration = 0.05
	slides[1].Duration = 0.05
	enc := &fakeEncoder{}
	raster := render.NewRasterizer(nil)
	opts := VideoOptions{
		Format:   "webm",
		FPS:      20,
		Width:    96,
		OutDir:   t.TempDir(),
		Playback: playback.Config{SettleDelay: 20 * time.Millisecond, GraceDelay: 20 * time.Millisecond},
	}

	art, err := RenderVideo(context.Background(), slides, raster, enc, clock.Real(), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(art.Path)
	if art.MIMEType != "video/webm" || art.Size == 0 || !strings.HasSuffix(art.Path, ".webm") {
		t.Fatalf("artifact = %+v", art)
	}
	if enc.calls.Load() != 1 || enc.fps.Load() != 20 {
		t.Fatalf("encoder calls=%d fps=%d", enc.calls.Load(), enc.fps.Load())
	}

	tests := []struct {
		name string
		opts VideoOptions
		want error
	}{
		{"format", VideoOptions{Format: "avi"}, ErrUnsupportedFormat},
		{"too long", VideoOptions{Format: "mp4", MaxDuration: time.Second, Playback: playback.DefaultConfig()}, ErrTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RenderVideo(context.Background(), slides, raster, enc, clock.Real(), tt.opts); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRenderVideoCancelled(t *testing.T) {
	slides := []document.Slide{document.NewSlide("a")}
	slides[0].Duration = 30
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	opts := VideoOptions{Format: "mp4", FPS: 10, Width: 64, OutDir: t.TempDir(), Playback: playback.DefaultConfig()}
	_, err := RenderVideo(ctx, slides, render.NewRasterizer(nil), &fakeEncoder{}, clock.Real(), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(opts.OutDir)
	if len(entries) != 0 {
		t.Fatalf("artifact left behind: %v", entries)
	}
}

func newTestHandler(t *testing.T) (http.Handler, *document.Presentation) {
	t.Helper()
	st := store.NewMemory()
	pres := samplePresentation()
	for i := range pres.Slides {
		pres.Slides[i].Duration = 0.05
	}
	if err := st.Save(context.Background(), "user_a", pres); err != nil {
		t.Fatal(err)
	}
	h := NewHandler(st, &fakeEncoder{}, render.NewRasterizer(nil), clock.Real(), HandlerConfig{
		FPS:      10,
		Width:    64,
		OutDir:   t.TempDir(),
		Playback: playback.Config{SettleDelay: 10 * time.Millisecond, GraceDelay: 10 * time.Millisecond},
	})

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), req.Header.Get("X-User"))))
		})
	})
	r.HandleFunc("/api/presentations/{presentationId}/export", h.Document).Methods("GET")
	r.HandleFunc("/api/presentations/{presentationId}/export/video", h.Video).Methods("POST")
	r.HandleFunc("/export/frames", h.Frames).Methods("POST")
	return r, pres
}

func TestDocumentEndpoint(t *testing.T) {
	h, pres := newTestHandler(t)
	base := "/api/presentations/" + pres.ID + "/export"

	tests := []struct {
		name   string
		user   string
		query  string
		status int
		ctype  string
	}{
		{"default json", "user_a", "", http.StatusOK, "application/json"},
		{"yaml", "user_a", "?format=yaml", http.StatusOK, "application/yaml"},
		{"html", "user_a", "?format=html", http.StatusOK, "text/html; charset=utf-8"},
		{"bad format", "user_a", "?format=pdf", http.StatusBadRequest, ""},
		{"other user", "user_b", "", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", base+tt.query, nil)
			req.Header.Set("X-User", tt.user)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			if tt.ctype != "" && rec.Header().Get("Content-Type") != tt.ctype {
				t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
			}
			if tt.status == http.StatusOK && !strings.Contains(rec.Header().Get("Content-Disposition"), "Launch---Q3--plan.") {
				t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
			}
		})
	}
}

func TestVideoEndpoint(t *testing.T) {
	h, pres := newTestHandler(t)
	body, _ := json.Marshal(videoRequest{Format: "gif"})
	req := httptest.NewRequest("POST", "/api/presentations/"+pres.ID+"/export/video", bytes.NewReader(body))
	req.Header.Set("X-User", "user_a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("Content-Type") != "image/gif" || rec.Body.Len() == 0 {
		t.Fatalf("type = %q len = %d", rec.Header().Get("Content-Type"), rec.Body.Len())
	}
}

func TestFramesEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("format", "mp4")
	mw.WriteField("fps", "12")
	mw.WriteField("name", "My Deck")
	for _, key := range []string{"frame_2", "frame_0", "frame_1"} {
		fw, _ := mw.CreateFormFile(key, key+".png")
		fw.Write([]byte("png"))
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/export/frames", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	// The fake encoder writes one byte per file in the frame directory.
	if rec.Body.String() != "xxx" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "My-Deck.mp4") {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
}
