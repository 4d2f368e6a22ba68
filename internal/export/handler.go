package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nexusdeck/nexus/backend-go/internal/auth"
	"github.com/nexusdeck/nexus/backend-go/internal/capture"
	"github.com/nexusdeck/nexus/backend-go/internal/clock"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

const maxUploadSize = 500 << 20 // 500MB

type HandlerConfig struct {
	FPS         int
	Width       int
	OutDir      string
	Playback    playback.Config
	MaxDuration time.Duration
}

type Handler struct {
	store   store.Store
	encoder capture.Encoder
	raster  *render.Rasterizer
	clock   clock.Clock
	cfg     HandlerConfig
}

func NewHandler(st store.Store, enc capture.Encoder, raster *render.Rasterizer, clk clock.Clock, cfg HandlerConfig) *Handler {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 10 * time.Minute
	}
	return &Handler{store: st, encoder: enc, raster: raster, clock: clk, cfg: cfg}
}

// Document serves the JSON, YAML or standalone HTML form of a presentation.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	id := mux.Vars(r)["presentationId"]

	pres, err := h.store.Load(r.Context(), userID, id)
	if err != nil {
		handleStoreError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	var data []byte
	var contentType string
	switch format {
	case "json":
		data, err = JSON(pres)
		contentType = "application/json"
	case "yaml":
		data, err = YAML(pres)
		contentType = "application/yaml"
	case "html":
		data, err = HTML(pres)
		contentType = "text/html; charset=utf-8"
	default:
		http.Error(w, "invalid format: must be json, yaml, or html", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("export document", "format", format, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, Filename(pres.Title, format)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

type videoRequest struct {
	Format string `json:"format"`
	FPS    int    `json:"fps"`
	Width  int    `json:"width"`
}

// Video plays the presentation on the server and streams back the recording.
// The request stays open for the length of the show.
func (h *Handler) Video(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	id := mux.Vars(r)["presentationId"]

	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Format == "" {
		req.Format = "webm"
	}
	if !validFormat(req.Format) {
		http.Error(w, ErrUnsupportedFormat.Error(), http.StatusBadRequest)
		return
	}
	if req.FPS <= 0 || req.FPS > 60 {
		req.FPS = h.cfg.FPS
	}
	if req.Width <= 0 || req.Width > 1920 {
		req.Width = h.cfg.Width
	}

	pres, err := h.store.Load(r.Context(), userID, id)
	if err != nil {
		handleStoreError(w, err)
		return
	}

	slog.Info("video export started", "presentation", id, "format", req.Format, "slides", len(pres.Slides))
	art, err := RenderVideo(r.Context(), pres.Slides, h.raster, h.encoder, h.clock, VideoOptions{
		Format:      req.Format,
		FPS:         req.FPS,
		Width:       req.Width,
		OutDir:      h.cfg.OutDir,
		Playback:    h.cfg.Playback,
		MaxDuration: h.cfg.MaxDuration,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLong):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case r.Context().Err() != nil:
			slog.Info("video export abandoned", "presentation", id)
		default:
			slog.Error("video export failed", "presentation", id, "error", err)
			http.Error(w, fmt.Sprintf("export failed: %v", err), http.StatusInternalServerError)
		}
		return
	}
	defer os.Remove(art.Path)

	serveFile(w, art.Path, art.MIMEType, Filename(pres.Title, req.Format))
	slog.Info("video export complete", "presentation", id, "size", art.Size)
}

// Frames encodes frames rendered by the client. Each multipart file field is
// named frame_<index>.
func (h *Handler) Frames(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "request too large", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	format := r.FormValue("format")
	if !validFormat(format) {
		http.Error(w, ErrUnsupportedFormat.Error(), http.StatusBadRequest)
		return
	}

	fps, err := strconv.Atoi(r.FormValue("fps"))
	if err != nil || fps <= 0 || fps > 120 {
		fps = 24
	}

	name := r.FormValue("name")
	if name == "" {
		name = "presentation"
	}

	tempDir, err := os.MkdirTemp("", "nexus-frames-*")
	if err != nil {
		slog.Error("create temp dir", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tempDir)

	// Map iteration order is random, so the frame index comes from the key.
	frameCount := 0
	for key, files := range r.MultipartForm.File {
		if !strings.HasPrefix(key, "frame_") || len(files) == 0 {
			continue
		}

		frameIdx, err := strconv.Atoi(strings.TrimPrefix(key, "frame_"))
		if err != nil || frameIdx < 0 {
			http.Error(w, "invalid frame key: "+key, http.StatusBadRequest)
			return
		}

		if err := saveUpload(files[0].Open, filepath.Join(tempDir, fmt.Sprintf(FramePattern, frameIdx))); err != nil {
			slog.Error("write frame file", "key", key, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		frameCount++
	}

	if frameCount == 0 {
		http.Error(w, "no frames uploaded", http.StatusBadRequest)
		return
	}

	slog.Info("frame export started", "format", format, "frames", frameCount, "fps", fps)

	out := filepath.Join(tempDir, "output."+format)
	if err := h.encoder.Encode(r.Context(), tempDir, fps, format, out); err != nil {
		slog.Error("ffmpeg failed", "error", err)
		http.Error(w, fmt.Sprintf("encoding failed: %v", err), http.StatusInternalServerError)
		return
	}

	serveFile(w, out, ContentType(format), Filename(name, format))
}

func saveUpload(open func() (multipart.File, error), path string) error {
	f, err := open()
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func serveFile(w http.ResponseWriter, path, contentType, filename string) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("open output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		slog.Error("stat output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	io.Copy(w, f)
}

func handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		slog.Error("load presentation", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
