package asset

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func upload(t *testing.T, h *Handler, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	return rec
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir, "/assets/")

	tests := []struct {
		name        string
		contentType string
		data        []byte
		wantStatus  int
		wantW       int
		wantH       int
	}{
		{"png", "image/png", pngBytes(t, 40, 20), http.StatusOK, 40, 20},
		{"oversized is scaled", "image/png", pngBytes(t, 3840, 960), http.StatusOK, MaxDimension, 480},
		{"wrong type", "application/pdf", []byte("%PDF"), http.StatusBadRequest, 0, 0},
		{"corrupt", "image/png", []byte("not a png"), http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, h, tt.contentType, tt.data)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp UploadResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(resp.ID, "asset_") || resp.URL != "/assets/"+resp.ID+".png" {
				t.Fatalf("resp = %+v", resp)
			}
			if resp.Width != tt.wantW || resp.Height != tt.wantH {
				t.Fatalf("size = %dx%d, want %dx%d", resp.Width, resp.Height, tt.wantW, tt.wantH)
			}
			if _, err := os.Stat(filepath.Join(dir, resp.ID+".png")); err != nil {
				t.Fatalf("stored file: %v", err)
			}

			srv := httptest.NewRecorder()
			h.Serve().ServeHTTP(srv, httptest.NewRequest(http.MethodGet, resp.URL, nil))
			if srv.Code != http.StatusOK || !strings.Contains(srv.Header().Get("Cache-Control"), "immutable") {
				t.Fatalf("serve status = %d headers = %v", srv.Code, srv.Header())
			}
		})
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{100, 50, 100, 50},
		{4000, 1000, 2000, 500},
		{1000, 4000, 500, 2000},
	}
	for _, tt := range tests {
		got := Fit(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), 2000).Bounds()
		if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
			t.Errorf("Fit(%dx%d) = %dx%d, want %dx%d", tt.w, tt.h, got.Dx(), got.Dy(), tt.wantW, tt.wantH)
		}
	}
}
