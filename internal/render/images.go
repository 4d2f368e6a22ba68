package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
)

var ErrRemoteImage = errors.New("remote images are not fetched")

// DirSource loads images uploaded to the local asset directory. Content
// values look like "/assets/<file>". Inline base64 data URLs are decoded;
// remote URLs are refused.
type DirSource struct {
	Dir    string
	Prefix string
}

func (s DirSource) Image(src string) (image.Image, error) {
	if strings.HasPrefix(src, "data:") {
		return decodeDataURL(src)
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return nil, ErrRemoteImage
	}
	name := filepath.Base(strings.TrimPrefix(src, s.Prefix))
	if name == "." || name == "/" {
		return nil, fmt.Errorf("invalid image path %q", src)
	}
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return img, nil
}

func decodeDataURL(src string) (image.Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data url")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding data url: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding data url: %w", err)
	}
	return img, nil
}
