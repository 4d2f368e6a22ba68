package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
)

// JSON returns the indented document form used for "Export JSON".
func JSON(pres *document.Presentation) ([]byte, error) {
	data, err := json.MarshalIndent(pres, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal presentation: %w", err)
	}
	return data, nil
}

// YAML returns the same document as YAML.
func YAML(pres *document.Presentation) ([]byte, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(pres); err != nil {
		return nil, fmt.Errorf("marshal presentation: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// ParseJSON reads a document produced by JSON and checks its invariants.
func ParseJSON(data []byte) (*document.Presentation, error) {
	var pres document.Presentation
	if err := json.Unmarshal(data, &pres); err != nil {
		return nil, fmt.Errorf("parse presentation: %w", err)
	}
	if err := pres.Validate(); err != nil {
		return nil, err
	}
	return &pres, nil
}

// Filename turns a title into a safe download name with the given extension.
func Filename(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.TrimSpace(title))
	name = strings.Trim(name, "-")
	if name == "" {
		name = "presentation"
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
