package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixUser         = "user"
	PrefixPresentation = "pres"
	PrefixSlide        = "slide"
	PrefixElement      = "el"
	PrefixAsset        = "asset"
	PrefixExport       = "exp"
	PrefixSession      = "sess"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewUserID() string         { return New(PrefixUser) }
func NewPresentationID() string { return New(PrefixPresentation) }
func NewSlideID() string        { return New(PrefixSlide) }
func NewElementID() string      { return New(PrefixElement) }
func NewAssetID() string        { return New(PrefixAsset) }
func NewExportID() string       { return New(PrefixExport) }
func NewSessionID() string      { return New(PrefixSession) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
