package playback

import "strings"

// Key is a player keyboard action.
type Key string

const (
	KeyNone Key = ""
	KeyNext Key = "next"
	KeyPrev Key = "prev"
	KeyExit Key = "exit"
)

// ParseKey maps a DOM KeyboardEvent.key value onto a player action.
func ParseKey(key string) Key {
	switch key {
	case "ArrowRight", " ", "Space", "PageDown":
		return KeyNext
	case "ArrowLeft", "PageUp":
		return KeyPrev
	case "Escape", "Esc":
		return KeyExit
	}
	return KeyNone
}

var externalPrefixes = []string{"http://", "https://", "mailto:"}

// IsExternal reports whether a button link leaves the presentation.
func IsExternal(target string) bool {
	t := strings.ToLower(target)
	for _, p := range externalPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
