package live

import (
	"encoding/json"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/engine"
	"github.com/nexusdeck/nexus/backend-go/internal/playback"
	"github.com/nexusdeck/nexus/backend-go/internal/render"
)

type Message struct {
	Type    string          `json:"type"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// Connection
	TypeWelcome = "welcome"
	TypeError   = "error"
	TypeAck     = "ack"
	TypeNotice  = "notice"

	// Document sync
	TypeDocSync = "doc.sync"
	TypeRender  = "render"

	// Pointer input
	TypePointerDown   = "pointer.down"
	TypePointerMove   = "pointer.move"
	TypePointerUp     = "pointer.up"
	TypePointerCancel = "pointer.cancel"

	// Selection and text
	TypeSelect    = "select"
	TypeTextBegin = "text.begin"
	TypeTextEdit  = "text.edit"
	TypeTextEnd   = "text.end"
	TypeViewport  = "viewport"

	// Element commands
	TypeElementAdd       = "element.add"
	TypeElementUpdate    = "element.update"
	TypeElementRaise     = "element.raise"
	TypeElementLower     = "element.lower"
	TypeElementDuplicate = "element.duplicate"
	TypeElementDelete    = "element.delete"

	// Slide commands
	TypeSlideAdd       = "slide.add"
	TypeSlideDuplicate = "slide.duplicate"
	TypeSlideDelete    = "slide.delete"
	TypeSlideSelect    = "slide.select"
	TypeSlideUpdate    = "slide.update"
	TypeTitleSet       = "title.set"

	// Playback
	TypePresent      = "play.present"
	TypeExport       = "play.export"
	TypeNext         = "play.next"
	TypePrev         = "play.prev"
	TypeExit         = "play.exit"
	TypeNavigate     = "play.navigate"
	TypeKey          = "play.key"
	TypePlayState    = "play.state"
	TypePlaySlide    = "play.slide"
	TypePlayExternal = "play.external"
	TypeExportDone   = "export.done"

	// Persistence and generation
	TypeSave         = "save"
	TypeSaveStatus   = "save.status"
	TypeGenerate     = "generate"
	TypeGenerateDone = "generate.done"
)

// --- Inbound payloads ---

// PointerPayload carries screen coordinates. Target is "element", "handle"
// or "canvas" on pointer.down.
type PointerPayload struct {
	PointerID int     `json:"pointerId"`
	Target    string  `json:"target,omitempty"`
	ElementID string  `json:"elementId,omitempty"`
	Handle    string  `json:"handle,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type ElementRefPayload struct {
	ElementID string `json:"elementId"`
}

type TextPayload struct {
	Content string `json:"content"`
}

type ViewportPayload struct {
	Scale float64 `json:"scale"`
}

type ElementAddPayload struct {
	Type    document.ElementType `json:"type"`
	Shape   document.ShapeType   `json:"shape,omitempty"`
	Content string               `json:"content,omitempty"`
}

type ElementUpdatePayload struct {
	Element document.Element `json:"element"`
}

type SlideRefPayload struct {
	Index int `json:"index"`
}

type SlideUpdatePayload struct {
	Index  int                `json:"index"`
	Update engine.SlideUpdate `json:"update"`
}

type TitlePayload struct {
	Title string `json:"title"`
}

type PresentPayload struct {
	Start int `json:"start"`
}

type NavigatePayload struct {
	Target string `json:"target"`
}

type KeyPayload struct {
	Key string `json:"key"`
}

type GeneratePayload struct {
	Prompt string `json:"prompt"`
}

// --- Outbound payloads ---

type WelcomePayload struct {
	ClientID     string                 `json:"clientId"`
	Presentation *document.Presentation `json:"presentation"`
	SaveStatus   string                 `json:"saveStatus"`
	PlayState    string                 `json:"playState"`
}

type DocSyncPayload struct {
	Presentation *document.Presentation `json:"presentation"`
	SlideIndex   int                    `json:"slideIndex"`
}

type RenderPayload struct {
	SlideIndex int                `json:"slideIndex"`
	Selected   string             `json:"selected,omitempty"`
	Editing    string             `json:"editing,omitempty"`
	Mode       string             `json:"mode"`
	Display    render.DisplayList `json:"display"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

type AckPayload struct {
	Element *document.Element `json:"element,omitempty"`
	Slide   *document.Slide   `json:"slide,omitempty"`
}

type PlayStatePayload struct {
	State string `json:"state"`
}

type PlaySlidePayload struct {
	Index int `json:"index"`
}

type PlayExternalPayload struct {
	Target string `json:"target"`
}

type ExportDonePayload struct {
	Artifact    playback.Artifact `json:"artifact"`
	DownloadURL string            `json:"downloadUrl,omitempty"`
	Error       string            `json:"error,omitempty"`
}

type SaveStatusPayload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type GenerateDonePayload struct {
	Reply    string `json:"reply"`
	FirstNew int    `json:"firstNew"`
}
