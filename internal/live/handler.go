package live

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nexusdeck/nexus/backend-go/internal/auth"
	"github.com/nexusdeck/nexus/backend-go/internal/session"
	"github.com/nexusdeck/nexus/backend-go/internal/store"
)

// PlaygroundID opens a throwaway presentation without signing in.
const PlaygroundID = "playground"

type Handler struct {
	hub     *Hub
	auth    *auth.Service
	origins []string
}

func NewHandler(hub *Hub, authSvc *auth.Service, origins []string) *Handler {
	return &Handler{hub: hub, auth: authSvc, origins: origins}
}

// ServeWS opens the editor for {presentationId}. Browsers cannot set headers
// on a WebSocket handshake, so the token comes in the query string.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["presentationId"]

	var (
		userID string
		room   *Room
		err    error
	)
	if id == PlaygroundID {
		userID = "anon-" + uuid.New().String()[:8]
		room, err = h.hub.OpenPlayground(r.Context(), userID)
	} else {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		userID, err = h.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		room, err = h.hub.Open(r.Context(), userID, id)
	}
	if err != nil {
		handleOpenError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		room.Close()
		return
	}

	client := NewClient(room, conn, userID, uuid.New().String())
	room.Start(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// Download serves a video produced by an editor export.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	a, err := h.hub.Artifact(name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", a.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeFile(w, r, a.Path)
}

func handleOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "presentation not found", http.StatusNotFound)
	case errors.Is(err, store.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrStopped), errors.Is(err, session.ErrClosed):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	default:
		slog.Error("open room", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
