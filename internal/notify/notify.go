// Package notify is the default collaborator behind POST /notify-bot: it
// relays a message from an external system into a chat.
package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"hostbot/internal/handler"
	"hostbot/internal/httpapi"
	"hostbot/pkg/types"
)

const maxMessageLen = 4096

// Handler relays notifications to the platform connection.
type Handler struct {
	Logger zerolog.Logger
}

// New returns a Handler logging to logger.
func New(logger zerolog.Logger) *Handler {
	return &Handler{Logger: logger}
}

// HandleNotify implements httpapi.NotifyHandler.
func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request, conn handler.Conn) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		httpapi.WriteJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	var req types.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpapi.WriteJSONError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		httpapi.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	switch {
	case req.ChatID == 0:
		httpapi.WriteJSONError(w, http.StatusBadRequest, "chat_id is required")
		return
	case req.Message == "":
		httpapi.WriteJSONError(w, http.StatusBadRequest, "message is required")
		return
	case len(req.Message) > maxMessageLen:
		httpapi.WriteJSONError(w, http.StatusBadRequest, "message too long")
		return
	}
	if conn == nil || !conn.Ready() {
		httpapi.WriteJSONError(w, http.StatusServiceUnavailable, "bot not ready")
		return
	}
	if err := conn.Send(r.Context(), req.ChatID, req.Message); err != nil {
		h.Logger.Error().Err(err).Int64("chat", req.ChatID).Msg("notify delivery failed")
		httpapi.WriteJSONError(w, http.StatusBadGateway, "delivery failed")
		return
	}
	h.Logger.Info().Int64("chat", req.ChatID).Int64("user", req.UserID).Msg("notification delivered")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(types.NotifyResponse{OK: true})
}

var _ httpapi.NotifyHandler = (*Handler)(nil)
