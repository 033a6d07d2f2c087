package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/petra184/mobile-app-sub002/internal/realtime"
)

// BroadcastHandler lets an operator push arbitrary domain events, which is
// how schedule, stories, rewards and offer changes reach clients of the twin.
type BroadcastHandler struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewBroadcastHandler(pub Publisher, logger *slog.Logger) *BroadcastHandler {
	return &BroadcastHandler{publisher: pub, logger: logger}
}

type broadcastRequest struct {
	Domain  string             `json:"domain"`
	Kind    realtime.EventKind `json:"kind"`
	Payload json.RawMessage    `json:"payload"`
	UserID  string             `json:"user_id"`
}

func (h *BroadcastHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	d, err := realtime.ParseDomain(req.Domain)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be Created, Updated or Deleted")
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage(`{}`)
	}

	n, err := h.publisher.PublishEvent(d, req.Kind, req.Payload, req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	h.logger.Info("event broadcast", "domain", d, "kind", req.Kind, "delivered", n)
	writeJSON(w, http.StatusAccepted, map[string]int{"delivered": n})
}
