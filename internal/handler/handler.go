// Package handler serves the data service API the client talks to: user
// profiles, the points ledger, preferences, scan history and token issue.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petra184/mobile-app-sub002/internal/auth"
	"github.com/petra184/mobile-app-sub002/internal/realtime"
)

// Publisher pushes realtime events to subscribed clients. A non-empty
// userID addresses the event to that user only.
type Publisher interface {
	PublishEvent(d realtime.Domain, kind realtime.EventKind, payload any, userID string) (int, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// userParam returns the {id} path parameter, writing a 403 and returning
// false when the caller may not act on that user.
func userParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !auth.CanAccess(r.Context(), id) {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return id, true
}
