package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/petra184/mobile-app-sub002/internal/model"
	"github.com/petra184/mobile-app-sub002/internal/realtime"
	"github.com/petra184/mobile-app-sub002/internal/store"
)

type UserHandler struct {
	userStore   *store.UserStore
	pointsStore *store.PointsStore
	prefStore   *store.PreferenceStore
	scanStore   *store.ScanStore
	publisher   Publisher
	logger      *slog.Logger
}

func NewUserHandler(us *store.UserStore, ps *store.PointsStore, prefs *store.PreferenceStore, ss *store.ScanStore, pub Publisher, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userStore:   us,
		pointsStore: ps,
		prefStore:   prefs,
		scanStore:   ss,
		publisher:   pub,
		logger:      logger,
	}
}

func (h *UserHandler) publish(d realtime.Domain, kind realtime.EventKind, payload any, userID string) {
	if h.publisher == nil {
		return
	}
	if _, err := h.publisher.PublishEvent(d, kind, payload, userID); err != nil {
		h.logger.Error("publish event", "domain", d, "error", err)
	}
}

// lookup loads the user or writes a 404. It returns nil when the response
// has already been written.
func (h *UserHandler) lookup(w http.ResponseWriter, id string) *model.Profile {
	p, err := h.userStore.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return nil
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return p
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}
	p := h.lookup(w, id)
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type pointsRequest struct {
	Delta     int                   `json:"delta"`
	Direction model.PointsDirection `json:"direction"`
}

type pointsResponse struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// pointsEvent is the payload of a points-changes event.
type pointsEvent struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
	Delta  int    `json:"delta"`
}

func (h *UserHandler) ApplyPoints(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}

	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Delta < 0 {
		writeError(w, http.StatusBadRequest, "delta must be >= 0")
		return
	}

	delta := req.Delta
	switch req.Direction {
	case model.PointsAdd:
	case model.PointsSubtract:
		delta = -delta
	default:
		writeError(w, http.StatusBadRequest, "direction must be add or subtract")
		return
	}

	if h.lookup(w, id) == nil {
		return
	}

	balance, err := h.pointsStore.Apply(id, delta)
	if errors.Is(err, store.ErrInsufficientPoints) {
		writeError(w, http.StatusConflict, "insufficient points")
		return
	}
	if err != nil {
		h.logger.Error("apply points", "user_id", id, "delta", delta, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to apply points")
		return
	}

	if delta != 0 {
		h.publish(realtime.DomainPoints, realtime.Updated, pointsEvent{UserID: id, Points: balance, Delta: delta}, id)
	}

	writeJSON(w, http.StatusOK, pointsResponse{UserID: id, Points: balance})
}

func (h *UserHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}
	if h.lookup(w, id) == nil {
		return
	}

	prefs, err := h.prefStore.Get(id)
	if err != nil {
		h.logger.Error("get preferences", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *UserHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}

	var prefs model.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if prefs.FavoriteTeams == nil {
		prefs.FavoriteTeams = []string{}
	}

	if h.lookup(w, id) == nil {
		return
	}

	if err := h.prefStore.Put(id, prefs); err != nil {
		h.logger.Error("put preferences", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *UserHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}
	if h.lookup(w, id) == nil {
		return
	}

	entries, err := h.scanStore.List(id)
	if err != nil {
		h.logger.Error("list scans", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	if entries == nil {
		entries = []model.ScanEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *UserHandler) AppendScan(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}

	var entry model.ScanEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if h.lookup(w, id) == nil {
		return
	}

	saved, err := h.scanStore.Append(id, entry)
	if err != nil {
		h.logger.Error("append scan", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to append scan")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}
