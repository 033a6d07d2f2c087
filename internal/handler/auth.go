package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/petra184/mobile-app-sub002/internal/auth"
	"github.com/petra184/mobile-app-sub002/internal/store"
)

// Issuer signs access tokens.
type Issuer interface {
	Issue(p auth.Principal) (string, error)
}

// AuthHandler hands out tokens for any email address, creating the user
// on first sight. Addresses in admins get admin tokens.
type AuthHandler struct {
	userStore *store.UserStore
	issuer    Issuer
	admins    map[string]bool
	logger    *slog.Logger
}

func NewAuthHandler(us *store.UserStore, issuer Issuer, adminEmails []string, logger *slog.Logger) *AuthHandler {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &AuthHandler{userStore: us, issuer: issuer, admins: admins, logger: logger}
}

type tokenRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}

	user, err := h.userStore.GetOrCreate(email)
	if err != nil {
		h.logger.Error("get or create user", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	token, err := h.issuer.Issue(auth.Principal{UserID: user.UserID, Email: user.Email, Admin: h.admins[email]})
	if err != nil {
		h.logger.Error("issue token", "user_id", user.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.logger.Info("token issued", "user_id", user.UserID, "admin", h.admins[email])
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, UserID: user.UserID})
}
