// Package server assembles the local twin of the data service: the JSON
// API the client calls and the websocket that pushes domain events.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/petra184/mobile-app-sub002/internal/auth"
	"github.com/petra184/mobile-app-sub002/internal/handler"
	"github.com/petra184/mobile-app-sub002/internal/middleware"
	"github.com/petra184/mobile-app-sub002/internal/store"
	ws "github.com/petra184/mobile-app-sub002/internal/websocket"
)

type Config struct {
	Secret      string
	TokenTTL    time.Duration
	AdminEmails []string
	Faults      middleware.Faults
	// TokenRequestsPerMinute caps token issue per client IP.
	TokenRequestsPerMinute int
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tokens      *auth.Tokens
	userH       *handler.UserHandler
	authH       *handler.AuthHandler
	broadcastH  *handler.BroadcastHandler
	rateLimiter *middleware.RateLimiter
	faults      middleware.Faults
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	tokens := auth.NewTokens(cfg.Secret, cfg.TokenTTL)
	hub := ws.NewHub(tokens, logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)

	limit := cfg.TokenRequestsPerMinute
	if limit <= 0 {
		limit = 10
	}

	return &Server{
		db:     db,
		hub:    hub,
		tokens: tokens,
		userH: handler.NewUserHandler(
			userStore,
			store.NewPointsStore(db),
			store.NewPreferenceStore(db),
			store.NewScanStore(db),
			hub,
			logger.With("component", "user"),
		),
		authH:       handler.NewAuthHandler(userStore, tokens, cfg.AdminEmails, logger.With("component", "auth")),
		broadcastH:  handler.NewBroadcastHandler(hub, logger.With("component", "broadcast")),
		rateLimiter: middleware.NewRateLimiter(limit, time.Minute),
		faults:      cfg.Faults,
		logger:      logger,
	}
}

// Hub returns the websocket hub so callers can publish events directly.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))

	// Public routes (no auth required)
	r.Get("/health", s.healthHandler)
	r.With(middleware.RateLimit(s.rateLimiter, middleware.RealIP)).Post("/v1/auth/token", s.authH.IssueToken)
	r.Get("/ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(s.tokens))
		if s.faults.Enabled() {
			r.Use(middleware.InjectFaults(s.faults, s.logger.With("component", "faults")))
		}

		r.Route("/v1/users/{id}", func(r chi.Router) {
			r.Get("/profile", s.userH.Profile)
			r.Post("/points", s.userH.ApplyPoints)
			r.Get("/preferences", s.userH.GetPreferences)
			r.Put("/preferences", s.userH.PutPreferences)
			r.Get("/scans", s.userH.ListScans)
			r.Post("/scans", s.userH.AppendScan)
		})

		r.With(middleware.RequireAdmin).Post("/v1/admin/broadcast", s.broadcastH.Broadcast)
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.hub.ClientCount()})
}
