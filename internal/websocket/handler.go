package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/petra184/mobile-app-sub002/internal/auth"
	"github.com/petra184/mobile-app-sub002/internal/middleware"
)

// HandleWebSocket upgrades connections and runs them as Hub clients. A
// bearer token on the upgrade request, if valid, becomes the client's
// default identity for private joins.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var principal *auth.Principal
		if token := middleware.BearerToken(r); token != "" && hub.verifier != nil {
			p, err := hub.verifier.Verify(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			principal = &p
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // native clients send no Origin worth checking
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		conn.SetReadLimit(1 << 20)

		client := NewClient(hub, conn, principal)
		client.Run(r.Context())
	}
}
