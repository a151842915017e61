package websocket

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/http/middleware"
	"github.com/alumni-connect/gallery-service/internal/utils/response"
	wsClient "github.com/alumni-connect/gallery-service/internal/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the admin dashboard is served from a different origin
		return true
	},
}

// WebSocketHandler streams moderation events to connected admins
// @Summary Moderation feed
// @Description Upgrades to a websocket that receives photo.uploaded, photo.validated and deletion events
// @Tags moderation
// @Param token query string true "Admin JWT"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Forbidden"
// @Router /gallery/ws [get]
func WebSocketHandler(hub *wsClient.Hub, auth config.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.Identity{UserID: "dev", Admin: true}

		if auth.JWTSecret != "" {
			// browsers cannot set headers on a websocket handshake
			token := r.URL.Query().Get("token")
			if token == "" {
				slog.Warn("WebSocket connection attempted without token")
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("token required")))
				return
			}

			var err error
			identity, err = middleware.ResolveToken(auth, token)
			if err != nil {
				slog.Warn("WebSocket connection attempted with invalid token", slog.String("error", err.Error()))
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("invalid token")))
				return
			}
		}

		if !identity.Admin {
			response.WriteJSON(w, http.StatusForbidden, response.GeneralError(errors.New("Admin access required")))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Failed to upgrade WebSocket connection", slog.String("error", err.Error()))
			return
		}

		client := wsClient.NewClient(conn, uuid.NewString(), identity.UserID, hub)
		hub.RegisterClient(client)
		client.Start()

		slog.Info("Moderator connected",
			slog.String("user_id", identity.UserID),
			slog.String("conn_id", client.ID()))
	}
}
