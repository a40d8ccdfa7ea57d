package server

import (
	"ctfarena/internal/featureflags"
	"ctfarena/internal/middleware"
	"ctfarena/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FeedWebsocketUpgrade rejects plain HTTP requests and feed connections while
// the live feed is switched off or Redis is unavailable.
func (s *Server) FeedWebsocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	if !s.featureFlags.Enabled(featureflags.LiveFeed, viewerID(c)) {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewNotAvailableError("The live feed is disabled"))
	}
	if s.feedHub == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewNotAvailableError("The live feed is unavailable"))
	}
	return c.Next()
}

// FeedWebsocketHandler streams competition events (solves, review outcomes,
// resets) to the connection. Frames sent by the client are ignored.
// @Summary Live solve feed
// @Tags scoreboard
// @Param token query string false "Access token; anonymous viewers are allowed"
// @Router /ws/feed [get]
func (s *Server) FeedWebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.feedHub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("feed websocket refused", "user_id", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"reason":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
