package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/internal/pkg/serverutils"
	internalWS "wealthadvisor-ai/internal/websocket"
)

// ReviewFeedHandler streams escalations and decisions to connected CA
// reviewers. It runs behind JwtMiddleware, which accepts the token as a
// query parameter for browsers.
type ReviewFeedHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewReviewFeedHandler(hub *internalWS.Hub, log logger.ILogger) *ReviewFeedHandler {
	return &ReviewFeedHandler{hub: hub, logger: log}
}

// Upgrade rejects plain HTTP requests and anonymous peers.
func (h *ReviewFeedHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if serverutils.ReviewerID(c) == "" {
		return fiber.ErrUnauthorized
	}
	return c.Next()
}

func (h *ReviewFeedHandler) ServeWs() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		reviewerID, _ := c.Locals("reviewer_id").(string)
		h.logger.Info("ReviewFeed", "Starting WebSocket session", map[string]interface{}{"reviewer_id": reviewerID})
		internalWS.ServeWs(h.hub, c, reviewerID)
		h.logger.Info("ReviewFeed", "WebSocket session ended", map[string]interface{}{"reviewer_id": reviewerID})
	})
}
