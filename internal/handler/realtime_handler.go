package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artemis-ci-api/internal/middleware"
	"github.com/noah-isme/artemis-ci-api/internal/service"
)

// RealtimeHandler upgrades clients onto the participation result topics.
type RealtimeHandler struct {
	broadcaster service.ResultBroadcaster
	logger      zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler.
func NewRealtimeHandler(broadcaster service.ResultBroadcaster, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the topic routes under the provided router group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/participation", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals("request_ctx", withRequestContext(c))
		c.Locals("correlation_id", middleware.GetCorrelationID(c))
		return c.Next()
	})

	router.Get("/participation/:participationId/newSubmission", middleware.WithAuth(
		websocket.New(h.handleConnection),
		middleware.AuthOptions{RequireUser: true},
	))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	participationID, err := strconv.ParseUint(conn.Params("participationId"), 10, 64)
	if err != nil || participationID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid participation id"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	opts := service.RealtimeConnectionOptions{
		ParticipationID: uint(participationID),
		CorrelationID:   fmt.Sprint(conn.Locals("correlation_id")),
		Context:         baseCtx,
	}

	logger := h.logger.With().
		Uint64("participation_id", participationID).
		Str("topic", service.TopicForParticipation(uint(participationID))).
		Logger()

	logger.Info().Msg("realtime subscriber connected")
	h.broadcaster.ServeConnection(conn, opts)
	logger.Info().Msg("realtime subscriber disconnected")
}
