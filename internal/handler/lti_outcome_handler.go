package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/internal/service"
	"github.com/noah-isme/artemis-ci-api/internal/utils"
)

// LtiOutcomeHandler registers LTI outcome endpoints captured at launch time.
type LtiOutcomeHandler struct {
	service   service.LtiOutcomeService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewLtiOutcomeHandler creates an LTI outcome handler.
func NewLtiOutcomeHandler(service service.LtiOutcomeService, validator *validator.Validate, logger zerolog.Logger) *LtiOutcomeHandler {
	return &LtiOutcomeHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "lti_outcome_handler").Logger(),
	}
}

// Register binds the outcome routes.
func (h *LtiOutcomeHandler) Register(router fiber.Router) {
	router.Put("/outcomes", h.register)
}

func (h *LtiOutcomeHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterLtiOutcomeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	err := h.service.RegisterOutcome(withRequestContext(c), models.LtiOutcomeURL{
		StudentID:  payload.StudentID,
		ExerciseID: payload.ExerciseID,
		URL:        payload.URL,
		SourcedID:  payload.SourcedID,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lti outcome registered", nil)
}
