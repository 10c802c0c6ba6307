package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artemis-ci-api/internal/middleware"
	"github.com/noah-isme/artemis-ci-api/internal/service"
	"github.com/noah-isme/artemis-ci-api/internal/utils"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	if value == "" {
		return 0, fmt.Errorf("%s required", key)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationDetails(err error) (map[string]string, bool) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, false
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details, true
}

// sendServiceError maps the error taxonomy shared by all CI facing handlers onto HTTP responses.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	if details, ok := validationDetails(err); ok {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", details)
	}

	var opErr *bamboo.OperationError
	switch {
	case errors.Is(err, service.ErrMalformedPayload):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrParticipationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "participation not found")
	case errors.Is(err, service.ErrNotProgrammingParticipation):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrExerciseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "programming exercise not found")
	case errors.Is(err, service.ErrRebuildInProgress):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrResultNotAvailable):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidPlanKey):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrArtifactMirrorDisabled):
		return utils.SendError(c, fiber.StatusNotImplemented, err.Error())
	case errors.Is(err, bamboo.ErrArtifactNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "build artifact not found")
	case errors.Is(err, bamboo.ErrArtifactTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "build artifact too large")
	case errors.Is(err, bamboo.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "build plan not found on ci server")
	case errors.Is(err, bamboo.ErrNetwork):
		requestLogger(logger, c).Warn().Err(err).Msg("ci server unreachable")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "ci server unreachable")
	case errors.As(err, &opErr):
		requestLogger(logger, c).Warn().Err(err).Int("ci_status", opErr.StatusCode).Msg("ci server rejected request")
		return utils.Fail(c, fiber.StatusBadGateway, "ci server rejected request", fiber.Map{
			"operation": opErr.Op,
			"status":    opErr.StatusCode,
			"message":   opErr.Message,
		})
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
