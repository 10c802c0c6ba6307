package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/service"
	"github.com/noah-isme/artemis-ci-api/internal/utils"
)

// BuildResultHandler receives notifications from the CI and VCS servers.
type BuildResultHandler struct {
	reconciler  service.ResultReconciler
	submissions service.ProgrammingSubmissionService
	testCases   service.TestCaseChangeService
	logger      zerolog.Logger
}

// NewBuildResultHandler creates a build result handler.
func NewBuildResultHandler(reconciler service.ResultReconciler, submissions service.ProgrammingSubmissionService, testCases service.TestCaseChangeService, logger zerolog.Logger) *BuildResultHandler {
	return &BuildResultHandler{
		reconciler:  reconciler,
		submissions: submissions,
		testCases:   testCases,
		logger:      logger.With().Str("component", "build_result_handler").Logger(),
	}
}

// RegisterWebhooks binds the unauthenticated notification endpoints.
func (h *BuildResultHandler) RegisterWebhooks(router fiber.Router) {
	router.Post("/programming-submissions/:participationId", h.newResult)
	router.Post("/programming-submissions/:participationId/push", h.push)
	router.Post("/programming-exercises/test-cases-changed/:exerciseId", h.testCasesChanged)
}

// RegisterQueries binds the read endpoints for a participation's submissions and results.
func (h *BuildResultHandler) RegisterQueries(router fiber.Router) {
	router.Get("/:participationId/submissions", h.listSubmissions)
	router.Get("/:participationId/results", h.listResults)
}

func (h *BuildResultHandler) newResult(c *fiber.Ctx) error {
	participationID, err := parseUintParam(c, "participationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// fiber reuses the request buffer once the handler returns.
	body := append([]byte(nil), c.Body()...)

	outcome, err := h.reconciler.ProcessNewBuildResult(withRequestContext(c), participationID, body)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	message := "build result processed"
	switch {
	case outcome.Ignored:
		message = "build result ignored"
	case outcome.AlreadyRecorded:
		message = "build result already recorded"
	}
	return utils.SendSuccess(c, message, outcome.Response())
}

func (h *BuildResultHandler) push(c *fiber.Ctx) error {
	participationID, err := parseUintParam(c, "participationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.PushNotificationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, created, err := h.submissions.NotifyPush(withRequestContext(c), participationID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
	}
	return utils.SendSuccess(c, "submission already recorded", submission)
}

func (h *BuildResultHandler) testCasesChanged(c *fiber.Ctx) error {
	exerciseID, err := parseUintParam(c, "exerciseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.testCases.NotifyTestCasesChanged(withRequestContext(c), exerciseID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rebuilds triggered", response)
}

func (h *BuildResultHandler) listSubmissions(c *fiber.Ctx) error {
	participationID, err := parseUintParam(c, "participationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.submissions.ListByParticipation(withRequestContext(c), participationID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.OK(c, submissions, "submissions retrieved", fiber.Map{"count": len(submissions)})
}

func (h *BuildResultHandler) listResults(c *fiber.Ctx) error {
	participationID, err := parseUintParam(c, "participationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.submissions.ListResults(withRequestContext(c), participationID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.OK(c, results, "results retrieved", fiber.Map{"count": len(results)})
}
