package handler

import (
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/service"
	"github.com/noah-isme/artemis-ci-api/internal/utils"
)

// BuildPlanHandler exposes build plan operations to instructors.
type BuildPlanHandler struct {
	plans      service.BuildPlanService
	reconciler service.ResultReconciler
	logger     zerolog.Logger
}

// NewBuildPlanHandler creates a build plan handler.
func NewBuildPlanHandler(plans service.BuildPlanService, reconciler service.ResultReconciler, logger zerolog.Logger) *BuildPlanHandler {
	return &BuildPlanHandler{
		plans:      plans,
		reconciler: reconciler,
		logger:     logger.With().Str("component", "build_plan_handler").Logger(),
	}
}

// Register binds the instructor routes under the provided router group.
func (h *BuildPlanHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Post("/clone", h.clone)

	participations := router.Group("/participations/:participationId")
	participations.Get("/artifact", h.artifact)
	participations.Post("/artifact/mirror", h.mirrorArtifact)
	participations.Post("/latest-result", h.pollLatestResult)

	router.Post("/:planKey/enable", h.enable)
	router.Delete("/:planKey", h.delete)
	router.Put("/:planKey/repository", h.updateRepository)
	router.Post("/:planKey/trigger", h.trigger)
	router.Get("/:planKey/status", h.status)
	router.Get("/:planKey/logs", h.logs)
}

func (h *BuildPlanHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateBuildPlanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.plans.CreateBuildPlan(withRequestContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "build plan created", plan)
}

func (h *BuildPlanHandler) clone(c *fiber.Ctx) error {
	var payload dto.ClonePlanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.plans.ClonePlan(withRequestContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "build plan cloned", plan)
}

func (h *BuildPlanHandler) enable(c *fiber.Ctx) error {
	if err := h.plans.EnablePlan(withRequestContext(c), planKeyParam(c)); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "build plan enabled", nil)
}

func (h *BuildPlanHandler) delete(c *fiber.Ctx) error {
	if err := h.plans.DeletePlan(withRequestContext(c), planKeyParam(c)); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "build plan deleted", nil)
}

func (h *BuildPlanHandler) updateRepository(c *fiber.Ctx) error {
	var payload dto.UpdatePlanRepositoryRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.plans.UpdatePlanRepository(withRequestContext(c), planKeyParam(c), payload); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "build plan repository updated", nil)
}

func (h *BuildPlanHandler) trigger(c *fiber.Ctx) error {
	if err := h.plans.TriggerBuild(withRequestContext(c), planKeyParam(c)); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "build queued", nil)
}

func (h *BuildPlanHandler) status(c *fiber.Ctx) error {
	status, err := h.plans.BuildStatus(withRequestContext(c), planKeyParam(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "build status retrieved", status)
}

func (h *BuildPlanHandler) logs(c *fiber.Ctx) error {
	logs, err := h.plans.BuildLogs(withRequestContext(c), planKeyParam(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.OK(c, logs, "build logs retrieved", fiber.Map{"count": len(logs)})
}

func (h *BuildPlanHandler) artifact(c *fiber.Ctx) error {
	participationID, err := parseUintParam(c, "participationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	artifact, err := h.plans.BuildArtifact(withRequestContext(c), participationID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(artifact.Data).String()
	}
	c.Set(fiber.HeaderContentType, contentType)
	if artifact.Name != "" {
		c.Attachment(artifact.Name)
	}
	return c.Send(artifact.Data)
}

func (h *BuildPlanHandler) mirrorArtifact(c *fiber.Ctx) error {
	participationID, err := parseUintParam(c, "participationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	mirrored, err := h.plans.MirrorArtifact(withRequestContext(c), participationID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "build artifact mirrored", mirrored)
}

func (h *BuildPlanHandler) pollLatestResult(c *fiber.Ctx) error {
	participationID, err := parseUintParam(c, "participationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	outcome, err := h.reconciler.ProcessLatestBuildResult(withRequestContext(c), participationID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	message := "latest build result processed"
	if outcome.AlreadyRecorded {
		message = "latest build result already recorded"
	}
	return utils.SendSuccess(c, message, outcome.Response())
}

func planKeyParam(c *fiber.Ctx) string {
	key := c.Params("planKey")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return strings.TrimSpace(key)
}
