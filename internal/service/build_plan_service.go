package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/observability"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

// Build statuses reported for a plan.
const (
	BuildStatusInactive = "INACTIVE"
	BuildStatusQueued   = "QUEUED"
	BuildStatusBuilding = "BUILDING"
)

var (
	// ErrInvalidPlanKey indicates an empty or malformed plan key.
	ErrInvalidPlanKey = errors.New("invalid build plan key")
	// ErrArtifactMirrorDisabled indicates no artifact mirror is configured.
	ErrArtifactMirrorDisabled = errors.New("artifact mirror not configured")
)

// ArtifactMirror stores build artifacts outside the CI server. *cloudinary.Mirror implements it.
type ArtifactMirror interface {
	MirrorArtifact(ctx context.Context, planKey string, buildNumber int, name string, reader io.Reader) (string, error)
}

// BuildPlanService exposes build plan lifecycle operations to instructors.
type BuildPlanService interface {
	CreateBuildPlan(ctx context.Context, payload dto.CreateBuildPlanRequest) (dto.BuildPlanResponse, error)
	ClonePlan(ctx context.Context, payload dto.ClonePlanRequest) (dto.BuildPlanResponse, error)
	EnablePlan(ctx context.Context, planKey string) error
	DeletePlan(ctx context.Context, planKey string) error
	UpdatePlanRepository(ctx context.Context, planKey string, payload dto.UpdatePlanRepositoryRequest) error
	TriggerBuild(ctx context.Context, planKey string) error
	BuildStatus(ctx context.Context, planKey string) (dto.BuildStatusResponse, error)
	BuildLogs(ctx context.Context, planKey string) ([]dto.BuildLogEntryResponse, error)
	BuildArtifact(ctx context.Context, participationID uint) (bamboo.Artifact, error)
	MirrorArtifact(ctx context.Context, participationID uint) (dto.BuildArtifactMirrorResponse, error)
}

type buildPlanService struct {
	ci             ContinuousIntegration
	participations repository.ParticipationRepository
	results        repository.ResultRepository
	mirror         ArtifactMirror
	validator      *validator.Validate
	logger         zerolog.Logger
}

// NewBuildPlanService constructs a build plan service. mirror may be nil.
func NewBuildPlanService(ci ContinuousIntegration, participationRepo repository.ParticipationRepository, resultRepo repository.ResultRepository, mirror ArtifactMirror, validate *validator.Validate, logger zerolog.Logger) BuildPlanService {
	return &buildPlanService{
		ci:             ci,
		participations: participationRepo,
		results:        resultRepo,
		mirror:         mirror,
		validator:      validate,
		logger:         logger.With().Str("component", "build_plan_service").Logger(),
	}
}

// ComposePlanKey joins project and plan key the way the CI server expects them.
func ComposePlanKey(projectKey, planKey string) string {
	return strings.ToUpper(strings.TrimSpace(projectKey) + "-" + strings.TrimSpace(planKey))
}

// MapBuildStatus turns the CI activity flags into a build status.
func MapBuildStatus(status bamboo.PlanStatus) string {
	switch {
	case status.IsActive && status.IsBuilding:
		return BuildStatusBuilding
	case status.IsActive:
		return BuildStatusQueued
	default:
		return BuildStatusInactive
	}
}

func (s *buildPlanService) CreateBuildPlan(ctx context.Context, payload dto.CreateBuildPlanRequest) (dto.BuildPlanResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BuildPlanResponse{}, err
	}

	planKey := ComposePlanKey(payload.ProjectKey, payload.PlanKey)
	err := s.ci.CreatePlan(ctx, bamboo.PlanSpec{
		ProjectKey:        payload.ProjectKey,
		PlanKey:           payload.PlanKey,
		Name:              payload.Name,
		RepositoryURL:     payload.RepositoryURL,
		TestRepositoryURL: payload.TestRepositoryURL,
	})
	if err != nil {
		if !bamboo.IsAlreadyExists(err) {
			return dto.BuildPlanResponse{}, err
		}
		s.logger.Info().Str("plan_key", planKey).Msg("build plan already exists, reusing it")
	}

	if err := s.attach(ctx, payload.ParticipationID, planKey); err != nil {
		return dto.BuildPlanResponse{}, err
	}

	return dto.BuildPlanResponse{PlanKey: planKey}, nil
}

func (s *buildPlanService) ClonePlan(ctx context.Context, payload dto.ClonePlanRequest) (dto.BuildPlanResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BuildPlanResponse{}, err
	}

	sourceKey := ComposePlanKey(payload.SourceProjectKey, payload.SourcePlanKey)
	targetKey := ComposePlanKey(payload.TargetProjectKey, payload.TargetPlanKey)

	if err := s.ci.ClonePlan(ctx, sourceKey, targetKey); err != nil {
		if !bamboo.IsAlreadyExists(err) {
			return dto.BuildPlanResponse{}, err
		}
		s.logger.Info().Str("plan_key", targetKey).Msg("cloned build plan already exists, reusing it")
	}

	if err := s.attach(ctx, payload.ParticipationID, targetKey); err != nil {
		return dto.BuildPlanResponse{}, err
	}

	return dto.BuildPlanResponse{PlanKey: targetKey}, nil
}

func (s *buildPlanService) EnablePlan(ctx context.Context, planKey string) error {
	key, err := normalizePlanKey(planKey)
	if err != nil {
		return err
	}
	return s.ci.EnablePlan(ctx, key)
}

func (s *buildPlanService) DeletePlan(ctx context.Context, planKey string) error {
	key, err := normalizePlanKey(planKey)
	if err != nil {
		return err
	}
	if err := s.ci.DeletePlan(ctx, key); err != nil {
		return err
	}
	s.logger.Info().Str("plan_key", key).Msg("build plan deleted")
	return nil
}

func (s *buildPlanService) UpdatePlanRepository(ctx context.Context, planKey string, payload dto.UpdatePlanRepositoryRequest) error {
	key, err := normalizePlanKey(planKey)
	if err != nil {
		return err
	}
	if err := s.validator.Struct(payload); err != nil {
		return err
	}
	return s.ci.UpdatePlanRepository(ctx, key, payload.RepositoryName, payload.RepositoryURL)
}

func (s *buildPlanService) TriggerBuild(ctx context.Context, planKey string) error {
	key, err := normalizePlanKey(planKey)
	if err != nil {
		return err
	}
	if err := s.ci.QueueBuild(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("plan_key", key).Msg("failed to queue build")
		return err
	}
	return nil
}

func (s *buildPlanService) BuildStatus(ctx context.Context, planKey string) (dto.BuildStatusResponse, error) {
	key, err := normalizePlanKey(planKey)
	if err != nil {
		return dto.BuildStatusResponse{}, err
	}

	status, err := s.ci.BuildStatus(ctx, key)
	if err != nil {
		return dto.BuildStatusResponse{}, err
	}
	return dto.BuildStatusResponse{PlanKey: key, Status: MapBuildStatus(status)}, nil
}

func (s *buildPlanService) BuildLogs(ctx context.Context, planKey string) ([]dto.BuildLogEntryResponse, error) {
	key, err := normalizePlanKey(planKey)
	if err != nil {
		return nil, err
	}

	entries, err := s.ci.BuildLogs(ctx, key)
	if err != nil {
		return nil, err
	}

	logs := make([]dto.BuildLogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, dto.BuildLogEntryResponse{Time: entry.Time, Log: entry.Log})
	}
	return logs, nil
}

// BuildArtifact downloads the artifact of the participation's latest result.
func (s *buildPlanService) BuildArtifact(ctx context.Context, participationID uint) (bamboo.Artifact, error) {
	artifact, _, err := s.latestArtifact(ctx, participationID)
	return artifact, err
}

func (s *buildPlanService) MirrorArtifact(ctx context.Context, participationID uint) (dto.BuildArtifactMirrorResponse, error) {
	if s.mirror == nil {
		return dto.BuildArtifactMirrorResponse{}, ErrArtifactMirrorDisabled
	}

	artifact, meta, err := s.latestArtifact(ctx, participationID)
	if err != nil {
		return dto.BuildArtifactMirrorResponse{}, err
	}

	url, err := s.mirror.MirrorArtifact(ctx, meta.planKey, meta.buildNumber, artifact.Name, bytes.NewReader(artifact.Data))
	if err != nil {
		observability.ArtifactMirrors().WithLabelValues("failed").Inc()
		return dto.BuildArtifactMirrorResponse{}, err
	}

	observability.ArtifactMirrors().WithLabelValues("success").Inc()
	return dto.BuildArtifactMirrorResponse{Name: artifact.Name, URL: url}, nil
}

type artifactMeta struct {
	planKey     string
	buildNumber int
}

func (s *buildPlanService) latestArtifact(ctx context.Context, participationID uint) (bamboo.Artifact, artifactMeta, error) {
	participation, err := s.participations.GetByID(ctx, participationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bamboo.Artifact{}, artifactMeta{}, ErrParticipationNotFound
		}
		return bamboo.Artifact{}, artifactMeta{}, err
	}

	result, err := s.results.LatestByParticipation(ctx, participationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bamboo.Artifact{}, artifactMeta{}, fmt.Errorf("participation %d has no result: %w", participationID, bamboo.ErrArtifactNotFound)
		}
		return bamboo.Artifact{}, artifactMeta{}, err
	}

	urls := stringList(result.BuildInfo["artifact_urls"])
	if !result.BuildArtifact || len(urls) == 0 {
		return bamboo.Artifact{}, artifactMeta{}, fmt.Errorf("result %d has no artifact: %w", result.ID, bamboo.ErrArtifactNotFound)
	}

	artifact, err := s.ci.FetchArtifact(ctx, urls[0])
	if err != nil {
		return bamboo.Artifact{}, artifactMeta{}, err
	}

	meta := artifactMeta{planKey: participation.BuildPlanID, buildNumber: intValue(result.BuildInfo["build_number"])}
	return artifact, meta, nil
}

func (s *buildPlanService) attach(ctx context.Context, participationID *uint, planKey string) error {
	if participationID == nil {
		return nil
	}
	if err := s.participations.UpdateBuildPlan(ctx, *participationID, planKey); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipationNotFound
		}
		return err
	}
	return nil
}

func normalizePlanKey(planKey string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(planKey))
	project, plan, ok := strings.Cut(key, "-")
	if !ok || project == "" || plan == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlanKey, planKey)
	}
	return key, nil
}

func stringList(value interface{}) []string {
	switch typed := value.(type) {
	case []string:
		return typed
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intValue(value interface{}) int {
	switch typed := value.(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	}
	return 0
}
