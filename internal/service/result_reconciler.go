package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/internal/observability"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

const defaultScorePushTimeout = 10 * time.Second

var (
	// ErrParticipationNotFound indicates the participation id is unknown.
	ErrParticipationNotFound = errors.New("participation not found")
	// ErrNotProgrammingParticipation indicates the participation does not belong to a programming exercise.
	ErrNotProgrammingParticipation = errors.New("participation is not a programming exercise participation")
	// ErrResultNotAvailable indicates the CI server has no result yet or could not be reached.
	ErrResultNotAvailable = errors.New("build result not available")
)

// ReconcileOutcome describes what a build notification produced.
type ReconcileOutcome struct {
	Ignored           bool
	AlreadyRecorded   bool
	Result            *models.Result
	Submission        *models.ProgrammingSubmission
	SubmissionCreated bool
	Duplicate         bool
}

// Response converts the outcome into the payload returned to the CI server.
func (o ReconcileOutcome) Response() dto.BuildResultResponse {
	response := dto.BuildResultResponse{Ignored: o.Ignored}
	if o.Result != nil {
		result := dto.NewResultResponse(*o.Result)
		response.Result = &result
	}
	if o.Submission != nil {
		submission := dto.NewSubmissionResponse(*o.Submission)
		response.Submission = &submission
	}
	return response
}

// ResultReconciler pairs CI build results with programming submissions.
type ResultReconciler interface {
	ProcessNewBuildResult(ctx context.Context, participationID uint, body []byte) (ReconcileOutcome, error)
	ProcessLatestBuildResult(ctx context.Context, participationID uint) (ReconcileOutcome, error)
	Reconcile(ctx context.Context, participation models.Participation, notification BuildResultNotification) (ReconcileOutcome, error)
}

// ResultReconcilerConfig tunes the side effects of reconciliation.
type ResultReconcilerConfig struct {
	ScorePushTimeout time.Duration
	// SyncScorePush reports the score before Reconcile returns. Short-lived callers set it.
	SyncScorePush bool
}

type resultReconciler struct {
	participations repository.ParticipationRepository
	submissions    repository.ProgrammingSubmissionRepository
	results        repository.ResultRepository
	parser         *BuildResultParser
	ci             ContinuousIntegration
	broadcaster    ResultBroadcaster
	lti            LtiOutcomeService
	locks          *SubmissionLocks
	logger         zerolog.Logger
	tracer         trace.Tracer
	config         ResultReconcilerConfig

	// async runs the LTI push off the request path.
	async func(func())
}

// NewResultReconciler constructs the reconciler. broadcaster and lti may be nil.
func NewResultReconciler(
	participationRepo repository.ParticipationRepository,
	submissionRepo repository.ProgrammingSubmissionRepository,
	resultRepo repository.ResultRepository,
	parser *BuildResultParser,
	ci ContinuousIntegration,
	broadcaster ResultBroadcaster,
	lti LtiOutcomeService,
	locks *SubmissionLocks,
	logger zerolog.Logger,
	cfg ResultReconcilerConfig,
) ResultReconciler {
	if cfg.ScorePushTimeout <= 0 {
		cfg.ScorePushTimeout = defaultScorePushTimeout
	}
	if locks == nil {
		locks = NewSubmissionLocks()
	}

	async := func(fn func()) { go fn() }
	if cfg.SyncScorePush {
		async = func(fn func()) { fn() }
	}

	return &resultReconciler{
		participations: participationRepo,
		submissions:    submissionRepo,
		results:        resultRepo,
		parser:         parser,
		ci:             ci,
		broadcaster:    broadcaster,
		lti:            lti,
		locks:          locks,
		logger:         logger.With().Str("component", "result_reconciler").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/artemis-ci-api/internal/service/reconciler"),
		config:         cfg,
		async:          async,
	}
}

func (s *resultReconciler) ProcessNewBuildResult(ctx context.Context, participationID uint, body []byte) (ReconcileOutcome, error) {
	participation, err := s.loadParticipation(ctx, participationID)
	if err != nil {
		return ReconcileOutcome{}, err
	}

	notification, err := s.parser.Parse(body)
	if err != nil {
		observability.BuildResults().WithLabelValues("malformed").Inc()
		s.logger.Warn().Err(err).Uint("participation_id", participationID).Msg("rejected build result payload")
		return ReconcileOutcome{}, err
	}

	return s.Reconcile(ctx, participation, notification)
}

// ProcessLatestBuildResult fetches the newest result of the participation's plan and reconciles it.
func (s *resultReconciler) ProcessLatestBuildResult(ctx context.Context, participationID uint) (ReconcileOutcome, error) {
	participation, err := s.loadParticipation(ctx, participationID)
	if err != nil {
		return ReconcileOutcome{}, err
	}
	if !participation.HasBuildPlan() {
		return ReconcileOutcome{}, fmt.Errorf("%w: participation %d has no build plan", ErrResultNotAvailable, participationID)
	}

	raw, err := s.ci.LatestBuildResult(ctx, participation.BuildPlanID)
	if err != nil {
		if errors.Is(err, bamboo.ErrNotFound) || errors.Is(err, bamboo.ErrNetwork) {
			s.logger.Info().Err(err).Str("plan_key", participation.BuildPlanID).Msg("latest build result not available")
			return ReconcileOutcome{}, fmt.Errorf("%w: %v", ErrResultNotAvailable, err)
		}
		return ReconcileOutcome{}, err
	}

	notification, err := s.parser.FromLegacy(raw)
	if err != nil {
		observability.BuildResults().WithLabelValues("malformed").Inc()
		return ReconcileOutcome{}, err
	}

	return s.Reconcile(ctx, participation, notification)
}

// Reconcile stores the result of one build. A build already recorded for the same commit and
// completion time is returned as AlreadyRecorded instead of being stored again.
func (s *resultReconciler) Reconcile(ctx context.Context, participation models.Participation, notification BuildResultNotification) (ReconcileOutcome, error) {
	logger := s.logger.With().
		Uint("participation_id", participation.ID).
		Str("commit_hash", notification.CommitHash).
		Int("build_number", notification.BuildNumber).
		Logger()

	if notification.Ignored {
		observability.BuildResults().WithLabelValues("ignored").Inc()
		logger.Info().Str("reason", notification.BuildReason).Msg("ignoring bootstrap build of new plan")
		return ReconcileOutcome{Ignored: true}, nil
	}

	spanCtx, span := s.tracer.Start(ctx, "results.reconcile", trace.WithAttributes(
		attribute.Int("participation.id", int(participation.ID)),
		attribute.String("vcs.commit_hash", notification.CommitHash),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.ReconcileDuration().Observe(time.Since(start).Seconds())
	}()

	result := newAutomaticResult(participation.ID, notification)

	var write repository.ResultWrite
	var err error
	if notification.CommitHash == "" {
		logger.Warn().Msg("build result carries no commit hash, storing result without submission")
		write, err = s.results.PersistAutomatic(spanCtx, result, nil)
	} else {
		candidate := &models.ProgrammingSubmission{
			ParticipationID: participation.ID,
			CommitHash:      notification.CommitHash,
			Type:            models.SubmissionTypeOther,
			Submitted:       true,
			SubmissionDate:  notification.CompletedAt,
		}

		unlock := s.locks.Lock(participation.ID, notification.CommitHash)
		recorded, ok, lookupErr := s.findRecorded(spanCtx, participation.ID, notification)
		if lookupErr != nil {
			unlock()
			observability.BuildResults().WithLabelValues("failed").Inc()
			span.RecordError(lookupErr)
			span.SetStatus(codes.Error, lookupErr.Error())
			logger.Error().Err(lookupErr).Msg("failed to look up recorded build result")
			return ReconcileOutcome{}, lookupErr
		}
		if ok {
			unlock()
			observability.BuildResults().WithLabelValues("redelivered").Inc()
			logger.Info().Uint("result_id", recorded.Result.ID).Msg("build result already recorded, skipping redelivery")
			return recorded, nil
		}
		write, err = s.results.PersistAutomatic(spanCtx, result, candidate)
		unlock()
	}
	if err != nil {
		observability.BuildResults().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("failed to persist build result")
		return ReconcileOutcome{}, err
	}

	outcome := ReconcileOutcome{
		Result:            result,
		Submission:        write.Submission,
		SubmissionCreated: write.SubmissionCreated,
		Duplicate:         write.PriorAutomatic > 0,
	}

	if outcome.Duplicate {
		observability.DuplicateResults().Inc()
		logger.Warn().
			Uint("submission_id", write.Submission.ID).
			Int64("existing_automatic_results", write.PriorAutomatic).
			Msg("submission already had an automatic result, attaching new result anyway")
	}
	if write.SubmissionCreated {
		logger.Info().Uint("submission_id", write.Submission.ID).Msg("created submission for build result without push notification")
	}

	observability.BuildResults().WithLabelValues("processed").Inc()
	logger.Info().
		Uint("result_id", result.ID).
		Int("score", result.Score).
		Bool("successful", result.Successful).
		Msg("build result reconciled")

	// Clients only ever see results paired with a submission.
	if s.broadcaster != nil && write.Submission != nil {
		s.broadcaster.Broadcast(spanCtx, dto.NewSubmissionMessageFor(*result, write.Submission))
	}
	s.pushScore(participation, *result)

	return outcome, nil
}

func (s *resultReconciler) pushScore(participation models.Participation, result models.Result) {
	if s.lti == nil || participation.StudentID == nil {
		return
	}

	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ScorePushTimeout)
		defer cancel()

		if err := s.lti.PushScore(ctx, participation, result); err != nil {
			s.logger.Warn().
				Err(err).
				Uint("participation_id", participation.ID).
				Uint("result_id", result.ID).
				Msg("failed to push score to lti consumer")
		}
	})
}

func (s *resultReconciler) loadParticipation(ctx context.Context, participationID uint) (models.Participation, error) {
	participation, err := s.participations.GetByID(ctx, participationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Participation{}, ErrParticipationNotFound
		}
		return models.Participation{}, err
	}
	if participation.Exercise.ID == 0 {
		return models.Participation{}, ErrNotProgrammingParticipation
	}
	return participation, nil
}

func (s *resultReconciler) findRecorded(ctx context.Context, participationID uint, notification BuildResultNotification) (ReconcileOutcome, bool, error) {
	if notification.Ignored || notification.CommitHash == "" {
		return ReconcileOutcome{}, false, nil
	}

	submission, err := s.submissions.GetByParticipationAndCommit(ctx, participationID, notification.CommitHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReconcileOutcome{}, false, nil
		}
		return ReconcileOutcome{}, false, fmt.Errorf("find submission for commit %s: %w", notification.CommitHash, err)
	}

	for i := range submission.Results {
		result := submission.Results[i]
		if result.IsAutomatic() && result.CompletionDate.Equal(notification.CompletedAt) {
			return ReconcileOutcome{AlreadyRecorded: true, Result: &result, Submission: &submission}, true, nil
		}
	}
	return ReconcileOutcome{}, false, nil
}

func newAutomaticResult(participationID uint, notification BuildResultNotification) *models.Result {
	feedbacks := ExtractFeedback(notification.TestCases)

	info := datatypes.JSONMap{
		"format":       notification.Format,
		"build_number": notification.BuildNumber,
	}
	if notification.BuildReason != "" {
		info["build_reason"] = notification.BuildReason
	}
	if notification.PlanKey != "" {
		info["plan_key"] = notification.PlanKey
	}
	if len(notification.ArtifactURLs) > 0 {
		info["artifact_urls"] = notification.ArtifactURLs
	}

	return &models.Result{
		ParticipationID: participationID,
		Successful:      notification.Successful,
		ResultString:    notification.ResultString,
		Score:           CalculateScore(notification.Successful, notification.ResultString),
		CompletionDate:  notification.CompletedAt,
		AssessmentType:  models.AssessmentTypeAutomatic,
		HasFeedback:     len(feedbacks) > 0,
		BuildArtifact:   notification.HasArtifact,
		BuildInfo:       info,
		Feedbacks:       feedbacks,
	}
}
