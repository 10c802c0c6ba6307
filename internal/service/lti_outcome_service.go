package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/internal/observability"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
)

// ScoreReporter sends a score to an LTI outcome service. *lti.Client implements it.
type ScoreReporter interface {
	ReplaceResult(ctx context.Context, outcomeURL, sourcedID string, score int) error
}

// LtiOutcomeService pushes automatic results to the LMS a student launched the exercise from.
type LtiOutcomeService interface {
	PushScore(ctx context.Context, participation models.Participation, result models.Result) error
	RegisterOutcome(ctx context.Context, outcome models.LtiOutcomeURL) error
}

type ltiOutcomeService struct {
	outcomes repository.LtiOutcomeRepository
	reporter ScoreReporter
	logger   zerolog.Logger
}

// NewLtiOutcomeService constructs an LTI outcome service.
func NewLtiOutcomeService(outcomes repository.LtiOutcomeRepository, reporter ScoreReporter, logger zerolog.Logger) LtiOutcomeService {
	return &ltiOutcomeService{
		outcomes: outcomes,
		reporter: reporter,
		logger:   logger.With().Str("component", "lti_outcome_service").Logger(),
	}
}

// PushScore reports the score when an outcome URL is registered for the participant. Having
// none is not an error.
func (s *ltiOutcomeService) PushScore(ctx context.Context, participation models.Participation, result models.Result) error {
	if participation.StudentID == nil || s.reporter == nil {
		return nil
	}

	outcome, err := s.outcomes.Find(ctx, *participation.StudentID, participation.ExerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.LTIScorePushes().WithLabelValues("skipped").Inc()
			return nil
		}
		return err
	}

	if err := s.reporter.ReplaceResult(ctx, outcome.URL, outcome.SourcedID, result.Score); err != nil {
		observability.LTIScorePushes().WithLabelValues("failed").Inc()
		return err
	}

	observability.LTIScorePushes().WithLabelValues("success").Inc()
	s.logger.Info().
		Uint("participation_id", participation.ID).
		Uint("result_id", result.ID).
		Int("score", result.Score).
		Msg("score reported to lti consumer")
	return nil
}

func (s *ltiOutcomeService) RegisterOutcome(ctx context.Context, outcome models.LtiOutcomeURL) error {
	return s.outcomes.Upsert(ctx, &outcome)
}
