package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/internal/observability"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
)

var (
	// ErrExerciseNotFound indicates the programming exercise id is unknown.
	ErrExerciseNotFound = errors.New("programming exercise not found")
	// ErrRebuildInProgress indicates the exercise's participations are already being rebuilt.
	ErrRebuildInProgress = errors.New("rebuild already in progress")
)

// TestCaseChangeService re-evaluates every participation of an exercise after its tests changed.
type TestCaseChangeService interface {
	NotifyTestCasesChanged(ctx context.Context, exerciseID uint) (dto.TestCaseChangeResponse, error)
}

type testCaseChangeService struct {
	exercises      repository.ProgrammingExerciseRepository
	participations repository.ParticipationRepository
	submissions    repository.ProgrammingSubmissionRepository
	ci             ContinuousIntegration
	locks          *SubmissionLocks
	running        *inFlightSet
	concurrency    int
	logger         zerolog.Logger
}

// NewTestCaseChangeService constructs the service. concurrency bounds parallel build triggers.
func NewTestCaseChangeService(exerciseRepo repository.ProgrammingExerciseRepository, participationRepo repository.ParticipationRepository, submissionRepo repository.ProgrammingSubmissionRepository, ci ContinuousIntegration, locks *SubmissionLocks, concurrency int, logger zerolog.Logger) TestCaseChangeService {
	if concurrency <= 0 {
		concurrency = 4
	}
	if locks == nil {
		locks = NewSubmissionLocks()
	}
	return &testCaseChangeService{
		exercises:      exerciseRepo,
		participations: participationRepo,
		submissions:    submissionRepo,
		ci:             ci,
		locks:          locks,
		running:        newInFlightSet(),
		concurrency:    concurrency,
		logger:         logger.With().Str("component", "test_case_change_service").Logger(),
	}
}

// NotifyTestCasesChanged records an OTHER submission for the latest commit of every participation
// with a build plan and queues a new build for it. Individual trigger failures are counted, not returned.
func (s *testCaseChangeService) NotifyTestCasesChanged(ctx context.Context, exerciseID uint) (dto.TestCaseChangeResponse, error) {
	if _, err := s.exercises.GetByID(ctx, exerciseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TestCaseChangeResponse{}, ErrExerciseNotFound
		}
		return dto.TestCaseChangeResponse{}, err
	}

	if !s.running.tryStart(exerciseID) {
		return dto.TestCaseChangeResponse{}, ErrRebuildInProgress
	}
	defer s.running.finish(exerciseID)

	if err := s.exercises.SetTestCasesChanged(ctx, exerciseID, true); err != nil {
		return dto.TestCaseChangeResponse{}, err
	}

	participations, err := s.participations.ListByExercise(ctx, exerciseID)
	if err != nil {
		return dto.TestCaseChangeResponse{}, err
	}

	response := dto.TestCaseChangeResponse{ExerciseID: exerciseID}
	var mu sync.Mutex
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, participation := range participations {
		if !participation.HasBuildPlan() {
			count(&response.Skipped)
			continue
		}

		participation := participation
		group.Go(func() error {
			switch err := s.rebuild(groupCtx, participation); {
			case errors.Is(err, errNothingToRebuild):
				count(&response.Skipped)
			case err != nil:
				count(&response.Failed)
				observability.RebuildsQueued().WithLabelValues("failed").Inc()
				s.logger.Warn().Err(err).Uint("participation_id", participation.ID).Msg("failed to trigger rebuild")
			default:
				count(&response.Queued)
				observability.RebuildsQueued().WithLabelValues("queued").Inc()
			}
			return nil
		})
	}
	_ = group.Wait()

	if response.Failed == 0 {
		if err := s.exercises.SetTestCasesChanged(ctx, exerciseID, false); err != nil {
			s.logger.Warn().Err(err).Uint("exercise_id", exerciseID).Msg("failed to clear test case change flag")
		}
	}

	s.logger.Info().
		Uint("exercise_id", exerciseID).
		Int("queued", response.Queued).
		Int("skipped", response.Skipped).
		Int("failed", response.Failed).
		Msg("test case change processed")

	return response, nil
}

var errNothingToRebuild = errors.New("participation has no submission")

func (s *testCaseChangeService) rebuild(ctx context.Context, participation models.Participation) error {
	latest, err := s.submissions.LatestByParticipation(ctx, participation.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNothingToRebuild
		}
		return err
	}

	submission := models.ProgrammingSubmission{
		ParticipationID: participation.ID,
		CommitHash:      latest.CommitHash,
		Type:            models.SubmissionTypeOther,
		Submitted:       true,
		SubmissionDate:  latest.SubmissionDate,
	}

	unlock := s.locks.Lock(participation.ID, latest.CommitHash)
	_, err = s.submissions.FindOrCreate(ctx, &submission)
	unlock()
	if err != nil {
		return err
	}

	return s.ci.QueueBuild(ctx, participation.BuildPlanID)
}
