package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
)

// ProgrammingSubmissionService records pushes to participation repositories.
type ProgrammingSubmissionService interface {
	NotifyPush(ctx context.Context, participationID uint, payload dto.PushNotificationRequest) (dto.SubmissionResponse, bool, error)
	ListByParticipation(ctx context.Context, participationID uint) ([]dto.SubmissionResponse, error)
	ListResults(ctx context.Context, participationID uint) ([]dto.ResultResponse, error)
}

type programmingSubmissionService struct {
	participations repository.ParticipationRepository
	submissions    repository.ProgrammingSubmissionRepository
	results        repository.ResultRepository
	locks          *SubmissionLocks
	validator      *validator.Validate
	logger         zerolog.Logger
	now            func() time.Time
}

// NewProgrammingSubmissionService constructs a programming submission service. locks must be
// shared with the result reconciler.
func NewProgrammingSubmissionService(participationRepo repository.ParticipationRepository, submissionRepo repository.ProgrammingSubmissionRepository, resultRepo repository.ResultRepository, locks *SubmissionLocks, validate *validator.Validate, logger zerolog.Logger) ProgrammingSubmissionService {
	if locks == nil {
		locks = NewSubmissionLocks()
	}
	return &programmingSubmissionService{
		participations: participationRepo,
		submissions:    submissionRepo,
		results:        resultRepo,
		locks:          locks,
		validator:      validate,
		logger:         logger.With().Str("component", "programming_submission_service").Logger(),
		now:            time.Now,
	}
}

// NotifyPush finds or creates the submission for the pushed commit. The flag reports creation.
func (s *programmingSubmissionService) NotifyPush(ctx context.Context, participationID uint, payload dto.PushNotificationRequest) (dto.SubmissionResponse, bool, error) {
	payload.CommitHash = strings.TrimSpace(payload.CommitHash)
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, false, err
	}

	participation, err := s.participations.GetByID(ctx, participationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, false, ErrParticipationNotFound
		}
		return dto.SubmissionResponse{}, false, err
	}

	submissionType := payload.Type
	if submissionType == "" {
		submissionType = models.SubmissionTypeManual
	}

	submission := models.ProgrammingSubmission{
		ParticipationID: participation.ID,
		CommitHash:      payload.CommitHash,
		Type:            submissionType,
		Submitted:       true,
		SubmissionDate:  s.now().UTC(),
	}

	unlock := s.locks.Lock(participation.ID, payload.CommitHash)
	created, err := s.submissions.FindOrCreate(ctx, &submission)
	unlock()
	if err != nil {
		return dto.SubmissionResponse{}, false, err
	}

	s.logger.Info().
		Uint("participation_id", participation.ID).
		Str("commit_hash", submission.CommitHash).
		Bool("created", created).
		Msg("push notification recorded")

	return dto.NewSubmissionResponse(submission), created, nil
}

func (s *programmingSubmissionService) ListByParticipation(ctx context.Context, participationID uint) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.ListByParticipation(ctx, participationID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission))
	}
	return responses, nil
}

// ListResults returns every result of the participation, oldest first, with its feedback.
func (s *programmingSubmissionService) ListResults(ctx context.Context, participationID uint) ([]dto.ResultResponse, error) {
	if _, err := s.participations.GetByID(ctx, participationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipationNotFound
		}
		return nil, err
	}

	results, err := s.results.ListByParticipation(ctx, participationID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, dto.NewResultResponse(result))
	}
	return responses, nil
}
