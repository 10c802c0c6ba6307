package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

// ResultWrite reports what PersistAutomatic did besides inserting the result.
type ResultWrite struct {
	Submission        *models.ProgrammingSubmission
	SubmissionCreated bool
	// PriorAutomatic counts AUTOMATIC results the submission already held.
	PriorAutomatic int64
}

// ResultRepository exposes persistence helpers for results and their feedback.
type ResultRepository interface {
	PersistAutomatic(ctx context.Context, result *models.Result, submission *models.ProgrammingSubmission) (ResultWrite, error)
	GetByID(ctx context.Context, id uint) (models.Result, error)
	ListByParticipation(ctx context.Context, participationID uint) ([]models.Result, error)
	LatestByParticipation(ctx context.Context, participationID uint) (models.Result, error)
}

// NewResultRepository constructs a result repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

type resultRepository struct {
	db *gorm.DB
}

// PersistAutomatic stores result and its feedback in one transaction. When submission is
// non-nil it is found or created by participation and commit first and the result is linked to it.
func (r *resultRepository) PersistAutomatic(ctx context.Context, result *models.Result, submission *models.ProgrammingSubmission) (ResultWrite, error) {
	var write ResultWrite

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if submission != nil {
			created, err := findOrCreateSubmission(tx, submission)
			if err != nil {
				return err
			}

			if err := tx.Model(&models.Result{}).
				Where("submission_id = ? AND assessment_type = ?", submission.ID, models.AssessmentTypeAutomatic).
				Count(&write.PriorAutomatic).Error; err != nil {
				return err
			}

			submissionID := submission.ID
			result.SubmissionID = &submissionID
			write.Submission = submission
			write.SubmissionCreated = created
		}

		return tx.Create(result).Error
	})
	if err != nil {
		return ResultWrite{}, err
	}

	return write, nil
}

func (r *resultRepository) GetByID(ctx context.Context, id uint) (models.Result, error) {
	var result models.Result
	err := r.db.WithContext(ctx).
		Preload("Feedbacks").
		First(&result, id).Error
	if err != nil {
		return models.Result{}, err
	}
	return result, nil
}

func (r *resultRepository) ListByParticipation(ctx context.Context, participationID uint) ([]models.Result, error) {
	var results []models.Result
	err := r.db.WithContext(ctx).
		Preload("Feedbacks").
		Where("participation_id = ?", participationID).
		Order("completion_date ASC").
		Order("id ASC").
		Find(&results).Error
	return results, err
}

func (r *resultRepository) LatestByParticipation(ctx context.Context, participationID uint) (models.Result, error) {
	var result models.Result
	err := r.db.WithContext(ctx).
		Preload("Feedbacks").
		Where("participation_id = ?", participationID).
		Order("completion_date DESC").
		Order("id DESC").
		First(&result).Error
	if err != nil {
		return models.Result{}, err
	}
	return result, nil
}
