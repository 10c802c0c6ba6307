package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

// ProgrammingSubmissionRepository exposes persistence helpers for programming submissions.
type ProgrammingSubmissionRepository interface {
	FindOrCreate(ctx context.Context, submission *models.ProgrammingSubmission) (bool, error)
	GetByParticipationAndCommit(ctx context.Context, participationID uint, commitHash string) (models.ProgrammingSubmission, error)
	LatestByParticipation(ctx context.Context, participationID uint) (models.ProgrammingSubmission, error)
	ListByParticipation(ctx context.Context, participationID uint) ([]models.ProgrammingSubmission, error)
}

// NewProgrammingSubmissionRepository constructs a programming submission repository.
func NewProgrammingSubmissionRepository(db *gorm.DB) ProgrammingSubmissionRepository {
	return &programmingSubmissionRepository{db: db}
}

type programmingSubmissionRepository struct {
	db *gorm.DB
}

// FindOrCreate stores submission unless one already exists for its participation and commit.
// On return submission holds the persisted row; the flag reports whether it was inserted.
func (r *programmingSubmissionRepository) FindOrCreate(ctx context.Context, submission *models.ProgrammingSubmission) (bool, error) {
	return findOrCreateSubmission(r.db.WithContext(ctx), submission)
}

func (r *programmingSubmissionRepository) GetByParticipationAndCommit(ctx context.Context, participationID uint, commitHash string) (models.ProgrammingSubmission, error) {
	var submission models.ProgrammingSubmission
	err := r.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Results.Feedbacks").
		Where("participation_id = ? AND commit_hash = ?", participationID, commitHash).
		First(&submission).Error
	if err != nil {
		return models.ProgrammingSubmission{}, err
	}
	return submission, nil
}

func (r *programmingSubmissionRepository) LatestByParticipation(ctx context.Context, participationID uint) (models.ProgrammingSubmission, error) {
	var submission models.ProgrammingSubmission
	err := r.db.WithContext(ctx).
		Where("participation_id = ?", participationID).
		Order("submission_date DESC").
		Order("id DESC").
		First(&submission).Error
	if err != nil {
		return models.ProgrammingSubmission{}, err
	}
	return submission, nil
}

func (r *programmingSubmissionRepository) ListByParticipation(ctx context.Context, participationID uint) ([]models.ProgrammingSubmission, error) {
	var submissions []models.ProgrammingSubmission
	err := r.db.WithContext(ctx).
		Preload("Results").
		Where("participation_id = ?", participationID).
		Order("submission_date ASC").
		Order("id ASC").
		Find(&submissions).Error
	return submissions, err
}

func findOrCreateSubmission(db *gorm.DB, submission *models.ProgrammingSubmission) (bool, error) {
	tx := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participation_id"}, {Name: "commit_hash"}},
		DoNothing: true,
	}).Create(submission)
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected > 0 {
		return true, nil
	}

	var existing models.ProgrammingSubmission
	err := db.
		Preload("Results").
		Where("participation_id = ? AND commit_hash = ?", submission.ParticipationID, submission.CommitHash).
		First(&existing).Error
	if err != nil {
		return false, err
	}
	*submission = existing
	return false, nil
}
