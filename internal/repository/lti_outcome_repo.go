package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

// LtiOutcomeRepository stores the LTI outcome endpoints registered during launches.
type LtiOutcomeRepository interface {
	Find(ctx context.Context, studentID, exerciseID uint) (models.LtiOutcomeURL, error)
	Upsert(ctx context.Context, outcome *models.LtiOutcomeURL) error
}

// NewLtiOutcomeRepository constructs an LTI outcome repository.
func NewLtiOutcomeRepository(db *gorm.DB) LtiOutcomeRepository {
	return &ltiOutcomeRepository{db: db}
}

type ltiOutcomeRepository struct {
	db *gorm.DB
}

func (r *ltiOutcomeRepository) Find(ctx context.Context, studentID, exerciseID uint) (models.LtiOutcomeURL, error) {
	var outcome models.LtiOutcomeURL
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND exercise_id = ?", studentID, exerciseID).
		First(&outcome).Error
	if err != nil {
		return models.LtiOutcomeURL{}, err
	}
	return outcome, nil
}

func (r *ltiOutcomeRepository) Upsert(ctx context.Context, outcome *models.LtiOutcomeURL) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "exercise_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "sourced_id", "updated_at"}),
	}).Create(outcome).Error
}
