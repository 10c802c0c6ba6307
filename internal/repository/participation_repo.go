package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

// ParticipationRepository exposes persistence helpers for participations.
type ParticipationRepository interface {
	Create(ctx context.Context, participation *models.Participation) error
	GetByID(ctx context.Context, id uint) (models.Participation, error)
	GetByBuildPlanID(ctx context.Context, buildPlanID string) (models.Participation, error)
	ListByExercise(ctx context.Context, exerciseID uint) ([]models.Participation, error)
	UpdateBuildPlan(ctx context.Context, id uint, buildPlanID string) error
}

// NewParticipationRepository constructs a participation repository.
func NewParticipationRepository(db *gorm.DB) ParticipationRepository {
	return &participationRepository{db: db}
}

type participationRepository struct {
	db *gorm.DB
}

func (r *participationRepository) Create(ctx context.Context, participation *models.Participation) error {
	return r.db.WithContext(ctx).Create(participation).Error
}

func (r *participationRepository) GetByID(ctx context.Context, id uint) (models.Participation, error) {
	var participation models.Participation
	err := r.db.WithContext(ctx).
		Preload("Exercise").
		First(&participation, id).Error
	if err != nil {
		return models.Participation{}, err
	}
	return participation, nil
}

func (r *participationRepository) GetByBuildPlanID(ctx context.Context, buildPlanID string) (models.Participation, error) {
	var participation models.Participation
	err := r.db.WithContext(ctx).
		Preload("Exercise").
		Where("UPPER(build_plan_id) = ?", strings.ToUpper(buildPlanID)).
		First(&participation).Error
	if err != nil {
		return models.Participation{}, err
	}
	return participation, nil
}

func (r *participationRepository) ListByExercise(ctx context.Context, exerciseID uint) ([]models.Participation, error) {
	var participations []models.Participation
	err := r.db.WithContext(ctx).
		Where("exercise_id = ?", exerciseID).
		Order("id ASC").
		Find(&participations).Error
	return participations, err
}

func (r *participationRepository) UpdateBuildPlan(ctx context.Context, id uint, buildPlanID string) error {
	tx := r.db.WithContext(ctx).
		Model(&models.Participation{}).
		Where("id = ?", id).
		Update("build_plan_id", strings.ToUpper(buildPlanID))
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
