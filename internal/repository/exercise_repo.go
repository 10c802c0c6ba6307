package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

// ProgrammingExerciseRepository exposes persistence helpers for programming exercises.
type ProgrammingExerciseRepository interface {
	GetByID(ctx context.Context, id uint) (models.ProgrammingExercise, error)
	SetTestCasesChanged(ctx context.Context, id uint, changed bool) error
}

// NewProgrammingExerciseRepository constructs an exercise repository.
func NewProgrammingExerciseRepository(db *gorm.DB) ProgrammingExerciseRepository {
	return &programmingExerciseRepository{db: db}
}

type programmingExerciseRepository struct {
	db *gorm.DB
}

func (r *programmingExerciseRepository) GetByID(ctx context.Context, id uint) (models.ProgrammingExercise, error) {
	var exercise models.ProgrammingExercise
	if err := r.db.WithContext(ctx).First(&exercise, id).Error; err != nil {
		return models.ProgrammingExercise{}, err
	}
	return exercise, nil
}

func (r *programmingExerciseRepository) SetTestCasesChanged(ctx context.Context, id uint, changed bool) error {
	tx := r.db.WithContext(ctx).
		Model(&models.ProgrammingExercise{}).
		Where("id = ?", id).
		Update("test_cases_changed", changed)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
