package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

// Migrate creates or updates the tables owned by the service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ProgrammingExercise{},
		&models.Participation{},
		&models.ProgrammingSubmission{},
		&models.Result{},
		&models.Feedback{},
		&models.LtiOutcomeURL{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
