package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.ProgrammingExercise{},
		&models.Participation{},
		&models.ProgrammingSubmission{},
		&models.Result{},
		&models.Feedback{},
		&models.LtiOutcomeURL{},
	))
	return db
}

func seedParticipation(t *testing.T, db *gorm.DB, planID string) models.Participation {
	t.Helper()

	exercise := models.ProgrammingExercise{Title: "Sorting", ProjectKey: "SORT"}
	require.NoError(t, db.Create(&exercise).Error)

	studentID := uint(7)
	participation := models.Participation{
		ExerciseID:  exercise.ID,
		StudentID:   &studentID,
		Type:        models.ParticipationTypeStudent,
		BuildPlanID: planID,
	}
	require.NoError(t, db.Create(&participation).Error)
	return participation
}
