package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

func TestFindOrCreateReturnsExistingSubmission(t *testing.T) {
	db := setupTestDB(t)
	participation := seedParticipation(t, db, "SORT-STUDENT7")
	repo := NewProgrammingSubmissionRepository(db)
	ctx := context.Background()

	first := models.ProgrammingSubmission{ParticipationID: participation.ID, CommitHash: "c1", Type: models.SubmissionTypeManual, SubmissionDate: time.Now()}
	created, err := repo.FindOrCreate(ctx, &first)
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, first.ID)

	second := models.ProgrammingSubmission{ParticipationID: participation.ID, CommitHash: "c1", Type: models.SubmissionTypeOther, SubmissionDate: time.Now()}
	created, err = repo.FindOrCreate(ctx, &second)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.SubmissionTypeManual, second.Type)

	var count int64
	require.NoError(t, db.Model(&models.ProgrammingSubmission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestFindOrCreateConcurrentCallsCreateOneSubmission(t *testing.T) {
	db := setupTestDB(t)
	participation := seedParticipation(t, db, "SORT-STUDENT7")
	repo := NewProgrammingSubmissionRepository(db)

	var wg sync.WaitGroup
	ids := make(chan uint, 8)
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			submission := models.ProgrammingSubmission{ParticipationID: participation.ID, CommitHash: "race", Type: models.SubmissionTypeOther}
			if _, err := repo.FindOrCreate(context.Background(), &submission); err != nil {
				errs <- err
				return
			}
			ids <- submission.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var first uint
	for id := range ids {
		if first == 0 {
			first = id
		}
		require.Equal(t, first, id)
	}

	var count int64
	require.NoError(t, db.Model(&models.ProgrammingSubmission{}).Where("commit_hash = ?", "race").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestLatestByParticipation(t *testing.T) {
	db := setupTestDB(t)
	participation := seedParticipation(t, db, "SORT-STUDENT7")
	repo := NewProgrammingSubmissionRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, hash := range []string{"a", "b", "c"} {
		submission := models.ProgrammingSubmission{ParticipationID: participation.ID, CommitHash: hash, Type: models.SubmissionTypeManual, SubmissionDate: base.Add(time.Duration(i) * time.Minute)}
		_, err := repo.FindOrCreate(ctx, &submission)
		require.NoError(t, err)
	}

	latest, err := repo.LatestByParticipation(ctx, participation.ID)
	require.NoError(t, err)
	require.Equal(t, "c", latest.CommitHash)

	all, err := repo.ListByParticipation(ctx, participation.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].CommitHash)
}
