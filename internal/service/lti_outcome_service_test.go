package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
)

type capturedScore struct {
	url       string
	sourcedID string
	score     int
}

type stubReporter struct {
	calls []capturedScore
	err   error
}

func (r *stubReporter) ReplaceResult(_ context.Context, outcomeURL, sourcedID string, score int) error {
	r.calls = append(r.calls, capturedScore{url: outcomeURL, sourcedID: sourcedID, score: score})
	return r.err
}

func TestPushScoreUsesRegisteredOutcome(t *testing.T) {
	db := newServiceTestDB(t)
	participation := seedStudentParticipation(t, db, 42, "SORT-STUDENT7")
	reporter := &stubReporter{}
	svc := NewLtiOutcomeService(repository.NewLtiOutcomeRepository(db), reporter, zerolog.Nop())

	require.NoError(t, svc.RegisterOutcome(context.Background(), models.LtiOutcomeURL{
		StudentID:  *participation.StudentID,
		ExerciseID: participation.ExerciseID,
		URL:        "https://lms.example.com/outcomes",
		SourcedID:  "sourced-1",
	}))
	require.NoError(t, svc.RegisterOutcome(context.Background(), models.LtiOutcomeURL{
		StudentID:  *participation.StudentID,
		ExerciseID: participation.ExerciseID,
		URL:        "https://lms.example.com/outcomes/v2",
		SourcedID:  "sourced-2",
	}))

	require.NoError(t, svc.PushScore(context.Background(), participation, models.Result{ID: 1, Score: 88}))
	require.Equal(t, []capturedScore{{url: "https://lms.example.com/outcomes/v2", sourcedID: "sourced-2", score: 88}}, reporter.calls)
}

func TestPushScoreSkipsWithoutOutcome(t *testing.T) {
	db := newServiceTestDB(t)
	participation := seedStudentParticipation(t, db, 42, "SORT-STUDENT7")
	reporter := &stubReporter{}
	svc := NewLtiOutcomeService(repository.NewLtiOutcomeRepository(db), reporter, zerolog.Nop())

	require.NoError(t, svc.PushScore(context.Background(), participation, models.Result{Score: 88}))

	participation.StudentID = nil
	require.NoError(t, svc.PushScore(context.Background(), participation, models.Result{Score: 88}))
	require.Empty(t, reporter.calls)
}

func TestPushScoreReturnsReporterError(t *testing.T) {
	db := newServiceTestDB(t)
	participation := seedStudentParticipation(t, db, 42, "SORT-STUDENT7")
	reporter := &stubReporter{err: errors.New("rejected")}
	svc := NewLtiOutcomeService(repository.NewLtiOutcomeRepository(db), reporter, zerolog.Nop())

	require.NoError(t, svc.RegisterOutcome(context.Background(), models.LtiOutcomeURL{
		StudentID:  *participation.StudentID,
		ExerciseID: participation.ExerciseID,
		URL:        "https://lms.example.com/outcomes",
		SourcedID:  "sourced-1",
	}))

	require.EqualError(t, svc.PushScore(context.Background(), participation, models.Result{Score: 10}), "rejected")
}
