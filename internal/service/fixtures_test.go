package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{})
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

func seedStudentParticipation(t *testing.T, db *gorm.DB, id uint, planID string) models.Participation {
	t.Helper()

	exercise := models.ProgrammingExercise{Title: "Sorting", ProjectKey: "SORT"}
	require.NoError(t, db.Create(&exercise).Error)

	studentID := uint(7)
	participation := models.Participation{
		ID:          id,
		ExerciseID:  exercise.ID,
		StudentID:   &studentID,
		Type:        models.ParticipationTypeStudent,
		BuildPlanID: planID,
	}
	require.NoError(t, db.Create(&participation).Error)
	return participation
}

type fakeCI struct {
	mu sync.Mutex

	latest      bamboo.LegacyResult
	latestErr   error
	status      bamboo.PlanStatus
	logs        []bamboo.LogEntry
	artifact    bamboo.Artifact
	artifactErr error
	createErr   error
	cloneErr    error
	queueErr    map[string]error

	queued       []string
	cloned       [][2]string
	created      []bamboo.PlanSpec
	fetchedURLs  []string
	updatedRepos []string
}

func (f *fakeCI) QueueBuild(_ context.Context, buildPlanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.queueErr[buildPlanID]; err != nil {
		return err
	}
	f.queued = append(f.queued, buildPlanID)
	return nil
}

func (f *fakeCI) LatestBuildResult(context.Context, string) (bamboo.LegacyResult, error) {
	return f.latest, f.latestErr
}

func (f *fakeCI) BuildStatus(context.Context, string) (bamboo.PlanStatus, error) {
	return f.status, nil
}

func (f *fakeCI) BuildLogs(context.Context, string) ([]bamboo.LogEntry, error) {
	return f.logs, nil
}

func (f *fakeCI) FetchArtifact(_ context.Context, url string) (bamboo.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchedURLs = append(f.fetchedURLs, url)
	return f.artifact, f.artifactErr
}

func (f *fakeCI) CreatePlan(_ context.Context, spec bamboo.PlanSpec) error {
	f.created = append(f.created, spec)
	return f.createErr
}

func (f *fakeCI) ClonePlan(_ context.Context, sourceKey, targetKey string) error {
	f.cloned = append(f.cloned, [2]string{sourceKey, targetKey})
	return f.cloneErr
}

func (f *fakeCI) EnablePlan(context.Context, string) error { return nil }

func (f *fakeCI) DeletePlan(context.Context, string) error { return nil }

func (f *fakeCI) UpdatePlanRepository(_ context.Context, planKey, repositoryName, repositoryURL string) error {
	f.updatedRepos = append(f.updatedRepos, planKey+"/"+repositoryName+"="+repositoryURL)
	return nil
}

func (f *fakeCI) queuedPlans() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queued...)
}

type recordingBroadcaster struct {
	ResultBroadcaster

	mu       sync.Mutex
	messages []dto.NewSubmissionMessage
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, message dto.NewSubmissionMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingBroadcaster) sent() []dto.NewSubmissionMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dto.NewSubmissionMessage(nil), r.messages...)
}

type recordingLti struct {
	mu     sync.Mutex
	scores []int
	err    error
}

func (r *recordingLti) PushScore(_ context.Context, _ models.Participation, result models.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, result.Score)
	return r.err
}

func (r *recordingLti) RegisterOutcome(context.Context, models.LtiOutcomeURL) error { return nil }

func (r *recordingLti) pushed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.scores...)
}
