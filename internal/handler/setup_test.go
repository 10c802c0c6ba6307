package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/config"
	"github.com/noah-isme/artemis-ci-api/internal/database"
	"github.com/noah-isme/artemis-ci-api/internal/handler"
	"github.com/noah-isme/artemis-ci-api/internal/middleware"
	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
	"github.com/noah-isme/artemis-ci-api/internal/router"
	"github.com/noah-isme/artemis-ci-api/internal/service"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

type stubCI struct {
	mu sync.Mutex

	latest      bamboo.LegacyResult
	latestErr   error
	status      bamboo.PlanStatus
	statusErr   error
	logs        []bamboo.LogEntry
	artifact    bamboo.Artifact
	artifactErr error
	createErr   error
	cloneErr    error
	queueErr    error
	queued      []string
}

func (s *stubCI) QueueBuild(_ context.Context, planKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queueErr != nil {
		return s.queueErr
	}
	s.queued = append(s.queued, planKey)
	return nil
}

func (s *stubCI) LatestBuildResult(context.Context, string) (bamboo.LegacyResult, error) {
	return s.latest, s.latestErr
}

func (s *stubCI) BuildStatus(context.Context, string) (bamboo.PlanStatus, error) {
	return s.status, s.statusErr
}

func (s *stubCI) BuildLogs(context.Context, string) ([]bamboo.LogEntry, error) {
	return s.logs, nil
}

func (s *stubCI) FetchArtifact(context.Context, string) (bamboo.Artifact, error) {
	return s.artifact, s.artifactErr
}

func (s *stubCI) CreatePlan(context.Context, bamboo.PlanSpec) error { return s.createErr }

func (s *stubCI) ClonePlan(context.Context, string, string) error { return s.cloneErr }

func (s *stubCI) EnablePlan(context.Context, string) error { return nil }

func (s *stubCI) DeletePlan(context.Context, string) error { return nil }

func (s *stubCI) UpdatePlanRepository(context.Context, string, string, string) error { return nil }

func (s *stubCI) queuedPlans() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queued...)
}

type testApp struct {
	app         *fiber.App
	db          *gorm.DB
	ci          *stubCI
	broadcaster service.ResultBroadcaster
}

type appOptions struct {
	redis *redis.Client
	role  string
}

func setupApp(t *testing.T, opts appOptions) testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	ci := &stubCI{}

	participationRepo := repository.NewParticipationRepository(db)
	submissionRepo := repository.NewProgrammingSubmissionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	exerciseRepo := repository.NewProgrammingExerciseRepository(db)
	locks := service.NewSubmissionLocks()

	parser, err := service.NewBuildResultParser("assignment")
	require.NoError(t, err)

	broadcaster := service.NewResultBroadcaster(opts.redis, "artemis", nil, logger)
	reconciler := service.NewResultReconciler(participationRepo, submissionRepo, resultRepo, parser, ci, broadcaster, nil, locks, logger, service.ResultReconcilerConfig{})
	submissions := service.NewProgrammingSubmissionService(participationRepo, submissionRepo, resultRepo, locks, validate, logger)
	testCases := service.NewTestCaseChangeService(exerciseRepo, participationRepo, submissionRepo, ci, locks, 2, logger)
	outcomes := service.NewLtiOutcomeService(repository.NewLtiOutcomeRepository(db), nil, logger)
	plans := service.NewBuildPlanService(ci, participationRepo, resultRepo, nil, validate, logger)

	role := opts.role
	if role == "" {
		role = "instructor"
	}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		BuildResultHandler: handler.NewBuildResultHandler(reconciler, submissions, testCases, logger),
		RealtimeHandler:    handler.NewRealtimeHandler(broadcaster, logger),
		BuildPlanHandler:   handler.NewBuildPlanHandler(plans, reconciler, logger),
		LtiOutcomeHandler:  handler.NewLtiOutcomeHandler(outcomes, validate, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return testApp{app: app, db: db, ci: ci, broadcaster: broadcaster}
}

func seedParticipation(t *testing.T, db *gorm.DB, id uint, planKey string) models.Participation {
	t.Helper()

	exercise := models.ProgrammingExercise{Title: "Sorting", ProjectKey: "SORT"}
	require.NoError(t, db.Create(&exercise).Error)

	studentID := uint(7)
	participation := models.Participation{ID: id, ExerciseID: exercise.ID, StudentID: &studentID, Type: models.ParticipationTypeStudent, BuildPlanID: planKey}
	require.NoError(t, db.Create(&participation).Error)
	return participation
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	switch typed := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(typed)
	default:
		payload, err := json.Marshal(typed)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func itoa(value uint) string {
	return strconv.FormatUint(uint64(value), 10)
}
