package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/internal/repository"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

type stubMirror struct {
	planKey     string
	buildNumber int
	name        string
	data        []byte
	err         error
}

func (m *stubMirror) MirrorArtifact(_ context.Context, planKey string, buildNumber int, name string, reader io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.planKey, m.buildNumber, m.name, m.data = planKey, buildNumber, name, data
	return "https://cdn.example.com/" + name, nil
}

func newBuildPlanFixture(t *testing.T, mirror ArtifactMirror) (BuildPlanService, *fakeCI, *gorm.DB) {
	t.Helper()

	db := newServiceTestDB(t)
	ci := &fakeCI{}
	svc := NewBuildPlanService(
		ci,
		repository.NewParticipationRepository(db),
		repository.NewResultRepository(db),
		mirror,
		validator.New(),
		zerolog.Nop(),
	)
	return svc, ci, db
}

func TestComposePlanKey(t *testing.T) {
	require.Equal(t, "SORT-STUDENT7", ComposePlanKey(" sort", "student7 "))
}

func TestMapBuildStatus(t *testing.T) {
	cases := []struct {
		status bamboo.PlanStatus
		want   string
	}{
		{bamboo.PlanStatus{}, BuildStatusInactive},
		{bamboo.PlanStatus{IsBuilding: true}, BuildStatusInactive},
		{bamboo.PlanStatus{IsActive: true}, BuildStatusQueued},
		{bamboo.PlanStatus{IsActive: true, IsBuilding: true}, BuildStatusBuilding},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, MapBuildStatus(tc.status))
	}
}

func TestCreateBuildPlanAttachesParticipation(t *testing.T) {
	svc, ci, db := newBuildPlanFixture(t, nil)
	participation := seedStudentParticipation(t, db, 42, "")

	response, err := svc.CreateBuildPlan(context.Background(), dto.CreateBuildPlanRequest{
		ProjectKey:      "sort",
		PlanKey:         "student7",
		Name:            "Sorting student7",
		RepositoryURL:   "https://vcs.example.com/sort-student7.git",
		ParticipationID: &participation.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "SORT-STUDENT7", response.PlanKey)
	require.Len(t, ci.created, 1)

	var stored models.Participation
	require.NoError(t, db.First(&stored, participation.ID).Error)
	require.Equal(t, "SORT-STUDENT7", stored.BuildPlanID)
}

func TestCreateBuildPlanValidatesPayload(t *testing.T) {
	svc, ci, _ := newBuildPlanFixture(t, nil)

	_, err := svc.CreateBuildPlan(context.Background(), dto.CreateBuildPlanRequest{ProjectKey: "SORT"})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	require.Empty(t, ci.created)
}

func TestClonePlanTreatsExistingTargetAsSuccess(t *testing.T) {
	svc, ci, db := newBuildPlanFixture(t, nil)
	participation := seedStudentParticipation(t, db, 42, "")
	ci.cloneErr = &bamboo.OperationError{Op: "clone_plan", StatusCode: 400, Message: "Plan SORT-STUDENT7 already exists"}

	response, err := svc.ClonePlan(context.Background(), dto.ClonePlanRequest{
		SourceProjectKey: "SORT",
		SourcePlanKey:    "BASE",
		TargetProjectKey: "SORT",
		TargetPlanKey:    "STUDENT7",
		ParticipationID:  &participation.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "SORT-STUDENT7", response.PlanKey)
	require.Equal(t, [][2]string{{"SORT-BASE", "SORT-STUDENT7"}}, ci.cloned)

	var stored models.Participation
	require.NoError(t, db.First(&stored, participation.ID).Error)
	require.Equal(t, "SORT-STUDENT7", stored.BuildPlanID)
}

func TestClonePlanSurfacesOperationError(t *testing.T) {
	svc, ci, _ := newBuildPlanFixture(t, nil)
	ci.cloneErr = &bamboo.OperationError{Op: "clone_plan", StatusCode: 403, Message: "permission denied"}

	_, err := svc.ClonePlan(context.Background(), dto.ClonePlanRequest{
		SourceProjectKey: "SORT",
		SourcePlanKey:    "BASE",
		TargetProjectKey: "SORT",
		TargetPlanKey:    "STUDENT7",
	})
	var opErr *bamboo.OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, 403, opErr.StatusCode)
}

func TestClonePlanUnknownParticipation(t *testing.T) {
	svc, _, _ := newBuildPlanFixture(t, nil)
	missing := uint(999)

	_, err := svc.ClonePlan(context.Background(), dto.ClonePlanRequest{
		SourceProjectKey: "SORT",
		SourcePlanKey:    "BASE",
		TargetProjectKey: "SORT",
		TargetPlanKey:    "STUDENT7",
		ParticipationID:  &missing,
	})
	require.ErrorIs(t, err, ErrParticipationNotFound)
}

func TestBuildPlanOperationsRejectInvalidKeys(t *testing.T) {
	svc, ci, _ := newBuildPlanFixture(t, nil)
	ctx := context.Background()

	for _, key := range []string{"", "SORT", "-STUDENT7", "SORT-"} {
		require.ErrorIs(t, svc.TriggerBuild(ctx, key), ErrInvalidPlanKey)
		_, err := svc.BuildStatus(ctx, key)
		require.ErrorIs(t, err, ErrInvalidPlanKey)
	}
	require.Empty(t, ci.queuedPlans())
}

func TestBuildStatusAndLogs(t *testing.T) {
	svc, ci, _ := newBuildPlanFixture(t, nil)
	ci.status = bamboo.PlanStatus{IsActive: true, IsBuilding: true}
	ci.logs = []bamboo.LogEntry{{Time: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Log: "COMPILATION ERROR"}}

	status, err := svc.BuildStatus(context.Background(), "sort-student7")
	require.NoError(t, err)
	require.Equal(t, dto.BuildStatusResponse{PlanKey: "SORT-STUDENT7", Status: BuildStatusBuilding}, status)

	logs, err := svc.BuildLogs(context.Background(), "SORT-STUDENT7")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "COMPILATION ERROR", logs[0].Log)

	require.NoError(t, svc.TriggerBuild(context.Background(), "sort-student7"))
	require.Equal(t, []string{"SORT-STUDENT7"}, ci.queuedPlans())

	require.NoError(t, svc.UpdatePlanRepository(context.Background(), "SORT-STUDENT7", dto.UpdatePlanRepositoryRequest{
		RepositoryName: "assignment",
		RepositoryURL:  "https://vcs.example.com/new.git",
	}))
	require.Equal(t, []string{"SORT-STUDENT7/assignment=https://vcs.example.com/new.git"}, ci.updatedRepos)
}

func seedArtifactResult(t *testing.T, db *gorm.DB, participationID uint) {
	t.Helper()
	result := models.Result{
		ParticipationID: participationID,
		Score:           50,
		CompletionDate:  time.Now().UTC(),
		AssessmentType:  models.AssessmentTypeAutomatic,
		BuildArtifact:   true,
		BuildInfo: datatypes.JSONMap{
			"build_number":  4,
			"artifact_urls": []string{"/artifact/SORT-STUDENT7/JOB1/build-4/jar/"},
		},
	}
	require.NoError(t, db.Create(&result).Error)
}

func TestBuildArtifactFetchesLatestResultArtifact(t *testing.T) {
	svc, ci, db := newBuildPlanFixture(t, nil)
	seedStudentParticipation(t, db, 42, "SORT-STUDENT7")
	seedArtifactResult(t, db, 42)
	ci.artifact = bamboo.Artifact{Name: "sort.jar", ContentType: "application/zip", Data: []byte("PK")}

	artifact, err := svc.BuildArtifact(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "sort.jar", artifact.Name)
	require.Equal(t, []string{"/artifact/SORT-STUDENT7/JOB1/build-4/jar/"}, ci.fetchedURLs)
}

func TestBuildArtifactWithoutResult(t *testing.T) {
	svc, _, db := newBuildPlanFixture(t, nil)
	seedStudentParticipation(t, db, 42, "SORT-STUDENT7")

	_, err := svc.BuildArtifact(context.Background(), 42)
	require.ErrorIs(t, err, bamboo.ErrArtifactNotFound)

	_, err = svc.BuildArtifact(context.Background(), 404)
	require.ErrorIs(t, err, ErrParticipationNotFound)
}

func TestMirrorArtifact(t *testing.T) {
	mirror := &stubMirror{}
	svc, ci, db := newBuildPlanFixture(t, mirror)
	seedStudentParticipation(t, db, 42, "SORT-STUDENT7")
	seedArtifactResult(t, db, 42)
	ci.artifact = bamboo.Artifact{Name: "sort.jar", Data: []byte("PK")}

	response, err := svc.MirrorArtifact(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, dto.BuildArtifactMirrorResponse{Name: "sort.jar", URL: "https://cdn.example.com/sort.jar"}, response)
	require.Equal(t, "SORT-STUDENT7", mirror.planKey)
	require.Equal(t, 4, mirror.buildNumber)
	require.Equal(t, []byte("PK"), mirror.data)

	mirror.err = errors.New("upload failed")
	_, err = svc.MirrorArtifact(context.Background(), 42)
	require.EqualError(t, err, "upload failed")
}

func TestMirrorArtifactDisabled(t *testing.T) {
	svc, _, _ := newBuildPlanFixture(t, nil)

	_, err := svc.MirrorArtifact(context.Background(), 42)
	require.ErrorIs(t, err, ErrArtifactMirrorDisabled)
}
