package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/artemis-ci-api/internal/dto"
	"github.com/noah-isme/artemis-ci-api/internal/models"
	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

func TestBuildPlanRoutesRequireInstructor(t *testing.T) {
	env := setupApp(t, appOptions{role: "student"})

	resp := doJSON(t, env.app, http.MethodGet, "/api/v2/build-plans/SORT-STUDENT7/status", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCreateBuildPlanHandler(t *testing.T) {
	env := setupApp(t, appOptions{})
	participation := seedParticipation(t, env.db, 42, "")

	resp := doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans", map[string]interface{}{
		"project_key":      "sort",
		"plan_key":         "student7",
		"name":             "Sorting student7",
		"repository_url":   "https://vcs.example.com/sort-student7.git",
		"participation_id": participation.ID,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var plan dto.BuildPlanResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &plan))
	require.Equal(t, "SORT-STUDENT7", plan.PlanKey)

	resp = doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans", map[string]string{"project_key": "sort"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestBuildPlanHandlerMapsCIErrors(t *testing.T) {
	env := setupApp(t, appOptions{})

	clone := map[string]string{
		"source_project_key": "SORT",
		"source_plan_key":    "BASE",
		"target_project_key": "SORT",
		"target_plan_key":    "STUDENT7",
	}

	env.ci.cloneErr = &bamboo.OperationError{Op: "clone_plan", StatusCode: 403, Message: "permission denied"}
	resp := doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans/clone", clone)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Details, &details))
	require.Equal(t, "permission denied", details["message"])

	env.ci.cloneErr = &bamboo.OperationError{Op: "clone_plan", StatusCode: 400, Message: "Plan already exists"}
	resp = doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans/clone", clone)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	env.ci.statusErr = &bamboo.NetworkError{Op: "build_status", Err: io.ErrUnexpectedEOF}
	resp = doJSON(t, env.app, http.MethodGet, "/api/v2/build-plans/SORT-STUDENT7/status", nil)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp = doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans/NOPLAN/trigger", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestBuildStatusTriggerAndLogs(t *testing.T) {
	env := setupApp(t, appOptions{})
	env.ci.status = bamboo.PlanStatus{IsActive: true}
	env.ci.logs = []bamboo.LogEntry{{Time: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Log: "BUILD FAILURE"}}

	resp := doJSON(t, env.app, http.MethodGet, "/api/v2/build-plans/sort-student7/status", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var status dto.BuildStatusResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &status))
	require.Equal(t, dto.BuildStatusResponse{PlanKey: "SORT-STUDENT7", Status: "QUEUED"}, status)

	resp = doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans/SORT-STUDENT7/trigger", nil)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Equal(t, []string{"SORT-STUDENT7"}, env.ci.queuedPlans())

	resp = doJSON(t, env.app, http.MethodGet, "/api/v2/build-plans/SORT-STUDENT7/logs", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var logs []dto.BuildLogEntryResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &logs))
	require.Len(t, logs, 1)
}

func TestBuildArtifactDownload(t *testing.T) {
	env := setupApp(t, appOptions{})
	seedParticipation(t, env.db, 42, "SORT-STUDENT7")

	resp := doJSON(t, env.app, http.MethodGet, "/api/v2/build-plans/participations/42/artifact", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	result := models.Result{
		ParticipationID: 42,
		CompletionDate:  time.Now().UTC(),
		AssessmentType:  models.AssessmentTypeAutomatic,
		BuildArtifact:   true,
		BuildInfo:       datatypes.JSONMap{"artifact_urls": []string{"/artifact/SORT-STUDENT7/JOB1/build-4/jar/"}},
	}
	require.NoError(t, env.db.Create(&result).Error)
	env.ci.artifact = bamboo.Artifact{Name: "sort.zip", Data: []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00")}

	resp = doJSON(t, env.app, http.MethodGet, "/api/v2/build-plans/participations/42/artifact", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "sort.zip")

	resp = doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans/participations/42/artifact/mirror", nil)
	require.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)

	env.ci.artifactErr = fmt.Errorf("artifact exceeds limit: %w", bamboo.ErrArtifactTooLarge)
	resp = doJSON(t, env.app, http.MethodGet, "/api/v2/build-plans/participations/42/artifact", nil)
	require.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestPollLatestResult(t *testing.T) {
	env := setupApp(t, appOptions{})
	seedParticipation(t, env.db, 42, "SORT-STUDENT7")

	env.ci.latestErr = bamboo.ErrNotFound
	resp := doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans/participations/42/latest-result", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	successful := true
	env.ci.latestErr = nil
	env.ci.latest = bamboo.LegacyResult{Successful: &successful, BuildCompletedDate: "2024-01-01T10:00:00.000Z", ChangesetID: "c5"}

	resp = doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans/participations/42/latest-result", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "latest build result processed", decodeEnvelope(t, resp).Message)

	resp = doJSON(t, env.app, http.MethodPost, "/api/v2/build-plans/participations/42/latest-result", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "latest build result already recorded", decodeEnvelope(t, resp).Message)
}
