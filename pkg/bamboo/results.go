package bamboo

import (
	"context"
	"net/http"
	"strings"
)

const latestResultExpand = "testResults.failedTests.testResult.errors,artifacts,changes,vcsRevisions"

// QueueBuild triggers a new build of the given plan.
func (c *Client) QueueBuild(ctx context.Context, buildPlanID string) error {
	path := "/rest/api/latest/queue/" + strings.ToUpper(strings.TrimSpace(buildPlanID))
	return c.do(ctx, "queue_build", http.MethodPost, path, nil, nil)
}

// LatestBuildResult fetches the most recent result of the plan's first job in the legacy shape.
func (c *Client) LatestBuildResult(ctx context.Context, planKey string) (LegacyResult, error) {
	var resp restResult
	path := "/rest/api/latest/result/" + jobKey(planKey) + "/latest.json?expand=" + latestResultExpand
	if err := c.do(ctx, "latest_result", http.MethodGet, path, nil, &resp); err != nil {
		return LegacyResult{}, err
	}

	successful := resp.Successful || strings.EqualFold(resp.BuildState, "Successful")
	result := LegacyResult{
		Successful:         &successful,
		BuildTestSummary:   resp.BuildTestSummary,
		BuildCompletedDate: resp.BuildCompletedDate,
		BuildReason:        resp.BuildReason,
		BuildNumber:        resp.BuildNumber,
		VCSRevisionKey:     resp.VCSRevisionKey,
		Details:            resp.TestResults.FailedTests.TestResult,
	}
	if len(resp.Changes.Change) > 0 {
		result.ChangesetID = resp.Changes.Change[0].ChangesetID
	}
	for _, artifact := range resp.Artifacts.Artifact {
		if artifact.Link.Href == "" {
			continue
		}
		result.Artifacts = append(result.Artifacts, LegacyArtifact{Name: artifact.Name, Href: artifact.Link.Href})
	}

	return result, nil
}

// BuildStatus reports whether the plan is queued or currently building.
func (c *Client) BuildStatus(ctx context.Context, planKey string) (PlanStatus, error) {
	var status PlanStatus
	path := "/rest/api/latest/plan/" + strings.ToUpper(strings.TrimSpace(planKey)) + ".json"
	if err := c.do(ctx, "plan_status", http.MethodGet, path, nil, &status); err != nil {
		return PlanStatus{}, err
	}
	return status, nil
}
