package bamboo

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// CreatePlan imports a new build plan for the given repositories.
func (c *Client) CreatePlan(ctx context.Context, spec PlanSpec) error {
	spec.ProjectKey = strings.ToUpper(spec.ProjectKey)
	spec.PlanKey = strings.ToUpper(spec.PlanKey)
	return c.do(ctx, "create_plan", http.MethodPost, "/rest/api/latest/import/plan", spec, nil)
}

// ClonePlan copies sourceKey into targetKey. Keys have the PROJECT-PLAN form.
func (c *Client) ClonePlan(ctx context.Context, sourceKey, targetKey string) error {
	path := "/rest/api/latest/clone/" + strings.ToUpper(sourceKey) + ":" + strings.ToUpper(targetKey)
	return c.do(ctx, "clone_plan", http.MethodPut, path, nil, nil)
}

// EnablePlan activates a plan so pushes trigger builds.
func (c *Client) EnablePlan(ctx context.Context, planKey string) error {
	path := "/rest/api/latest/plan/" + strings.ToUpper(planKey) + "/enable"
	return c.do(ctx, "enable_plan", http.MethodPost, path, nil, nil)
}

// DeletePlan removes a plan and its build history.
func (c *Client) DeletePlan(ctx context.Context, planKey string) error {
	path := "/rest/api/latest/plan/" + strings.ToUpper(planKey)
	return c.do(ctx, "delete_plan", http.MethodDelete, path, nil, nil)
}

// UpdatePlanRepository points the named plan repository at a new URL.
func (c *Client) UpdatePlanRepository(ctx context.Context, planKey, repositoryName, repositoryURL string) error {
	path := "/rest/api/latest/plan/" + strings.ToUpper(planKey) + "/repository/" + url.PathEscape(repositoryName)
	body := map[string]string{"repositoryUrl": repositoryURL}
	return c.do(ctx, "update_plan_repository", http.MethodPut, path, body, nil)
}
