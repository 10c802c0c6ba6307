package service

import (
	"context"

	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

// ContinuousIntegration is the CI server capability the services depend on.
// *bamboo.Client is the implementation wired at startup.
type ContinuousIntegration interface {
	QueueBuild(ctx context.Context, buildPlanID string) error
	LatestBuildResult(ctx context.Context, planKey string) (bamboo.LegacyResult, error)
	BuildStatus(ctx context.Context, planKey string) (bamboo.PlanStatus, error)
	BuildLogs(ctx context.Context, planKey string) ([]bamboo.LogEntry, error)
	FetchArtifact(ctx context.Context, url string) (bamboo.Artifact, error)
	CreatePlan(ctx context.Context, spec bamboo.PlanSpec) error
	ClonePlan(ctx context.Context, sourceKey, targetKey string) error
	EnablePlan(ctx context.Context, planKey string) error
	DeletePlan(ctx context.Context, planKey string) error
	UpdatePlanRepository(ctx context.Context, planKey, repositoryName, repositoryURL string) error
}

var _ ContinuousIntegration = (*bamboo.Client)(nil)
