package dto

import "time"

// PushNotificationRequest is sent by the VCS server when a participation repository receives a push.
type PushNotificationRequest struct {
	CommitHash string `json:"commit_hash" validate:"required,max=255"`
	Type       string `json:"type" validate:"omitempty,oneof=MANUAL OTHER TEST"`
}

// CreateBuildPlanRequest describes a new build plan for an exercise repository.
type CreateBuildPlanRequest struct {
	ProjectKey        string `json:"project_key" validate:"required,alphanum,max=32"`
	PlanKey           string `json:"plan_key" validate:"required,alphanum,max=64"`
	Name              string `json:"name" validate:"required,max=255"`
	RepositoryURL     string `json:"repository_url" validate:"required,url"`
	TestRepositoryURL string `json:"test_repository_url" validate:"omitempty,url"`
	ParticipationID   *uint  `json:"participation_id" validate:"omitempty,gt=0"`
}

// ClonePlanRequest copies an existing plan (usually the template plan) for a participation.
type ClonePlanRequest struct {
	SourceProjectKey string `json:"source_project_key" validate:"required,alphanum,max=32"`
	SourcePlanKey    string `json:"source_plan_key" validate:"required,alphanum,max=64"`
	TargetProjectKey string `json:"target_project_key" validate:"required,alphanum,max=32"`
	TargetPlanKey    string `json:"target_plan_key" validate:"required,alphanum,max=64"`
	ParticipationID  *uint  `json:"participation_id" validate:"omitempty,gt=0"`
}

// UpdatePlanRepositoryRequest points a plan repository at a new VCS url.
type UpdatePlanRepositoryRequest struct {
	RepositoryName string `json:"repository_name" validate:"required,max=128"`
	RepositoryURL  string `json:"repository_url" validate:"required,url"`
}

// BuildPlanResponse returns the key of a created or cloned plan.
type BuildPlanResponse struct {
	PlanKey string `json:"plan_key"`
}

// BuildStatusResponse reports the CI activity of a plan.
type BuildStatusResponse struct {
	PlanKey string `json:"plan_key"`
	Status  string `json:"status"`
}

// BuildLogEntryResponse is one filtered line of a build log.
type BuildLogEntryResponse struct {
	Time time.Time `json:"time"`
	Log  string    `json:"log"`
}

// BuildArtifactMirrorResponse reports where a mirrored artifact can be downloaded.
type BuildArtifactMirrorResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TestCaseChangeResponse summarises the rebuilds triggered by changed test cases.
type TestCaseChangeResponse struct {
	ExerciseID uint `json:"exercise_id"`
	Queued     int  `json:"queued"`
	Skipped    int  `json:"skipped"`
	Failed     int  `json:"failed"`
}

// RegisterLtiOutcomeRequest records the outcome service a student launched an exercise from.
type RegisterLtiOutcomeRequest struct {
	StudentID  uint   `json:"student_id" validate:"required,gt=0"`
	ExerciseID uint   `json:"exercise_id" validate:"required,gt=0"`
	URL        string `json:"outcome_url" validate:"required,url,max=512"`
	SourcedID  string `json:"sourced_id" validate:"required,max=255"`
}
