package bamboo

import "time"

// LegacyResult is the flat build result format. It is posted by older notification plugins
// and is also what LatestBuildResult translates the REST result resource into.
type LegacyResult struct {
	Successful         *bool              `json:"successful"`
	BuildTestSummary   string             `json:"buildTestSummary"`
	BuildCompletedDate string             `json:"buildCompletedDate"`
	BuildReason        string             `json:"buildReason,omitempty"`
	BuildNumber        int                `json:"buildNumber,omitempty"`
	VCSRevisionKey     string             `json:"vcsRevisionKey,omitempty"`
	ChangesetID        string             `json:"changesetId,omitempty"`
	Details            []LegacyTestDetail `json:"details,omitempty"`
	Artifacts          []LegacyArtifact   `json:"artifacts,omitempty"`
}

// LegacyTestDetail describes one failed test in the legacy format.
type LegacyTestDetail struct {
	ClassName  string       `json:"className"`
	MethodName string       `json:"methodName"`
	Errors     LegacyErrors `json:"errors"`
}

// LegacyErrors wraps the error list of a failed legacy test.
type LegacyErrors struct {
	Error []LegacyError `json:"error"`
}

// LegacyError is a single assertion or exception message.
type LegacyError struct {
	Message string `json:"message"`
}

// LegacyArtifact references a downloadable artifact of the build.
type LegacyArtifact struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// Notification is the nested build-completed payload sent by the notification plugin.
type Notification struct {
	NotificationType string            `json:"notificationType,omitempty"`
	Plan             NotificationPlan  `json:"plan"`
	Build            NotificationBuild `json:"build"`
}

// NotificationPlan identifies the plan that ran.
type NotificationPlan struct {
	Key string `json:"key"`
}

// NotificationBuild carries the outcome of a finished build.
type NotificationBuild struct {
	Artifact           bool              `json:"artifact"`
	Number             int               `json:"number"`
	Reason             string            `json:"reason"`
	BuildCompletedDate string            `json:"buildCompletedDate"`
	Successful         bool              `json:"successful"`
	TestSummary        TestSummary       `json:"testSummary"`
	VCS                []VCSRevision     `json:"vcs"`
	Jobs               []NotificationJob `json:"jobs"`
}

// TestSummary aggregates test counts of a build.
type TestSummary struct {
	Description     string `json:"description"`
	TotalCount      int    `json:"totalCount"`
	FailedCount     int    `json:"failedCount"`
	SuccessfulCount int    `json:"successfulCount"`
	SkippedCount    int    `json:"skippedCount"`
}

// VCSRevision is the revision of one repository checked out by the build.
type VCSRevision struct {
	ID             string `json:"id"`
	RepositoryName string `json:"repositoryName"`
}

// NotificationJob lists the test cases of one job.
type NotificationJob struct {
	ID              int        `json:"id"`
	FailedTests     []TestCase `json:"failedTests"`
	SuccessfulTests []TestCase `json:"successfulTests"`
}

// TestCase is one executed test.
type TestCase struct {
	Name       string   `json:"name"`
	MethodName string   `json:"methodName"`
	ClassName  string   `json:"className"`
	Errors     []string `json:"errors"`
}

// PlanStatus is the activity state of a build plan.
type PlanStatus struct {
	IsActive   bool `json:"isActive"`
	IsBuilding bool `json:"isBuilding"`
}

// LogEntry is one line of a build log.
type LogEntry struct {
	Time time.Time `json:"time"`
	Log  string    `json:"log"`
}

// Artifact is the downloaded content of a build artifact.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// PlanSpec describes a build plan to create.
type PlanSpec struct {
	ProjectKey        string `json:"projectKey"`
	PlanKey           string `json:"planKey"`
	Name              string `json:"name"`
	RepositoryURL     string `json:"repositoryUrl"`
	TestRepositoryURL string `json:"testRepositoryUrl,omitempty"`
}

type restResult struct {
	Successful         bool   `json:"successful"`
	BuildState         string `json:"buildState"`
	BuildTestSummary   string `json:"buildTestSummary"`
	BuildCompletedDate string `json:"buildCompletedDate"`
	BuildReason        string `json:"buildReason"`
	BuildNumber        int    `json:"buildNumber"`
	VCSRevisionKey     string `json:"vcsRevisionKey"`
	Changes            struct {
		Change []struct {
			ChangesetID string `json:"changesetId"`
		} `json:"change"`
	} `json:"changes"`
	Artifacts struct {
		Artifact []struct {
			Name string `json:"name"`
			Link struct {
				Href string `json:"href"`
			} `json:"link"`
		} `json:"artifact"`
	} `json:"artifacts"`
	TestResults struct {
		FailedTests struct {
			TestResult []LegacyTestDetail `json:"testResult"`
		} `json:"failedTests"`
	} `json:"testResults"`
}

type restLogs struct {
	LogEntries struct {
		LogEntry []restLogEntry `json:"logEntry"`
	} `json:"logEntries"`
}

type restLogEntry struct {
	Log         string `json:"log"`
	UnstyledLog string `json:"unstyledLog"`
	Date        int64  `json:"date"`
}

type restError struct {
	Message string `json:"message"`
}
