package service

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/artemis-ci-api/pkg/bamboo"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBaseURL = "https://schemas.artemis.local/ci/"

// ErrMalformedPayload indicates a build result body matches neither notification format.
var ErrMalformedPayload = errors.New("malformed build result payload")

// firstBuildReason marks the build the CI server fires by itself right after plan creation.
const firstBuildReason = "First build for this plan"

// Payload formats understood by the parser.
const (
	FormatLegacy = "legacy"
	FormatNested = "nested"
)

var completionLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000Z07:00",
}

// TestCaseOutcome is one executed test of a build.
type TestCaseOutcome struct {
	Name      string
	ClassName string
	Passed    bool
	Errors    []string
}

// BuildResultNotification is the normalized form of both CI notification formats.
type BuildResultNotification struct {
	Format       string
	Ignored      bool
	Successful   bool
	ResultString string
	CompletedAt  time.Time
	CommitHash   string
	TestCases    []TestCaseOutcome
	HasArtifact  bool
	ArtifactURLs []string
	BuildNumber  int
	BuildReason  string
	PlanKey      string
}

// BuildResultParser turns CI payloads into BuildResultNotification values.
type BuildResultParser struct {
	assignmentRepo string
	legacy         *jsonschema.Schema
	nested         *jsonschema.Schema
}

// NewBuildResultParser compiles the embedded payload schemas. assignmentRepo names the VCS
// repository holding student code, used to pick the commit from multi-repository builds.
func NewBuildResultParser(assignmentRepo string) (*BuildResultParser, error) {
	legacy, err := compileSchema("schemas/legacy_build_result.json")
	if err != nil {
		return nil, err
	}
	nested, err := compileSchema("schemas/build_notification.json")
	if err != nil {
		return nil, err
	}

	return &BuildResultParser{
		assignmentRepo: strings.TrimSpace(assignmentRepo),
		legacy:         legacy,
		nested:         nested,
	}, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}

	url := schemaBaseURL + path.Base(name)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// Parse detects the payload format by the presence of a top-level "build" key and normalizes it.
func (p *BuildResultParser) Parse(body []byte) (BuildResultNotification, error) {
	var document interface{}
	if err := json.Unmarshal(body, &document); err != nil {
		return BuildResultNotification{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	root, ok := document.(map[string]interface{})
	if !ok {
		return BuildResultNotification{}, fmt.Errorf("%w: body is not a json object", ErrMalformedPayload)
	}

	if _, nested := root["build"]; nested {
		if err := p.nested.Validate(document); err != nil {
			return BuildResultNotification{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		var notification bamboo.Notification
		if err := json.Unmarshal(body, &notification); err != nil {
			return BuildResultNotification{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return p.FromNotification(notification)
	}

	if err := p.legacy.Validate(document); err != nil {
		return BuildResultNotification{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	var legacy bamboo.LegacyResult
	if err := json.Unmarshal(body, &legacy); err != nil {
		return BuildResultNotification{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p.FromLegacy(legacy)
}

// FromLegacy normalizes a flat build result, as posted by old plugins or fetched by polling.
func (p *BuildResultParser) FromLegacy(result bamboo.LegacyResult) (BuildResultNotification, error) {
	notification := BuildResultNotification{
		Format:       FormatLegacy,
		Successful:   result.Successful != nil && *result.Successful,
		ResultString: result.BuildTestSummary,
		BuildNumber:  result.BuildNumber,
		BuildReason:  result.BuildReason,
		HasArtifact:  len(result.Artifacts) > 0,
	}
	if isFirstBuild(result.BuildReason) {
		notification.Ignored = true
		return notification, nil
	}

	completedAt, err := parseCompletionDate(result.BuildCompletedDate)
	if err != nil {
		return BuildResultNotification{}, err
	}
	notification.CompletedAt = completedAt

	// changesetId stays correct when only the test repository changed.
	notification.CommitHash = strings.TrimSpace(result.ChangesetID)
	if notification.CommitHash == "" {
		notification.CommitHash = strings.TrimSpace(result.VCSRevisionKey)
	}

	for _, detail := range result.Details {
		messages := make([]string, 0, len(detail.Errors.Error))
		for _, e := range detail.Errors.Error {
			messages = append(messages, e.Message)
		}
		notification.TestCases = append(notification.TestCases, TestCaseOutcome{
			Name:      detail.MethodName,
			ClassName: detail.ClassName,
			Errors:    messages,
		})
	}
	for _, artifact := range result.Artifacts {
		notification.ArtifactURLs = append(notification.ArtifactURLs, artifact.Href)
	}

	return notification, nil
}

// FromNotification normalizes the nested build-completed notification.
func (p *BuildResultParser) FromNotification(payload bamboo.Notification) (BuildResultNotification, error) {
	build := payload.Build
	notification := BuildResultNotification{
		Format:       FormatNested,
		Successful:   build.Successful,
		ResultString: build.TestSummary.Description,
		BuildNumber:  build.Number,
		BuildReason:  build.Reason,
		HasArtifact:  build.Artifact,
		PlanKey:      payload.Plan.Key,
	}
	if isFirstBuild(build.Reason) {
		notification.Ignored = true
		return notification, nil
	}

	completedAt, err := parseCompletionDate(build.BuildCompletedDate)
	if err != nil {
		return BuildResultNotification{}, err
	}
	notification.CompletedAt = completedAt
	notification.CommitHash = p.assignmentCommit(build.VCS)

	for _, job := range build.Jobs {
		for _, test := range job.FailedTests {
			notification.TestCases = append(notification.TestCases, TestCaseOutcome{
				Name:      testName(test),
				ClassName: test.ClassName,
				Errors:    test.Errors,
			})
		}
		for _, test := range job.SuccessfulTests {
			notification.TestCases = append(notification.TestCases, TestCaseOutcome{
				Name:      testName(test),
				ClassName: test.ClassName,
				Passed:    true,
			})
		}
	}

	return notification, nil
}

func (p *BuildResultParser) assignmentCommit(revisions []bamboo.VCSRevision) string {
	for _, revision := range revisions {
		if p.assignmentRepo != "" && strings.EqualFold(revision.RepositoryName, p.assignmentRepo) {
			return strings.TrimSpace(revision.ID)
		}
	}
	if len(revisions) == 1 {
		return strings.TrimSpace(revisions[0].ID)
	}
	return ""
}

func testName(test bamboo.TestCase) string {
	if test.MethodName != "" {
		return test.MethodName
	}
	return test.Name
}

func isFirstBuild(reason string) bool {
	return strings.Contains(strings.ToLower(reason), strings.ToLower(firstBuildReason))
}

func parseCompletionDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: missing build completion date", ErrMalformedPayload)
	}
	for _, layout := range completionLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparsable build completion date %q", ErrMalformedPayload, raw)
}
