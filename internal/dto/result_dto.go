package dto

import (
	"time"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

// FeedbackResponse describes a single test case outcome of a result.
type FeedbackResponse struct {
	ID         uint     `json:"id"`
	Text       string   `json:"text"`
	DetailText *string  `json:"detail_text"`
	Type       string   `json:"type"`
	Positive   bool     `json:"positive"`
	Credits    *float64 `json:"credits,omitempty"`
}

// ResultResponse represents a result to API and realtime consumers.
type ResultResponse struct {
	ID              uint               `json:"id"`
	ParticipationID uint               `json:"participation_id"`
	SubmissionID    *uint              `json:"submission_id,omitempty"`
	Successful      bool               `json:"successful"`
	ResultString    string             `json:"result_string"`
	Score           int                `json:"score"`
	CompletionDate  time.Time          `json:"completion_date"`
	AssessmentType  string             `json:"assessment_type"`
	HasFeedback     bool               `json:"has_feedback"`
	BuildArtifact   bool               `json:"build_artifact"`
	Feedbacks       []FeedbackResponse `json:"feedbacks"`
}

// SubmissionResponse represents a programming submission without its back-references.
type SubmissionResponse struct {
	ID              uint      `json:"id"`
	ParticipationID uint      `json:"participation_id"`
	CommitHash      string    `json:"commit_hash"`
	SubmissionDate  time.Time `json:"submission_date"`
	Submitted       bool      `json:"submitted"`
	Type            string    `json:"type"`
}

// NewSubmissionMessage is published on the participation topic whenever a result arrives.
type NewSubmissionMessage struct {
	ParticipationID uint                `json:"participation_id"`
	Submission      *SubmissionResponse `json:"submission,omitempty"`
	Result          ResultResponse      `json:"result"`
}

// BuildResultResponse is returned to the CI server after a notification was handled.
type BuildResultResponse struct {
	Ignored    bool                `json:"ignored"`
	Result     *ResultResponse     `json:"result,omitempty"`
	Submission *SubmissionResponse `json:"submission,omitempty"`
}

// NewFeedbackResponse converts a Feedback model into a DTO.
func NewFeedbackResponse(feedback models.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:         feedback.ID,
		Text:       feedback.Text,
		DetailText: feedback.DetailText,
		Type:       feedback.Type,
		Positive:   feedback.Positive,
		Credits:    feedback.Credits,
	}
}

// NewResultResponse converts a Result model into a DTO.
func NewResultResponse(result models.Result) ResultResponse {
	feedbacks := make([]FeedbackResponse, 0, len(result.Feedbacks))
	for _, feedback := range result.Feedbacks {
		feedbacks = append(feedbacks, NewFeedbackResponse(feedback))
	}

	return ResultResponse{
		ID:              result.ID,
		ParticipationID: result.ParticipationID,
		SubmissionID:    result.SubmissionID,
		Successful:      result.Successful,
		ResultString:    result.ResultString,
		Score:           result.Score,
		CompletionDate:  result.CompletionDate,
		AssessmentType:  result.AssessmentType,
		HasFeedback:     result.HasFeedback,
		BuildArtifact:   result.BuildArtifact,
		Feedbacks:       feedbacks,
	}
}

// NewSubmissionResponse converts a ProgrammingSubmission model into a DTO.
func NewSubmissionResponse(submission models.ProgrammingSubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:              submission.ID,
		ParticipationID: submission.ParticipationID,
		CommitHash:      submission.CommitHash,
		SubmissionDate:  submission.SubmissionDate,
		Submitted:       submission.Submitted,
		Type:            submission.Type,
	}
}

// NewSubmissionMessageFor pairs a result with its submission, if any, for realtime delivery.
func NewSubmissionMessageFor(result models.Result, submission *models.ProgrammingSubmission) NewSubmissionMessage {
	message := NewSubmissionMessage{
		ParticipationID: result.ParticipationID,
		Result:          NewResultResponse(result),
	}
	if submission != nil {
		response := NewSubmissionResponse(*submission)
		message.Submission = &response
	}
	return message
}
