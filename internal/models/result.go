package models

import (
	"time"

	"gorm.io/datatypes"
)

// Assessment types shared by results and feedback.
const (
	AssessmentTypeAutomatic = "AUTOMATIC"
	AssessmentTypeManual    = "MANUAL"
)

// Result is one evaluation outcome for a programming submission.
type Result struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	ParticipationID uint              `gorm:"not null;index" json:"participation_id"`
	SubmissionID    *uint             `gorm:"index" json:"submission_id,omitempty"`
	Successful      bool              `gorm:"default:false" json:"successful"`
	ResultString    string            `gorm:"size:255" json:"result_string"`
	Score           int               `gorm:"not null;default:0" json:"score"`
	CompletionDate  time.Time         `json:"completion_date"`
	AssessmentType  string            `gorm:"size:16;not null" json:"assessment_type"`
	HasFeedback     bool              `gorm:"default:false" json:"has_feedback"`
	BuildArtifact   bool              `gorm:"default:false" json:"build_artifact"`
	BuildInfo       datatypes.JSONMap `json:"build_info,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Feedbacks       []Feedback        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"feedbacks,omitempty"`
}

// IsAutomatic reports whether the result was produced by the CI system.
func (r Result) IsAutomatic() bool {
	return r.AssessmentType == AssessmentTypeAutomatic
}
