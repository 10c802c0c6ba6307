package models

import "time"

// Submission types.
const (
	SubmissionTypeManual = "MANUAL"
	SubmissionTypeOther  = "OTHER"
	SubmissionTypeTest   = "TEST"
)

// ProgrammingSubmission represents a single push to a participation repository.
type ProgrammingSubmission struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ParticipationID uint      `gorm:"not null;uniqueIndex:idx_submission_participation_commit" json:"participation_id"`
	CommitHash      string    `gorm:"type:text;not null;uniqueIndex:idx_submission_participation_commit" json:"commit_hash"`
	SubmissionDate  time.Time `json:"submission_date"`
	Submitted       bool      `gorm:"default:false" json:"submitted"`
	Type            string    `gorm:"size:16;not null" json:"type"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Results         []Result  `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}
