package models

import "time"

// LtiOutcomeURL is the LTI outcome service registered for a student and exercise during launch.
type LtiOutcomeURL struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_lti_student_exercise" json:"student_id"`
	ExerciseID uint      `gorm:"not null;uniqueIndex:idx_lti_student_exercise" json:"exercise_id"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	SourcedID  string    `gorm:"size:255;not null" json:"sourced_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
