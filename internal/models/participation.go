package models

import "time"

// Participation types.
const (
	ParticipationTypeStudent  = "student"
	ParticipationTypeTemplate = "template"
	ParticipationTypeSolution = "solution"
)

// Participation initialization states.
const (
	InitializationStateUninitialized = "uninitialized"
	InitializationStateInitialized   = "initialized"
	InitializationStateInactive      = "inactive"
)

// Participation links a repository and its build plan to a programming exercise.
type Participation struct {
	ID                  uint                `gorm:"primaryKey" json:"id"`
	ExerciseID          uint                `gorm:"not null;index" json:"exercise_id"`
	StudentID           *uint               `gorm:"index" json:"student_id,omitempty"`
	Type                string              `gorm:"size:16;not null" json:"type"`
	BuildPlanID         string              `gorm:"size:255;index" json:"build_plan_id"`
	RepositoryURL       string              `gorm:"size:512" json:"repository_url"`
	InitializationState string              `gorm:"size:32;not null;default:'initialized'" json:"initialization_state"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	Exercise            ProgrammingExercise `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// HasBuildPlan reports whether a CI build plan is attached to the participation.
func (p Participation) HasBuildPlan() bool {
	return p.BuildPlanID != ""
}
