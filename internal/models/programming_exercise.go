package models

import "time"

// ProgrammingExercise is the exercise a set of participations and build plans belong to.
type ProgrammingExercise struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	ProjectKey       string    `gorm:"size:64;not null" json:"project_key"`
	TestCasesChanged bool      `gorm:"default:false" json:"test_cases_changed"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
