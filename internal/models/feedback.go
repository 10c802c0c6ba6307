package models

// Feedback is a single test case or static analysis finding attached to a result.
type Feedback struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	ResultID   uint     `gorm:"not null;index" json:"result_id"`
	Text       string   `gorm:"type:text" json:"text"`
	DetailText *string  `gorm:"type:text" json:"detail_text"`
	Type       string   `gorm:"size:16;not null" json:"type"`
	Positive   bool     `json:"positive"`
	Credits    *float64 `json:"credits,omitempty"`
}
