package service

import (
	"strings"

	"github.com/noah-isme/artemis-ci-api/internal/models"
)

// ExtractFeedback converts test outcomes into fresh feedback records. Failing tests keep only
// the first line of their joined error messages.
func ExtractFeedback(testCases []TestCaseOutcome) []models.Feedback {
	feedbacks := make([]models.Feedback, 0, len(testCases))
	for _, test := range testCases {
		feedback := models.Feedback{
			Text:     test.Name,
			Type:     models.AssessmentTypeAutomatic,
			Positive: test.Passed,
		}
		if !test.Passed {
			detail := firstLine(strings.Join(test.Errors, "\n"))
			feedback.DetailText = &detail
		}
		feedbacks = append(feedbacks, feedback)
	}
	return feedbacks
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return line
}
