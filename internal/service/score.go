package service

import (
	"math"
	"regexp"
	"strconv"
)

var failedSummaryPattern = regexp.MustCompile(`^(\d+) of (\d+) failed`)

// CalculateScore derives a 0-100 score from the build outcome. Unrecognized summaries score 0.
func CalculateScore(successful bool, resultString string) int {
	if successful {
		return 100
	}

	match := failedSummaryPattern.FindStringSubmatch(resultString)
	if match == nil {
		return 0
	}

	failed, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	total, err := strconv.ParseFloat(match[2], 64)
	if err != nil || total == 0 {
		return 0
	}

	score := int(math.Round(100 * (total - failed) / total))
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
