package bamboo

import (
	"context"
	"html"
	"net/http"
	"strings"
	"time"
)

const buildDirPrefix = "/opt/bamboo-agent-home/xml-data/build-dir/"

var noisePrefixes = []string{
	"[WARNING]",
	"[ERROR] [Help 1]",
	"[ERROR] For more information about the errors and possible solutions",
	"[ERROR] Re-run Maven using",
	"[ERROR] To see the full stack trace of the errors",
	"[ERROR] -> [Help 1]",
}

// BuildLogs returns the filtered log of the plan's latest build, oldest line first.
func (c *Client) BuildLogs(ctx context.Context, planKey string) ([]LogEntry, error) {
	var resp restLogs
	path := "/rest/api/latest/result/" + jobKey(planKey) + "/latest.json?expand=logEntries&max-results=250"
	if err := c.do(ctx, "build_logs", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(resp.LogEntries.LogEntry))
	for _, raw := range resp.LogEntries.LogEntry {
		line := raw.UnstyledLog
		if line == "" && raw.Log != "" {
			line = html.UnescapeString(c.sanitizer.Sanitize(raw.Log))
		}
		entries = append(entries, LogEntry{
			Time: time.UnixMilli(raw.Date).UTC(),
			Log:  line,
		})
	}

	return FilterLogEntries(entries), nil
}

// FilterLogEntries drops Maven noise and stops at the BUILD FAILURE section that repeats
// an earlier COMPILATION ERROR block.
func FilterLogEntries(entries []LogEntry) []LogEntry {
	filtered := make([]LogEntry, 0, len(entries))
	compilationErrorSeen := false

	for _, entry := range entries {
		line := entry.Log
		if strings.Contains(line, "COMPILATION ERROR") {
			compilationErrorSeen = true
		} else if compilationErrorSeen && strings.Contains(line, "BUILD FAILURE") {
			break
		}

		if isNoise(line) {
			continue
		}

		filtered = append(filtered, LogEntry{
			Time: entry.Time,
			Log:  strings.ReplaceAll(line, buildDirPrefix, ""),
		})
	}

	return filtered
}

func isNoise(line string) bool {
	if strings.HasPrefix(line, "[INFO]") && !strings.Contains(line, "error") {
		return true
	}
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
