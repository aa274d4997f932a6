package visionlink

import "strings"

const (
	LineFrame   = "frame"
	LineStatus  = "status"
	LineLog     = "log"
	LineUnknown = "unknown"
)

// ClassifyLine inspects a line from the unit and returns a simple type
// token. Units interleave frame lines with status heartbeats and free-form
// boot/log text; the classification is intentionally conservative.
func ClassifyLine(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return LineUnknown
	}
	if strings.HasPrefix(trimmed, "{") {
		if strings.Contains(trimmed, `"pieces"`) {
			return LineFrame
		}
		if strings.Contains(trimmed, `"status"`) {
			return LineStatus
		}
	}
	return LineLog
}
