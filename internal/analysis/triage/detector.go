package triage

import "strings"

// emergencyKeywords is the fixed trigger list: fever thresholds,
// seizure, cyanosis, breathing distress, loss of consciousness,
// lethargy. Matching is deliberately a plain substring scan, not a
// medical classifier; a keyword inside a negated sentence still
// raises the flag.
var emergencyKeywords = []string{
	"38도", "38.0", "39도", "40도",
	"경련", "청색증", "숨을 안", "호흡곤란", "의식", "축 늘어",
	"seizure", "convulsion", "cyanosis", "blue lips",
	"not breathing", "unconscious", "unresponsive", "limp",
}

// Detect reports whether the input contains any emergency keyword.
// Case-insensitive for ASCII terms. The result is a UI signal only and
// never blocks the message from reaching the assistant.
func Detect(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}

	for _, keyword := range emergencyKeywords {
		if strings.Contains(normalized, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
