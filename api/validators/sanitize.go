package validators

import "strings"

// SanitizeString trims surrounding whitespace and clamps the value to
// maxLen runes. Display names and generation goals pass through here
// before they reach the database, so truncation must not split a
// multi-byte character.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return trimmed
}
