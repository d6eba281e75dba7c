package validators

import (
	"strings"
	"unicode"
)

// CleanText trims s, drops control characters other than newline and tab, and
// truncates to maxRunes runes. maxRunes <= 0 disables truncation.
func CleanText(s string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, strings.TrimSpace(s))
	if maxRunes <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxRunes {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxRunes]))
}
