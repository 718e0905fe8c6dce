package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims surrounding whitespace and collapses inner runs
// of whitespace to a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeTitle(title string) string {
	return TrimAndNormalize(title)
}

func NormalizeDescription(description string) string {
	return TrimAndNormalize(description)
}
