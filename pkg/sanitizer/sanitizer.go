// Package sanitizer normalizes client-supplied strings before validation and
// storage. All functions are idempotent and never return errors; invalid
// input degrades to an empty string.
package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims the string and collapses internal whitespace runs
// to a single space.
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

// NormalizeName cleans a person or provider display name.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeNote cleans free-text notes, dropping control characters.
func NormalizeNote(note string) string {
	var b strings.Builder
	for _, r := range note {
		if unicode.IsControl(r) && r != '\n' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// NormalizeReason cleans a cancellation reason into a single line.
func NormalizeReason(reason string) string {
	return TrimAndNormalize(strings.ReplaceAll(reason, "\n", " "))
}
