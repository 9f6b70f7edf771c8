package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CharacterCount returns the number of characters (runes) in value.
// Every budget in the application is expressed in this unit.
func CharacterCount(value string) int {
	return utf8.RuneCountInString(value)
}

// TruncateCharacters returns the longest prefix of value holding at most limit characters
// and reports whether anything was removed.
func TruncateCharacters(value string, limit int) (string, bool) {
	if limit <= 0 {
		return "", value != ""
	}
	if len(value) <= limit {
		return value, false
	}
	seen := 0
	for byteIndex := range value {
		if seen == limit {
			return value[:byteIndex], true
		}
		seen++
	}
	return value, false
}

// FormatFileSize converts a byte length into a human-readable lower-case unit string.
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		return "0b"
	}
	units := []string{"b", "kb", "mb", "gb", "tb", "pb"}
	value := float64(bytes)
	unitIndex := 0
	for value >= 1024 && unitIndex < len(units)-1 {
		value /= 1024
		unitIndex++
	}
	if unitIndex == 0 {
		return fmt.Sprintf("%db", bytes)
	}
	if value < 10 {
		formatted := strings.TrimSuffix(fmt.Sprintf("%.1f", value), ".0")
		return formatted + units[unitIndex]
	}
	return fmt.Sprintf("%.0f%s", value, units[unitIndex])
}

// Pluralize returns singular when count is one and plural otherwise.
func Pluralize(count int, singular string, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
