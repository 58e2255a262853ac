package core

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the canonical rendering of timestamps in metadata
// columns. Values are always UTC; the fixed width keeps lexical order equal
// to chronological order, which the planners rely on for ORDER BY.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// FormatTimestampUTC renders t in the canonical layout.
func FormatTimestampUTC(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reads a canonical timestamp back into a UTC time.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// PlaceholderList renders count comma-separated parameter markers starting
// at the given 1-based ordinal.
func PlaceholderList(d Dialect, start, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = d.Placeholder(start + i)
	}
	return strings.Join(parts, ", ")
}

// ClampIndexValue truncates a leaf value to the dialect's indexable cap.
// Index writers and the search planner both clamp through here, so stored
// prefixes and predicate literals stay comparable. Dialects without a cap
// return the value unchanged.
func ClampIndexValue(d Dialect, s string) string {
	limit := d.MaxIndexableValueRunes()
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
