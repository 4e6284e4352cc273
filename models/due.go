package models

import (
	"fmt"
	"strings"
	"time"
)

// DueLayout is the storage layout of Task.DueDate. It sorts lexicographically,
// which the due-soon query relies on.
const DueLayout = "2006-01-02 15:04:05"

// DueSoonWindow is how far ahead of now a pending task counts as due soon.
const DueSoonWindow = 2 * time.Hour

var dueInputLayouts = []string{
	DueLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// FormatDue renders t in DueLayout.
func FormatDue(t time.Time) string {
	return t.Format(DueLayout)
}

// ParseDue parses a client supplied due date. Zone-less inputs are read in loc,
// RFC 3339 inputs are converted into loc.
func ParseDue(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty due date")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dueInputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unsupported due date format: %q", s)
}

// NormalizeDue parses s and returns it in DueLayout.
func NormalizeDue(s string, loc *time.Location) (string, error) {
	t, err := ParseDue(s, loc)
	if err != nil {
		return "", err
	}
	return FormatDue(t), nil
}
