package membership

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on input and in exports.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a calendar date, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ServiceDateFor returns January 1 of the due date's year.
func ServiceDateFor(dueDate time.Time) time.Time {
	return time.Date(dueDate.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}
