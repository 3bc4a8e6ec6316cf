// Package timeutil provides date helpers for project due dates.
// Due dates arrive from the document store as ISO strings in several shapes
// (plain date, date-time with or without zone); all of them are normalised to UTC.
package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Date formats.
const (
	FormatDate     = "2006-01-02"
	FormatDateTime = "2006-01-02 15:04:05"
)

// isoLayouts are tried in order by ParseISODate.
var isoLayouts = []string{
	FormatDate,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	FormatDateTime,
}

// ErrUnparseableDate is returned when no ISO layout matches.
var ErrUnparseableDate = errors.New("timeutil: unparseable ISO date")

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// ParseISODate parses an ISO-8601 date or date-time. Values without a zone are
// interpreted as UTC.
func ParseISODate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrUnparseableDate
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, value)
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of whole days from now until due.
// Negative values mean the date has passed.
func DaysUntil(now, due time.Time) int {
	d := StartOfDay(due).Sub(StartOfDay(now))
	return int(d.Hours() / 24)
}

// IsOverdue reports whether due lies before the day of now.
func IsOverdue(now, due time.Time) bool {
	return StartOfDay(due).Before(StartOfDay(now))
}

// FormatDateStr formats a time as YYYY-MM-DD.
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}
