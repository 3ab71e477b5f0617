package utils

import (
	"fmt"
	"strings"
	"time"

	"power-observer/src/helpers"
)

// DateLayout is the wire format of dates in queries and day keys.
const DateLayout = "2006-01-02"

// TimestampLayout is the human-readable timestamp used in series and CSV.
const TimestampLayout = "2006-01-02 15:04:05"

// -----------------------------------------------------------------------------

// ParseDate parses YYYY-MM-DD in loc. Failures are client input errors.
func ParseDate(field, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, helpers.NewClientInputError("%s is required (YYYY-MM-DD)", field)
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, helpers.NewClientInputError("invalid %s %q: expected YYYY-MM-DD", field, value)
	}
	return t, nil
}

// -----------------------------------------------------------------------------

// TruncateDay returns midnight of t's calendar day in t's location.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// -----------------------------------------------------------------------------

// EnumerateDays returns every calendar day in [start, end], inclusive.
// The result is empty when end precedes start.
func EnumerateDays(start, end time.Time) []time.Time {
	start = TruncateDay(start)
	end = TruncateDay(end)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// -----------------------------------------------------------------------------

// DaySpan returns the number of whole days between two dates (0 for the same day).
func DaySpan(start, end time.Time) int {
	s := TruncateDay(start)
	e := TruncateDay(end)
	if e.Before(s) {
		return 0
	}
	// calendar arithmetic, robust to DST shifts
	n := 0
	for d := s; d.Before(e); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// -----------------------------------------------------------------------------

// DayKey formats the date part of t.
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}

// -----------------------------------------------------------------------------

// ParseTimeOfDay parses "HH:MM:SS" (or "HH:MM") on the given day.
func ParseTimeOfDay(day time.Time, value string) (time.Time, error) {
	var h, m, s int
	value = strings.TrimSpace(value)
	n, err := fmt.Sscanf(value, "%d:%d:%d", &h, &m, &s)
	if err != nil && n < 2 {
		return time.Time{}, fmt.Errorf("invalid time of day %q", value)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return time.Time{}, fmt.Errorf("time of day out of range %q", value)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, day.Location()), nil
}
