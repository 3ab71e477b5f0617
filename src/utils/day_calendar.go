package utils

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// DayCalendar classifies days as business days or not. Load on non-business
// days differs enough that day windows and date probing annotate it.
type DayCalendar struct {
	Calendar *calendar.Calendar
	MIC      string
	Fallback bool
}

// -----------------------------------------------------------------------------

// NewDayCalendar loads the holiday calendar of a market identifier code
// (ISO 10383, e.g. "xnys", "xlon"). Unknown or empty codes use a Mon-Fri rule.
func NewDayCalendar(mic string) *DayCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		return &DayCalendar{Fallback: true}
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return &DayCalendar{MIC: mic, Fallback: true}
	}
	return &DayCalendar{Calendar: cal, MIC: mic}
}

// -----------------------------------------------------------------------------

// IsBusinessDay reports whether the calendar date of t is a working day.
// Only the date matters: the wall-clock date of t is re-anchored to noon in
// the calendar's location so a UTC midnight does not slip to the previous day.
func (dc *DayCalendar) IsBusinessDay(t time.Time) bool {
	if dc == nil || dc.Fallback || dc.Calendar == nil {
		weekday := t.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}

	loc := dc.Calendar.Loc
	if loc == nil {
		loc = time.UTC
	}
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
	return dc.Calendar.IsBusinessDay(noon)
}
