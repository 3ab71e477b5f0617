package fetcher

import (
	"context"
	"time"

	"power-observer/src/interfaces"
	"power-observer/src/logger"
	"power-observer/src/utils"
)

// -----------------------------------------------------------------------------
// RecentDaysStrategy
// -----------------------------------------------------------------------------

// RecentDaysStrategy probes today and the previous LookbackDays days, then the
// configured anchor dates. It is a degraded-mode heuristic for stores without
// a date index and makes no completeness guarantee.
type RecentDaysStrategy struct {
	LookbackDays int
	Anchors      []time.Time
	WeekdaysOnly bool
	Calendar     *utils.DayCalendar
	Location     *time.Location
}

func (s *RecentDaysStrategy) Name() string { return "recent_days" }

// -----------------------------------------------------------------------------

func (s *RecentDaysStrategy) Candidates(_ context.Context, _ string, now time.Time) ([]time.Time, error) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	today := utils.TruncateDay(now.In(loc))

	seen := make(map[string]bool)
	var out []time.Time
	add := func(d time.Time) {
		key := utils.DayKey(d)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, d)
	}

	for i := 0; i <= s.LookbackDays; i++ {
		d := today.AddDate(0, 0, -i)
		if s.WeekdaysOnly && !s.Calendar.IsBusinessDay(d) {
			continue
		}
		add(d)
	}
	for _, a := range s.Anchors {
		add(time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, loc))
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// IndexedDateStrategy
// -----------------------------------------------------------------------------

// IndexedDateStrategy asks the store which days hold data, most recent first.
// When the index lookup fails the Fallback strategy is used.
type IndexedDateStrategy struct {
	Index    interfaces.IDateIndex
	Fallback interfaces.IDateCandidateStrategy
	MaxDays  int
	Logger   *logger.Logger
}

func (s *IndexedDateStrategy) Name() string { return "date_index" }

// -----------------------------------------------------------------------------

func (s *IndexedDateStrategy) Candidates(ctx context.Context, node string, now time.Time) ([]time.Time, error) {
	days, err := s.Index.ListDays(ctx, node)
	if err != nil {
		if s.Fallback == nil {
			return nil, err
		}
		if s.Logger != nil {
			s.Logger.Warning("Date index unavailable for %s, falling back to %s: %v", node, s.Fallback.Name(), err)
		}
		return s.Fallback.Candidates(ctx, node, now)
	}

	out := make([]time.Time, 0, len(days))
	for i := len(days) - 1; i >= 0; i-- {
		if days[i].After(now) {
			continue
		}
		out = append(out, days[i])
		if s.MaxDays > 0 && len(out) == s.MaxDays {
			break
		}
	}
	return out, nil
}
