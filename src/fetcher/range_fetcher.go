package fetcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"power-observer/src/helpers"
	"power-observer/src/interfaces"
	"power-observer/src/logger"
	"power-observer/src/models"
	"power-observer/src/storage"
	"power-observer/src/utils"
)

// FetchRequest describes one retrieval. Start and End are both set or both nil.
type FetchRequest struct {
	Node     string
	Start    *time.Time
	End      *time.Time
	Filter   models.MReadingFilter
	Limit    int
	UseCache bool
}

// FetchResult carries the readings plus bookkeeping about how they were loaded.
type FetchResult struct {
	Readings      []models.MReading
	DaysRequested int
	DaysWithData  int
	DegradedDays  []string
	CacheHits     int
	CacheMisses   int
}

// dayLoad is the outcome of loading one day.
type dayLoad struct {
	day      time.Time
	readings []models.MReading
	cached   bool
	err      error
}

// -----------------------------------------------------------------------------

// RangeFetcher turns node + date range requests into decoded readings,
// consulting the cache before the store.
type RangeFetcher struct {
	Store       interfaces.IReadingStore
	Cache       interfaces.IReadingCache
	Strategy    interfaces.IDateCandidateStrategy
	Location    *time.Location
	CacheTTL    time.Duration
	DayTimeout  time.Duration
	MaxParallel int
	Logger      *logger.Logger
	Now         func() time.Time
}

// -----------------------------------------------------------------------------

func NewRangeFetcher(store interfaces.IReadingStore, cache interfaces.IReadingCache, strategy interfaces.IDateCandidateStrategy, cfg models.MFetchConfig, ttl time.Duration, loc *time.Location, log *logger.Logger) *RangeFetcher {
	if loc == nil {
		loc = time.UTC
	}
	parallel := cfg.MaxParallelDays
	if parallel <= 0 {
		parallel = 1
	}
	return &RangeFetcher{
		Store:       store,
		Cache:       cache,
		Strategy:    strategy,
		Location:    loc,
		CacheTTL:    ttl,
		DayTimeout:  time.Duration(cfg.DayTimeoutSeconds) * time.Second,
		MaxParallel: parallel,
		Logger:      log,
		Now:         time.Now,
	}
}

// -----------------------------------------------------------------------------

// Fetch loads readings for req. With an explicit range every day in
// [Start, End] is considered, loaded MaxParallel days at a time; without one
// the Strategy supplies candidate days which are probed one by one. Either
// way readings are accumulated in day order until Limit matches are found
// (Limit <= 0 means no limit).
func (f *RangeFetcher) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if req.Node == "" {
		return nil, helpers.NewClientInputError("node is required")
	}
	if (req.Start == nil) != (req.End == nil) {
		return nil, helpers.NewClientInputError("start_date and end_date must be given together")
	}

	if req.Start != nil {
		start, end := *req.Start, *req.End
		if end.Before(start) {
			return nil, helpers.NewClientInputError("end_date %s precedes start_date %s", utils.DayKey(end), utils.DayKey(start))
		}
		return f.fetchDays(ctx, req, utils.EnumerateDays(start, end), f.MaxParallel)
	}

	if f.Strategy == nil {
		return nil, helpers.NewConfigurationError("no date candidate strategy configured", nil)
	}
	days, err := f.Strategy.Candidates(ctx, req.Node, f.now())
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("date discovery failed for "+req.Node, err)
	}
	return f.fetchDays(ctx, req, days, 1)
}

// -----------------------------------------------------------------------------

// FetchLatest returns the n most recent readings of node, ascending. Candidate
// days are loaded whole, most recent first, until n readings are available.
func (f *RangeFetcher) FetchLatest(ctx context.Context, node string, n int) ([]models.MReading, error) {
	if node == "" {
		return nil, helpers.NewClientInputError("node is required")
	}
	if n <= 0 {
		return nil, helpers.NewClientInputError("limit must be positive")
	}
	if f.Strategy == nil {
		return nil, helpers.NewConfigurationError("no date candidate strategy configured", nil)
	}
	days, err := f.Strategy.Candidates(ctx, node, f.now())
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("date discovery failed for "+node, err)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	var readings []models.MReading
	var firstErr error
	for i, day := range days {
		load := f.loadDay(ctx, node, day, true)
		if load.err != nil {
			if i == 0 {
				firstErr = load.err
			}
			continue
		}
		readings = append(readings, load.readings...)
		if len(readings) >= n {
			break
		}
	}
	if len(readings) == 0 && helpers.IsUpstreamUnavailable(firstErr) {
		return nil, firstErr
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	if len(readings) > n {
		readings = readings[len(readings)-n:]
	}
	return readings, nil
}

// -----------------------------------------------------------------------------

func (f *RangeFetcher) fetchDays(ctx context.Context, req FetchRequest, days []time.Time, batch int) (*FetchResult, error) {
	res := &FetchResult{Readings: []models.MReading{}}
	var firstErr error

	for lo := 0; lo < len(days); lo += batch {
		hi := lo + batch
		if hi > len(days) {
			hi = len(days)
		}

		for i, load := range f.loadBatch(ctx, req, days[lo:hi]) {
			res.DaysRequested++
			if load.cached {
				res.CacheHits++
			} else if load.err == nil {
				res.CacheMisses++
			}

			if load.err != nil {
				if lo+i == 0 {
					firstErr = load.err
				}
				res.DegradedDays = append(res.DegradedDays, utils.DayKey(load.day))
				continue
			}
			if len(load.readings) > 0 {
				res.DaysWithData++
			}

			for _, r := range ApplyFilter(load.readings, req.Filter) {
				res.Readings = append(res.Readings, r)
				if req.Limit > 0 && len(res.Readings) >= req.Limit {
					return res, nil
				}
			}
		}

		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	if firstErr != nil && res.DaysWithData == 0 {
		if len(days) == 1 || helpers.IsUpstreamUnavailable(firstErr) {
			return nil, firstErr
		}
	}
	return res, nil
}

// -----------------------------------------------------------------------------

// loadBatch loads days concurrently and returns them in input order.
func (f *RangeFetcher) loadBatch(ctx context.Context, req FetchRequest, days []time.Time) []dayLoad {
	out := make([]dayLoad, len(days))
	if len(days) == 1 {
		out[0] = f.loadDay(ctx, req.Node, days[0], req.UseCache)
		return out
	}

	var wg sync.WaitGroup
	for i, day := range days {
		wg.Add(1)
		go func(i int, day time.Time) {
			defer wg.Done()
			out[i] = f.loadDay(ctx, req.Node, day, req.UseCache)
		}(i, day)
	}
	wg.Wait()
	return out
}

// -----------------------------------------------------------------------------

func (f *RangeFetcher) loadDay(ctx context.Context, node string, day time.Time, useCache bool) dayLoad {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, f.Location)
	y, m, d := day.Year(), int(day.Month()), day.Day()

	if useCache && f.Cache != nil {
		if readings, ok := f.Cache.Get(node, y, m, d); ok {
			return dayLoad{day: day, readings: readings, cached: true}
		}
	}

	raw, err := f.fetchWithin(ctx, node, day)
	if err != nil {
		f.Logger.Warning("Fetch failed node=%s day=%s stage=store: %v", node, utils.DayKey(day), err)
		return dayLoad{day: day, err: err}
	}

	readings, problems := storage.DecodeDay(node, day, f.Location, raw)
	if len(problems) > 0 {
		f.Logger.Warning("Skipped %d malformed records node=%s day=%s stage=decode (first: %v)", len(problems), node, utils.DayKey(day), problems[0])
	}

	if useCache && f.Cache != nil {
		if err := f.Cache.Set(node, y, m, d, readings, f.CacheTTL); err != nil {
			f.Logger.Warning("Cache bypassed node=%s day=%s stage=cache: %v", node, utils.DayKey(day), err)
		}
	}
	return dayLoad{day: day, readings: readings}
}

// -----------------------------------------------------------------------------

type rawDayResult struct {
	raw models.MRawDay
	err error
}

// fetchWithin bounds a store call by DayTimeout even when the store ignores ctx.
// A stalled call is abandoned and reported as upstream unavailable.
func (f *RangeFetcher) fetchWithin(ctx context.Context, node string, day time.Time) (models.MRawDay, error) {
	if f.DayTimeout <= 0 {
		return f.Store.FetchDay(ctx, node, day)
	}
	dayCtx, cancel := context.WithTimeout(ctx, f.DayTimeout)
	defer cancel()

	done := make(chan rawDayResult, 1)
	go func() {
		raw, err := f.Store.FetchDay(dayCtx, node, day)
		done <- rawDayResult{raw: raw, err: err}
	}()

	select {
	case res := <-done:
		return res.raw, res.err
	case <-dayCtx.Done():
		return nil, helpers.NewUpstreamUnavailableError("day fetch timed out", dayCtx.Err())
	}
}

// -----------------------------------------------------------------------------

func (f *RangeFetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// -----------------------------------------------------------------------------

// String describes the fetcher configuration for startup logs.
func (f *RangeFetcher) String() string {
	strategy := "none"
	if f.Strategy != nil {
		strategy = f.Strategy.Name()
	}
	return fmt.Sprintf("RangeFetcher(store=%s, strategy=%s, parallel=%d, day_timeout=%s)", f.Store.Name(), strategy, f.MaxParallel, f.DayTimeout)
}
