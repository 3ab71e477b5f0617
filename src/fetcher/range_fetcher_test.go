package fetcher

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"power-observer/src/cache"
	"power-observer/src/helpers"
	"power-observer/src/interfaces"
	"power-observer/src/logger"
	"power-observer/src/models"
	"power-observer/src/utils"
)

type stubStore struct {
	mu    sync.Mutex
	days  map[string]models.MRawDay
	fail  map[string]error
	calls map[string]int
}

func newStubStore() *stubStore {
	return &stubStore{
		days:  make(map[string]models.MRawDay),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (s *stubStore) Name() string { return "stub" }
func (s *stubStore) Close() error { return nil }

func (s *stubStore) FetchDay(_ context.Context, node string, day time.Time) (models.MRawDay, error) {
	key := node + "|" + utils.DayKey(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	if err := s.fail[key]; err != nil {
		return nil, err
	}
	return s.days[key], nil
}

func (s *stubStore) put(node, day string, records map[string]float64) {
	raw := make(models.MRawDay)
	for timeKey, v := range records {
		raw[timeKey] = map[string]interface{}{"voltage": v, "is_anomaly": v < 180}
	}
	s.days[node+"|"+day] = raw
}

func (s *stubStore) callCount(node, day string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[node+"|"+day]
}

var quiet = logger.NewLoggerWithWriter("ERROR", "fetcher", io.Discard)

func newFetcher(store *stubStore, strategy interfaces.IDateCandidateStrategy) (*RangeFetcher, *cache.TimeWindowCache) {
	c := cache.NewTimeWindowCache(time.Hour, 0, quiet)
	cfg := models.MFetchConfig{DayTimeoutSeconds: 5, MaxParallelDays: 3}
	return NewRangeFetcher(store, c, strategy, cfg, time.Hour, time.UTC, quiet), c
}

func day(s string) *time.Time {
	t, _ := time.ParseInLocation(utils.DateLayout, s, time.UTC)
	return &t
}

func TestFetchRangeInDayOrderAndCaches(t *testing.T) {
	store := newStubStore()
	store.put("C-1", "2025-03-10", map[string]float64{"12:00:00": 230, "12:00:30": 231})
	store.put("C-1", "2025-03-12", map[string]float64{"08:00:00": 229})
	f, c := newFetcher(store, nil)
	ctx := context.Background()

	res, err := f.Fetch(ctx, FetchRequest{Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-12"), UseCache: true})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Readings) != 3 || res.DaysRequested != 3 || res.DaysWithData != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	for i := 1; i < len(res.Readings); i++ {
		if res.Readings[i].Timestamp.Before(res.Readings[i-1].Timestamp) {
			t.Fatalf("readings out of order at %d", i)
		}
	}
	if res.CacheMisses != 3 || res.CacheHits != 0 {
		t.Fatalf("expected 3 misses, got hits=%d misses=%d", res.CacheHits, res.CacheMisses)
	}

	res, err = f.Fetch(ctx, FetchRequest{Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-12"), UseCache: true})
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if res.CacheHits != 3 || store.callCount("C-1", "2025-03-10") != 1 {
		t.Fatalf("expected cache hits on second fetch, hits=%d calls=%d", res.CacheHits, store.callCount("C-1", "2025-03-10"))
	}
	if c.Stats().TotalItems != 3 {
		t.Fatalf("expected 3 cached days, got %d", c.Stats().TotalItems)
	}
}

func TestFetchWithoutCacheAlwaysHitsStore(t *testing.T) {
	store := newStubStore()
	store.put("C-1", "2025-03-10", map[string]float64{"12:00:00": 230})
	f, c := newFetcher(store, nil)

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), FetchRequest{Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-10")}); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if store.callCount("C-1", "2025-03-10") != 2 {
		t.Fatalf("expected 2 store calls, got %d", store.callCount("C-1", "2025-03-10"))
	}
	if c.Stats().TotalItems != 0 {
		t.Fatalf("cache must stay untouched when use_cache is false")
	}
}

func TestFetchLimitCapsAcrossDaysButCachesWholeDay(t *testing.T) {
	store := newStubStore()
	store.put("C-1", "2025-03-10", map[string]float64{"00:00:00": 230, "00:00:30": 231, "00:01:00": 232})
	store.put("C-1", "2025-03-11", map[string]float64{"00:00:00": 233})
	f, c := newFetcher(store, nil)
	f.MaxParallel = 1

	res, err := f.Fetch(context.Background(), FetchRequest{Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-11"), Limit: 2, UseCache: true})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Readings) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(res.Readings))
	}
	cached, ok := c.Get("C-1", 2025, 3, 10)
	if !ok || len(cached) != 3 {
		t.Fatalf("expected the whole first day cached, got %d", len(cached))
	}
	if store.callCount("C-1", "2025-03-11") != 0 {
		t.Fatalf("second day must not be loaded once the limit is reached")
	}
}

func TestFetchFiltersAfterCaching(t *testing.T) {
	store := newStubStore()
	store.put("C-1", "2025-03-10", map[string]float64{"00:00:00": 230, "00:00:30": 140})
	f, c := newFetcher(store, nil)
	floor := 200.0

	res, err := f.Fetch(context.Background(), FetchRequest{
		Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-10"), UseCache: true,
		Filter: models.MReadingFilter{Ranges: map[models.Parameter]models.MRange{models.ParamVoltage: {Min: &floor}}},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Readings) != 1 || res.Readings[0].Voltage != 230 {
		t.Fatalf("unexpected filtered readings %+v", res.Readings)
	}
	if cached, _ := c.Get("C-1", 2025, 3, 10); len(cached) != 2 {
		t.Fatalf("cache must hold the unfiltered day, got %d", len(cached))
	}

	res, _ = f.Fetch(context.Background(), FetchRequest{
		Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-10"), UseCache: true,
		Filter: models.MReadingFilter{AnomalyOnly: true},
	})
	if len(res.Readings) != 1 || !res.Readings[0].IsAnomaly {
		t.Fatalf("anomaly_only filter failed: %+v", res.Readings)
	}
}

func TestFetchIsolatesDayFailures(t *testing.T) {
	store := newStubStore()
	store.put("C-1", "2025-03-11", map[string]float64{"00:00:00": 230})
	store.fail["C-1|2025-03-10"] = errors.New("timeout")
	f, _ := newFetcher(store, nil)

	res, err := f.Fetch(context.Background(), FetchRequest{Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-11")})
	if err != nil {
		t.Fatalf("expected degraded result, got %v", err)
	}
	if len(res.Readings) != 1 || len(res.DegradedDays) != 1 || res.DegradedDays[0] != "2025-03-10" {
		t.Fatalf("unexpected result %+v", res)
	}
}

// stallingStore blocks on selected days without watching ctx.
type stallingStore struct {
	*stubStore
	stall map[string]time.Duration
}

func (s *stallingStore) FetchDay(ctx context.Context, node string, day time.Time) (models.MRawDay, error) {
	if d, ok := s.stall[node+"|"+utils.DayKey(day)]; ok {
		time.Sleep(d)
	}
	return s.stubStore.FetchDay(ctx, node, day)
}

func TestFetchDayTimeoutDegradesStalledDay(t *testing.T) {
	inner := newStubStore()
	inner.put("C-1", "2025-03-10", map[string]float64{"00:00:00": 230})
	inner.put("C-1", "2025-03-11", map[string]float64{"00:00:00": 231})
	store := &stallingStore{stubStore: inner, stall: map[string]time.Duration{"C-1|2025-03-11": 2 * time.Second}}

	cfg := models.MFetchConfig{DayTimeoutSeconds: 1, MaxParallelDays: 2}
	f := NewRangeFetcher(store, nil, nil, cfg, time.Hour, time.UTC, quiet)
	f.DayTimeout = 50 * time.Millisecond

	started := time.Now()
	res, err := f.Fetch(context.Background(), FetchRequest{Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-11")})
	elapsed := time.Since(started)
	if err != nil {
		t.Fatalf("expected degraded result, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("stalled day blocked the range for %s", elapsed)
	}
	if len(res.Readings) != 1 || len(res.DegradedDays) != 1 || res.DegradedDays[0] != "2025-03-11" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFetchDayTimeoutSurfacesForSingleDay(t *testing.T) {
	inner := newStubStore()
	store := &stallingStore{stubStore: inner, stall: map[string]time.Duration{"C-1|2025-03-10": 2 * time.Second}}
	f := NewRangeFetcher(store, nil, nil, models.MFetchConfig{DayTimeoutSeconds: 1, MaxParallelDays: 1}, time.Hour, time.UTC, quiet)
	f.DayTimeout = 50 * time.Millisecond

	_, err := f.Fetch(context.Background(), FetchRequest{Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-10")})
	if !helpers.IsUpstreamUnavailable(err) {
		t.Fatalf("expected upstream error for a stalled single day, got %v", err)
	}
}

func TestFetchSurfacesUnreachableStore(t *testing.T) {
	store := newStubStore()
	down := helpers.NewUpstreamUnavailableError("store unreachable", errors.New("dial tcp"))
	store.fail["C-1|2025-03-10"] = down
	store.fail["C-1|2025-03-11"] = down
	f, _ := newFetcher(store, nil)

	_, err := f.Fetch(context.Background(), FetchRequest{Node: "C-1", Start: day("2025-03-10"), End: day("2025-03-11")})
	if !helpers.IsUpstreamUnavailable(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestFetchRejectsInvalidRequests(t *testing.T) {
	f, _ := newFetcher(newStubStore(), nil)
	ctx := context.Background()

	if _, err := f.Fetch(ctx, FetchRequest{}); !helpers.IsClientInput(err) {
		t.Fatalf("expected client input error for missing node, got %v", err)
	}
	if _, err := f.Fetch(ctx, FetchRequest{Node: "C-1", Start: day("2025-03-11"), End: day("2025-03-10")}); !helpers.IsClientInput(err) {
		t.Fatalf("expected client input error for inverted range, got %v", err)
	}
	if _, err := f.Fetch(ctx, FetchRequest{Node: "C-1", Start: day("2025-03-11")}); !helpers.IsClientInput(err) {
		t.Fatalf("expected client input error for half range, got %v", err)
	}
}

func TestFetchWithoutRangeUsesStrategy(t *testing.T) {
	store := newStubStore()
	store.put("C-1", "2025-03-14", map[string]float64{"09:00:00": 230, "09:00:30": 231})
	store.put("C-1", "2025-01-15", map[string]float64{"09:00:00": 228})

	strategy := &RecentDaysStrategy{LookbackDays: 2, Anchors: []time.Time{*day("2025-01-15")}}
	f, _ := newFetcher(store, strategy)
	f.Now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	res, err := f.Fetch(context.Background(), FetchRequest{Node: "C-1", Limit: 2})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Readings) != 2 || res.DaysRequested != 2 {
		t.Fatalf("expected probing to stop at the limit, got %d readings over %d days", len(res.Readings), res.DaysRequested)
	}
	if store.callCount("C-1", "2025-01-15") != 0 {
		t.Fatalf("anchor must not be probed once the limit is met")
	}

	res, _ = f.Fetch(context.Background(), FetchRequest{Node: "C-1", Limit: 10})
	if len(res.Readings) != 3 || res.DaysRequested != 4 {
		t.Fatalf("expected all candidates probed, got %d readings over %d days", len(res.Readings), res.DaysRequested)
	}
}

func TestFetchLatestReturnsMostRecent(t *testing.T) {
	store := newStubStore()
	store.put("C-1", "2025-03-15", map[string]float64{"09:00:00": 230, "09:00:30": 231, "09:01:00": 232})
	store.put("C-1", "2025-03-14", map[string]float64{"23:59:30": 229})

	f, _ := newFetcher(store, &RecentDaysStrategy{LookbackDays: 3})
	f.Now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	latest, err := f.FetchLatest(context.Background(), "C-1", 2)
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if len(latest) != 2 || latest[0].Voltage != 231 || latest[1].Voltage != 232 {
		t.Fatalf("unexpected latest readings %+v", latest)
	}

	latest, _ = f.FetchLatest(context.Background(), "C-1", 4)
	if len(latest) != 4 || latest[0].Voltage != 229 {
		t.Fatalf("expected readings to span days, got %+v", latest)
	}
}

func filterVoltage(lo, hi *float64) models.MReadingFilter {
	return models.MReadingFilter{Ranges: map[models.Parameter]models.MRange{
		models.ParamVoltage: {Min: lo, Max: hi},
	}}
}
