package analysis

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"power-observer/src/cache"
	"power-observer/src/fetcher"
	"power-observer/src/helpers"
	"power-observer/src/logger"
	"power-observer/src/models"
	"power-observer/src/storage"
	"power-observer/src/utils"
)

var quiet = logger.NewLoggerWithWriter("ERROR", "analysis", io.Discard)

func testAnalysisConfig() models.MAnalysisConfig {
	return models.MAnalysisConfig{
		PointBudget:           1000,
		SampleIntervalSeconds: 30,
		Interruption:          models.MInterruptionConfig{VoltageThreshold: 180, MinDurationSeconds: 30},
	}
}

// newPipeline wires an in-memory sqlite store, the cache and the fetcher.
func newPipeline(t *testing.T) (*DashboardAssembler, *storage.SQLiteReadingStore) {
	t.Helper()
	store := storage.NewSQLiteReadingStore(":memory:", time.UTC, quiet)
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c := cache.NewTimeWindowCache(time.Hour, 0, quiet)
	f := fetcher.NewRangeFetcher(store, c, &fetcher.RecentDaysStrategy{LookbackDays: 1}, models.MFetchConfig{DayTimeoutSeconds: 5, MaxParallelDays: 2}, time.Hour, time.UTC, quiet)
	a := NewDashboardAssembler(f, testAnalysisConfig(), utils.NewDayCalendar(""), time.UTC, quiet)
	return a, store
}

func record(v float64) map[string]interface{} {
	return map[string]interface{}{
		"voltage": v, "current": 2.5, "power": 575.0, "frequency": 60.0, "powerFactor": 0.95,
	}
}

func TestBuildEndToEndDip(t *testing.T) {
	a, store := newPipeline(t)
	ctx := context.Background()

	raw := models.MRawDay{
		"00:00:00": record(230),
		"00:00:05": record(140),
		"00:00:50": record(230),
	}
	if err := store.SaveDay(ctx, "C-1", base, raw); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	p, err := a.Build(ctx, DashboardRequest{Node: "C-1", StartDate: "2025-03-10", EndDate: "2025-03-10"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if p.Preset != PresetDashboard || p.Mode != models.ModeUniform || p.Stride != 2 {
		t.Fatalf("unexpected plan: preset=%s mode=%s stride=%d", p.Preset, p.Mode, p.Stride)
	}
	if p.AnomalySummary.Count != 1 || p.AnomalySummary.Parameters[models.ParamVoltage] != 1 {
		t.Fatalf("unexpected anomaly summary %+v", p.AnomalySummary)
	}
	if p.Interruptions.Count != 1 {
		t.Fatalf("expected one interruption, got %+v", p.Interruptions)
	}
	it := p.Interruptions.Details[0]
	if it.Severity != models.SeverityMajor || it.DurationSeconds != 45 {
		t.Fatalf("unexpected interruption %+v", it)
	}
	// stride 2 keeps the first of the two normal readings plus the anomaly
	if p.TotalReadings != 3 || p.SampleCount != 2 {
		t.Fatalf("unexpected counts total=%d sample=%d", p.TotalReadings, p.SampleCount)
	}
	if p.LatestReading == nil || !p.LatestReading.Timestamp.Equal(base.Add(50*time.Second)) {
		t.Fatalf("unexpected latest reading %+v", p.LatestReading)
	}
	if p.PowerQuality.Level != QualityExcellent {
		t.Fatalf("unexpected power quality %+v", p.PowerQuality)
	}
	if len(p.Series[models.ParamVoltage]) != p.SampleCount {
		t.Fatalf("series length %d does not match sample count %d", len(p.Series[models.ParamVoltage]), p.SampleCount)
	}
}

func TestBuildWindowedForLongSpans(t *testing.T) {
	a, store := newPipeline(t)
	ctx := context.Background()

	store.SaveDay(ctx, "C-1", base, models.MRawDay{"10:00:00": record(230), "11:00:00": record(232)})
	store.SaveDay(ctx, "C-1", base.AddDate(0, 0, 40), models.MRawDay{"10:00:00": record(140)})

	p, err := a.Build(ctx, DashboardRequest{Node: "C-1", StartDate: "2025-03-10", EndDate: "2025-04-19"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Mode != models.ModeWindowed || p.Resolution != models.ResolutionDay {
		t.Fatalf("expected day windows, got %s/%s", p.Mode, p.Resolution)
	}
	if len(p.Windows) != 2 || p.SampleCount != 2 || p.TotalReadings != 3 {
		t.Fatalf("unexpected windows=%d sample=%d total=%d", len(p.Windows), p.SampleCount, p.TotalReadings)
	}
	v := p.Statistics[models.ParamVoltage]
	if v.Min != 140 || v.Max != 232 || v.Avg != 200.67 || v.Count != 3 {
		t.Fatalf("unexpected window-derived stats %+v", v)
	}
	if p.DaysRequested != 41 || p.DaysWithData != 2 {
		t.Fatalf("unexpected day bookkeeping %d/%d", p.DaysRequested, p.DaysWithData)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	a, _ := newPipeline(t)
	ctx := context.Background()

	bad := []DashboardRequest{
		{StartDate: "2025-03-10", EndDate: "2025-03-10"},
		{Node: "C-1", StartDate: "2025-13-10", EndDate: "2025-03-10"},
		{Node: "C-1", StartDate: "2025-03-10"},
		{Node: "C-1", StartDate: "2025-03-11", EndDate: "2025-03-10"},
		{Node: "C-1", StartDate: "2025-03-10", EndDate: "2025-03-10", Preset: "nope"},
	}
	for _, req := range bad {
		if _, err := a.Build(ctx, req); !helpers.IsClientInput(err) {
			t.Fatalf("%+v: expected client input error, got %v", req, err)
		}
	}
}

func TestTimeSeriesRawForSingleDay(t *testing.T) {
	a, store := newPipeline(t)
	ctx := context.Background()
	store.SaveDay(ctx, "C-1", base, models.MRawDay{"00:00:00": record(230), "00:00:30": record(231), "00:01:00": record(140)})

	ts, err := a.TimeSeries(ctx, TimeSeriesRequest{Node: "C-1", StartDate: "2025-03-10", EndDate: "2025-03-10"})
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if ts.Mode != models.ModeRaw || ts.SampleCount != 3 {
		t.Fatalf("expected raw output, got %s with %d", ts.Mode, ts.SampleCount)
	}
	if !ts.Readings[2].IsAnomaly {
		t.Fatalf("expected the dip to be flagged")
	}

	ts, err = a.TimeSeries(ctx, TimeSeriesRequest{Node: "C-1", StartDate: "2025-03-10", EndDate: "2025-03-10", MaxPoints: 1000})
	if err != nil || ts.Mode != models.ModeUniform || ts.Stride != 2 {
		t.Fatalf("expected uniform sampling with an explicit budget, got %+v (%v)", ts, err)
	}
}

func TestTimeSeriesAnomalyOnlyUsesPresetFlags(t *testing.T) {
	a, store := newPipeline(t)
	ctx := context.Background()
	stale := record(230)
	stale["is_anomaly"] = true
	store.SaveDay(ctx, "C-1", base, models.MRawDay{"00:00:00": record(230), "00:00:05": record(140), "00:00:10": stale})

	ts, err := a.TimeSeries(ctx, TimeSeriesRequest{
		Node: "C-1", StartDate: "2025-03-10", EndDate: "2025-03-10",
		Filter: models.MReadingFilter{AnomalyOnly: true},
	})
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if len(ts.Readings) != 1 || ts.TotalReadings != 1 {
		t.Fatalf("expected only the dip, got %+v", ts.Readings)
	}
	got := ts.Readings[0]
	if got.Voltage != 140 || !got.IsAnomaly || len(got.AnomalyParameters) == 0 {
		t.Fatalf("expected the flagged 140V reading, got %+v", got)
	}
}

type failingSource struct {
	latest map[string][]models.MReading
}

func (f failingSource) Fetch(context.Context, fetcher.FetchRequest) (*fetcher.FetchResult, error) {
	return nil, helpers.NewUpstreamUnavailableError("store down", errors.New("dial tcp"))
}

func (f failingSource) FetchLatest(_ context.Context, node string, _ int) ([]models.MReading, error) {
	if r, ok := f.latest[node]; ok {
		return r, nil
	}
	return nil, errors.New("no data")
}

func TestBuildSurfacesUpstreamFailure(t *testing.T) {
	a := NewDashboardAssembler(failingSource{}, testAnalysisConfig(), nil, time.UTC, quiet)
	_, err := a.Build(context.Background(), DashboardRequest{Node: "C-1", StartDate: "2025-03-10", EndDate: "2025-03-10"})
	if !helpers.IsUpstreamUnavailable(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	src := failingSource{latest: map[string][]models.MReading{
		"C-1": {reading(0, 230), reading(time.Minute, 140)},
	}}
	a := NewDashboardAssembler(src, testAnalysisConfig(), nil, time.UTC, quiet)

	out, err := a.Compare(context.Background(), []string{"C-1", "C-2"}, 20)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(out) != 2 || out[0].Node != "C-1" || out[1].Node != "C-2" {
		t.Fatalf("unexpected comparison order %+v", out)
	}
	if out[0].LatestReading == nil || out[0].LatestReading.Voltage != 140 || !out[0].LatestReading.IsAnomaly {
		t.Fatalf("unexpected latest for C-1 %+v", out[0].LatestReading)
	}
	if len(out[1].Readings) != 0 || out[1].LatestReading != nil {
		t.Fatalf("failed node must be reported empty")
	}

	if _, err := a.Compare(context.Background(), nil, 20); !helpers.IsClientInput(err) {
		t.Fatalf("expected client input error for no nodes")
	}
}
