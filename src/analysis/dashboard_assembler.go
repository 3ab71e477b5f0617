package analysis

import (
	"context"
	"strings"
	"sync"
	"time"

	"power-observer/src/fetcher"
	"power-observer/src/helpers"
	"power-observer/src/logger"
	"power-observer/src/models"
	"power-observer/src/utils"
)

// ReadingSource is what the assembler needs from the fetch layer.
type ReadingSource interface {
	Fetch(ctx context.Context, req fetcher.FetchRequest) (*fetcher.FetchResult, error)
	FetchLatest(ctx context.Context, node string, n int) ([]models.MReading, error)
}

// DashboardRequest selects a node and an inclusive date range.
type DashboardRequest struct {
	Node        string
	StartDate   string
	EndDate     string
	Preset      string
	PointBudget int
}

// TimeSeriesRequest is a DashboardRequest with filters and an explicit point cap.
type TimeSeriesRequest struct {
	Node      string
	StartDate string
	EndDate   string
	Filter    models.MReadingFilter
	MaxPoints int
	Preset    string
}

// -----------------------------------------------------------------------------

// DashboardAssembler runs fetch, detection, reduction and summaries for one node.
type DashboardAssembler struct {
	Source        ReadingSource
	Detector      *ThresholdAnomalyDetector
	Aggregator    *Aggregator
	Interruptions *InterruptionDetector
	Config        models.MAnalysisConfig
	Location      *time.Location
	Logger        *logger.Logger
	Now           func() time.Time
}

// -----------------------------------------------------------------------------

func NewDashboardAssembler(src ReadingSource, cfg models.MAnalysisConfig, cal *utils.DayCalendar, loc *time.Location, log *logger.Logger) *DashboardAssembler {
	if loc == nil {
		loc = time.UTC
	}
	if cfg.PointBudget <= 0 {
		cfg.PointBudget = utils.DefaultPointBudget
	}
	if cfg.SampleIntervalSeconds <= 0 {
		cfg.SampleIntervalSeconds = utils.DefaultSampleIntervalSeconds
	}
	return &DashboardAssembler{
		Source:        src,
		Detector:      NewThresholdAnomalyDetector(cfg.Thresholds),
		Aggregator:    NewAggregator(cal),
		Interruptions: NewInterruptionDetector(cfg.Interruption),
		Config:        cfg,
		Location:      loc,
		Logger:        log,
		Now:           time.Now,
	}
}

// -----------------------------------------------------------------------------

// parseRange validates node and the YYYY-MM-DD bounds.
func (a *DashboardAssembler) parseRange(node, startDate, endDate string) (time.Time, time.Time, error) {
	if strings.TrimSpace(node) == "" {
		return time.Time{}, time.Time{}, helpers.NewClientInputError("node is required")
	}
	start, err := utils.ParseDate("start_date", startDate, a.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := utils.ParseDate("end_date", endDate, a.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, helpers.NewClientInputError("end_date %s precedes start_date %s", endDate, startDate)
	}
	return start, end, nil
}

// -----------------------------------------------------------------------------

// Build assembles the dashboard payload for req.
//
// Interruptions and the anomaly summary use every flagged reading; statistics
// and series use the reduced set (window statistics when windowed).
func (a *DashboardAssembler) Build(ctx context.Context, req DashboardRequest) (*models.MDashboardPayload, error) {
	// 1. Validate
	start, end, err := a.parseRange(req.Node, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	preset := req.Preset
	if preset == "" {
		preset = PresetDashboard
	}
	thresholds, err := a.Detector.Preset(preset)
	if err != nil {
		return nil, err
	}
	budget := req.PointBudget
	if budget <= 0 {
		budget = a.Config.PointBudget
	}

	// 2. Fetch every day of the range through the cache
	res, err := a.Source.Fetch(ctx, fetcher.FetchRequest{Node: req.Node, Start: &start, End: &end, UseCache: true})
	if err != nil {
		return nil, err
	}

	// 3. Flag
	flagged := sortedCopy(a.Detector.Evaluate(res.Readings, thresholds))

	// 4. Reduce
	plan := SelectAggregationPlan(start, end, budget, a.Config.SampleIntervalSeconds)
	reduced := a.Aggregator.Reduce(flagged, plan)

	// 5. Interruptions over the complete flagged sequence
	interruptions := a.Interruptions.Detect(flagged)

	payload := &models.MDashboardPayload{
		Node:           req.Node,
		StartDate:      utils.DayKey(start),
		EndDate:        utils.DayKey(end),
		Preset:         preset,
		Mode:           reduced.Mode,
		Resolution:     reduced.Resolution,
		Stride:         reduced.Stride,
		TotalReadings:  len(flagged),
		DaysRequested:  res.DaysRequested,
		DaysWithData:   res.DaysWithData,
		DegradedDays:   nonNil(res.DegradedDays),
		Readings:       reduced.Readings,
		Windows:        reduced.Windows,
		AnomalySummary: BuildAnomalySummary(flagged),
		Interruptions:  interruptions,
		LatestReading:  LatestReading(flagged),
		GeneratedAt:    a.now().UTC(),
	}

	// 6 & 8. Statistics and series over the reduced set
	if reduced.Mode == models.ModeWindowed {
		payload.SampleCount = len(reduced.Windows)
		payload.Statistics = StatsFromWindows(reduced.Windows)
		payload.Series = BuildWindowSeries(reduced.Windows, a.Location)
	} else {
		payload.SampleCount = len(reduced.Readings)
		payload.Statistics = ComputeParameterStats(reduced.Readings)
		payload.Series = BuildSeries(reduced.Readings, a.Location)
	}

	// 9. Current status
	payload.PowerQuality = EvaluatePowerQuality(payload.LatestReading)

	a.Logger.Debug("Dashboard %s %s..%s: %d readings, mode=%s, %d anomalies, %d interruptions",
		req.Node, payload.StartDate, payload.EndDate, payload.TotalReadings, payload.Mode,
		payload.AnomalySummary.Count, interruptions.Count)

	return payload, nil
}

// -----------------------------------------------------------------------------

// TimeSeries returns flagged, filtered readings reduced to MaxPoints (or the
// configured budget). With MaxPoints 0 a span of at most one day is returned raw.
func (a *DashboardAssembler) TimeSeries(ctx context.Context, req TimeSeriesRequest) (*models.MTimeSeriesResponse, error) {
	start, end, err := a.parseRange(req.Node, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	preset := req.Preset
	if preset == "" {
		preset = PresetDashboard
	}
	thresholds, err := a.Detector.Preset(preset)
	if err != nil {
		return nil, err
	}
	if req.MaxPoints < 0 {
		return nil, helpers.NewClientInputError("max_points cannot be negative")
	}

	// anomaly_only applies to the preset flags, not the stored ones
	ranges := models.MReadingFilter{Ranges: req.Filter.Ranges}
	res, err := a.Source.Fetch(ctx, fetcher.FetchRequest{Node: req.Node, Start: &start, End: &end, Filter: ranges, UseCache: true})
	if err != nil {
		return nil, err
	}
	flagged := a.Detector.Evaluate(res.Readings, thresholds)
	if req.Filter.AnomalyOnly {
		flagged = fetcher.ApplyFilter(flagged, models.MReadingFilter{AnomalyOnly: true})
	}

	var plan AggregationPlan
	if req.MaxPoints == 0 && utils.DaySpan(start, end) <= 1 {
		plan = RawPlan(start, end)
	} else {
		budget := req.MaxPoints
		if budget == 0 {
			budget = a.Config.PointBudget
		}
		plan = SelectAggregationPlan(start, end, budget, a.Config.SampleIntervalSeconds)
	}
	reduced := a.Aggregator.Reduce(flagged, plan)

	out := &models.MTimeSeriesResponse{
		Node:          req.Node,
		Mode:          reduced.Mode,
		Resolution:    reduced.Resolution,
		Stride:        reduced.Stride,
		TotalReadings: len(flagged),
		DegradedDays:  nonNil(res.DegradedDays),
		Readings:      reduced.Readings,
		Windows:       reduced.Windows,
	}
	if reduced.Mode == models.ModeWindowed {
		out.SampleCount = len(reduced.Windows)
	} else {
		out.SampleCount = len(reduced.Readings)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// Compare loads the latest readings of several nodes concurrently. A node that
// fails to load is reported with no readings.
func (a *DashboardAssembler) Compare(ctx context.Context, nodes []string, limit int) ([]models.MNodeComparison, error) {
	if len(nodes) == 0 {
		return nil, helpers.NewClientInputError("no nodes specified for comparison")
	}
	if limit <= 0 {
		return nil, helpers.NewClientInputError("limit must be positive")
	}
	thresholds, err := a.Detector.Preset(PresetDashboard)
	if err != nil {
		return nil, err
	}

	out := make([]models.MNodeComparison, len(nodes))
	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node string) {
			defer wg.Done()
			readings, err := a.Source.FetchLatest(ctx, node, limit)
			if err != nil {
				a.Logger.Warning("Compare: node=%s stage=fetch: %v", node, err)
				readings = nil
			}
			flagged := a.Detector.Evaluate(readings, thresholds)
			out[i] = models.MNodeComparison{
				Node:          node,
				Readings:      flagged,
				Statistics:    ComputeParameterStats(flagged),
				LatestReading: LatestReading(flagged),
			}
		}(i, strings.TrimSpace(node))
	}
	wg.Wait()
	return out, nil
}

// -----------------------------------------------------------------------------

func (a *DashboardAssembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
