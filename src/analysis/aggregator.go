package analysis

import (
	"fmt"
	"sort"
	"time"

	"power-observer/src/analysis/core"
	"power-observer/src/models"
	"power-observer/src/utils"
)

// AggregationResult holds either reduced readings or windows, depending on Mode.
type AggregationResult struct {
	Mode       string
	Resolution string
	Stride     int
	Readings   []models.MReading
	Windows    []models.MAggregationWindow
}

// Aggregator reduces reading sequences to a display budget.
type Aggregator struct {
	Calendar *utils.DayCalendar
}

// -----------------------------------------------------------------------------

func NewAggregator(cal *utils.DayCalendar) *Aggregator {
	return &Aggregator{Calendar: cal}
}

// -----------------------------------------------------------------------------

// Reduce applies plan to readings. The input is not modified.
func (a *Aggregator) Reduce(readings []models.MReading, plan AggregationPlan) AggregationResult {
	res := AggregationResult{Mode: plan.Mode, Resolution: plan.Resolution, Stride: plan.Stride}

	switch plan.Mode {
	case models.ModeUniform:
		res.Readings = Uniform(readings, plan.Stride)
	case models.ModeWindowed:
		res.Windows = a.Windowed(readings, plan.Resolution)
		res.Stride = 1
	default:
		res.Mode, res.Resolution, res.Stride = models.ModeRaw, models.ResolutionRaw, 1
		res.Readings = sortedCopy(readings)
	}
	return res
}

// -----------------------------------------------------------------------------

// Uniform keeps every anomalous reading and the 0th, Nth, 2Nth... normal
// reading (in timestamp order), merged back in ascending order.
func Uniform(readings []models.MReading, stride int) []models.MReading {
	if stride < 1 {
		stride = 1
	}
	sorted := sortedCopy(readings)

	out := make([]models.MReading, 0, len(sorted)/stride+1)
	normal := 0
	for _, r := range sorted {
		if r.IsAnomaly {
			out = append(out, r)
			continue
		}
		if normal%stride == 0 {
			out = append(out, r)
		}
		normal++
	}
	return out
}

// -----------------------------------------------------------------------------

// windowBucket is the time bucket of one reading at a resolution.
type windowBucket struct {
	key   string
	start time.Time
	end   time.Time
}

// bucketFor places t in its window. hourOfDay selects "HH:00" keys for
// single-day hour windows.
func bucketFor(t time.Time, resolution string, hourOfDay bool) windowBucket {
	switch resolution {
	case models.ResolutionDay:
		start := utils.TruncateDay(t)
		return windowBucket{key: utils.DayKey(start), start: start, end: start.AddDate(0, 0, 1)}
	case models.ResolutionMinute:
		start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
		return windowBucket{key: start.Format("2006-01-02 15:04"), start: start, end: start.Add(time.Minute)}
	default:
		start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
		key := start.Format("2006-01-02 15:00")
		if hourOfDay {
			key = fmt.Sprintf("%02d:00", t.Hour())
		}
		return windowBucket{key: key, start: start, end: start.Add(time.Hour)}
	}
}

// -----------------------------------------------------------------------------

// Windowed buckets readings (PAA) and summarizes each parameter per window.
// Hour windows are keyed by hour of day when all readings share one date and
// by calendar hour otherwise. Windows without samples are never emitted.
func (a *Aggregator) Windowed(readings []models.MReading, resolution string) []models.MAggregationWindow {
	sorted := sortedCopy(readings)
	if len(sorted) == 0 {
		return []models.MAggregationWindow{}
	}

	hourOfDay := resolution == models.ResolutionHour &&
		utils.DayKey(sorted[0].Timestamp) == utils.DayKey(sorted[len(sorted)-1].Timestamp)

	var windows []models.MAggregationWindow
	var members [][]models.MReading
	index := make(map[string]int)

	for _, r := range sorted {
		b := bucketFor(r.Timestamp, resolution, hourOfDay)
		i, ok := index[b.key]
		if !ok {
			i = len(windows)
			index[b.key] = i
			windows = append(windows, models.MAggregationWindow{
				WindowKey:  b.key,
				Resolution: resolution,
				Start:      b.start,
				End:        b.end,
			})
			members = append(members, nil)
		}
		members[i] = append(members[i], r)
	}

	for i := range windows {
		a.summarize(&windows[i], members[i])
	}
	return windows
}

// -----------------------------------------------------------------------------

func (a *Aggregator) summarize(w *models.MAggregationWindow, subset []models.MReading) {
	w.SampleCount = len(subset)
	w.Parameters = make(map[models.Parameter]models.MWindowStats, len(models.MonitoredParameters))

	for _, r := range subset {
		if r.IsAnomaly {
			w.AnomalyCount++
		}
	}

	for _, p := range models.MonitoredParameters {
		values := make([]float64, 0, len(subset))
		for _, r := range subset {
			if v, ok := r.Value(p); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		lo, hi := core.MinMax(values)
		mean, std := core.CalculateMeanStd(values)
		w.Parameters[p] = models.MWindowStats{Min: lo, Max: hi, Avg: mean, Std: std}
	}

	if w.Resolution == models.ResolutionDay {
		business := a.Calendar.IsBusinessDay(w.Start)
		w.BusinessDay = &business
	}
}

// -----------------------------------------------------------------------------

func sortedCopy(readings []models.MReading) []models.MReading {
	out := make([]models.MReading, len(readings))
	copy(out, readings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
