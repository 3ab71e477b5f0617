package analysis

import (
	"time"

	"power-observer/src/models"
	"power-observer/src/utils"
)

// AggregationPlan is the reduction chosen for a request.
type AggregationPlan struct {
	Mode             string `json:"mode"`
	Resolution       string `json:"resolution"`
	Stride           int    `json:"stride"`
	SpanDays         int    `json:"span_days"`
	EstimatedSamples int    `json:"estimated_samples"`
}

// -----------------------------------------------------------------------------

// SelectAggregationPlan picks the reduction for the inclusive day range
// [start, end]. The span is end - start in whole days:
//
//	span > 30  -> windowed statistics per day
//	span > 7   -> windowed statistics per hour
//	otherwise  -> uniform sampling with stride max(1, estimated / budget)
//
// estimated assumes one sample per sampleInterval seconds over every day fetched.
func SelectAggregationPlan(start, end time.Time, budget, sampleInterval int) AggregationPlan {
	span := utils.DaySpan(start, end)
	est := utils.EstimateSamples(span+1, sampleInterval)

	plan := AggregationPlan{SpanDays: span, EstimatedSamples: est, Stride: 1}
	switch {
	case span > 30:
		plan.Mode, plan.Resolution = models.ModeWindowed, models.ResolutionDay
	case span > 7:
		plan.Mode, plan.Resolution = models.ModeWindowed, models.ResolutionHour
	default:
		plan.Mode, plan.Resolution = models.ModeUniform, models.ResolutionMinute
		if budget <= 0 {
			budget = utils.DefaultPointBudget
		}
		if stride := est / budget; stride > 1 {
			plan.Stride = stride
		}
	}
	return plan
}

// -----------------------------------------------------------------------------

// RawPlan keeps every reading.
func RawPlan(start, end time.Time) AggregationPlan {
	return AggregationPlan{
		Mode:       models.ModeRaw,
		Resolution: models.ResolutionRaw,
		Stride:     1,
		SpanDays:   utils.DaySpan(start, end),
	}
}
