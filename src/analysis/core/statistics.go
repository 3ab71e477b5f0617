package core

import "math"

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and population standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, 0
	}

	// N denominator (population std)
	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)))
	return mean, std
}

// -----------------------------------------------------------------------------

// MinMax returns the extremes of data, (0, 0) when empty.
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// -----------------------------------------------------------------------------

// WeightedMean averages values by weights. Zero total weight yields 0.
func WeightedMean(values []float64, weights []int) float64 {
	sum, total := 0.0, 0
	for i, v := range values {
		if i >= len(weights) {
			break
		}
		sum += v * float64(weights[i])
		total += weights[i]
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}

// -----------------------------------------------------------------------------

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// -----------------------------------------------------------------------------

// Percentage returns part as a percentage of total, 0 when total is 0.
func Percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
