package fetcher

import "power-observer/src/models"

// -----------------------------------------------------------------------------

// Matches reports whether r passes every configured bound and the anomaly flag.
// Bounds are inclusive; a parameter missing on the wire compares as 0.0.
func Matches(r models.MReading, filter models.MReadingFilter) bool {
	if filter.AnomalyOnly && !r.IsAnomaly {
		return false
	}
	for p, rng := range filter.Ranges {
		v, _ := r.Value(p)
		if rng.Min != nil && v < *rng.Min {
			return false
		}
		if rng.Max != nil && v > *rng.Max {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// ApplyFilter returns the readings matching filter, preserving order.
func ApplyFilter(readings []models.MReading, filter models.MReadingFilter) []models.MReading {
	if !filter.AnomalyOnly && len(filter.Ranges) == 0 {
		return readings
	}
	out := make([]models.MReading, 0, len(readings))
	for _, r := range readings {
		if Matches(r, filter) {
			out = append(out, r)
		}
	}
	return out
}
