package utils

import "math"

// -----------------------------------------------------------------------------

// Defaults shared by the fetch and aggregation layers.
const (
	DefaultCacheTTLSeconds       = 3600
	DefaultSampleIntervalSeconds = 30
	DefaultPointBudget           = 1000
	DefaultFetchLimit            = 50
	SecondsPerDay                = 86400
)

// -----------------------------------------------------------------------------

// EstimateSamples estimates how many readings a node reports over n days,
// assuming one sample per interval of uptime.
func EstimateSamples(days int, intervalSeconds int) int {
	if days < 1 {
		days = 1
	}
	if intervalSeconds <= 0 {
		intervalSeconds = DefaultSampleIntervalSeconds
	}
	return int(math.Ceil(float64(days*SecondsPerDay) / float64(intervalSeconds)))
}
