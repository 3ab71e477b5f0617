package interfaces

import (
	"context"
	"time"
)

// IDateCandidateStrategy yields the days to probe when a request has no date range.
// Order matters: the fetcher probes candidates in the returned order.
type IDateCandidateStrategy interface {
	Name() string
	Candidates(ctx context.Context, node string, now time.Time) ([]time.Time, error)
}
