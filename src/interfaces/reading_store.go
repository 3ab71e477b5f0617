package interfaces

import (
	"context"
	"time"

	"power-observer/src/models"
)

// -----------------------------------------------------------------------------
// IReadingStore is the boundary to the hierarchical store of raw readings
// keyed node/year/month/day/time.
// -----------------------------------------------------------------------------

type IReadingStore interface {

	// Name identifies the backend in logs
	Name() string

	// -----------------------------------------------------------------------------

	// FetchDay returns the raw readings of one day keyed by time-of-day.
	// An empty map (not an error) means the day holds no data.
	FetchDay(ctx context.Context, node string, day time.Time) (models.MRawDay, error)

	// -----------------------------------------------------------------------------

	// Close releases the underlying connection
	Close() error
}

// -----------------------------------------------------------------------------
// Optional store capabilities
// -----------------------------------------------------------------------------

// IDateIndex lists the days that hold data for a node, ascending.
type IDateIndex interface {
	ListDays(ctx context.Context, node string) ([]time.Time, error)
}

// INodeLister lists the nodes known to the store.
type INodeLister interface {
	ListNodes(ctx context.Context) ([]string, error)
}

// IReadingWriter persists a whole day of raw readings (seeding, imports).
type IReadingWriter interface {
	SaveDay(ctx context.Context, node string, day time.Time, raw models.MRawDay) error
}
