package interfaces

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// IDataExchanger is the outward surface (HTTP + websocket) of the service.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// NotifyInvalidated tells live subscribers that a node's day changed upstream.
	NotifyInvalidated(node string, day time.Time)

	// -----------------------------------------------------------------------------
	// Start the server (blocks until the listener stops)
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop(ctx context.Context) error
}
