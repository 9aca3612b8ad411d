package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/depowered/culvertvision/internal/core/ports"
	"github.com/depowered/culvertvision/internal/core/usecases"
)

// Pinger is a backing service with a readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunStarter starts a durable rasterize run for a GeoJSON AOI.
type RunStarter interface {
	StartRun(ctx context.Context, aoi []byte, force bool) (workflowID, runID string, err error)
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Index   ports.TileIndexRepository
	EPT     ports.EPTResolver
	Runs    *usecases.RunService
	Starter RunStarter // nil when Temporal is not configured
	NATS    *nats.Conn
	DB      Pinger
	Cache   Pinger
}
