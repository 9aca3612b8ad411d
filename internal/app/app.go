// Package app wires adapters and use cases from configuration. Every
// command builds its services through here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	natsadapter "github.com/depowered/culvertvision/internal/adapters/nats"
	"github.com/depowered/culvertvision/internal/adapters/pdal"
	"github.com/depowered/culvertvision/internal/adapters/postgres"
	"github.com/depowered/culvertvision/internal/adapters/stac"
	"github.com/depowered/culvertvision/internal/adapters/valkey"
	"github.com/depowered/culvertvision/internal/adapters/vectorfile"
	"github.com/depowered/culvertvision/internal/core/ports"
	"github.com/depowered/culvertvision/internal/core/usecases"
	"github.com/depowered/culvertvision/internal/pkg/config"
	"github.com/depowered/culvertvision/internal/pkg/metrics"
)

// Options select the optional backing services.
type Options struct {
	Cache  bool // memoise EPT lookups in Valkey
	Events bool // publish tile events to NATS
}

// Services are the long-lived components shared by the commands.
type Services struct {
	Config *config.Config

	DB     *postgres.DB          // nil unless the tile index lives in Postgres
	Cache  *valkey.Cache         // nil when unavailable
	Events *natsadapter.Publisher // nil when unavailable

	Index ports.TileIndexRepository
	EPT   *usecases.EPTService
	Runs  *usecases.RunService

	closers []func()
}

// RunOptions derives the run options from the pipeline config.
func RunOptions(p config.PipelineConfig) usecases.RunOptions {
	return usecases.RunOptions{
		Resolution:     p.Resolution,
		OutputDir:      p.RasterDir(),
		BufferDistance: p.BufferDistance,
		Workers:        p.Workers,
		TileTimeout:    p.TileTimeout,
		Products:       p.Products,
	}
}

// New connects the configured adapters. Optional services that fail to
// connect are logged and left nil.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Services, error) {
	s := &Services{Config: cfg}

	switch cfg.Pipeline.TileIndexSource {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		s.DB = db
		s.closers = append(s.closers, db.Close)
		s.Index = postgres.NewTileRepo(db)
	default:
		s.Index = vectorfile.NewTileIndexFile(cfg.Pipeline.TileIndexFile())
	}

	var cache ports.CacheService
	if opts.Cache {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, ept lookups will not be cached", "error", err)
		} else {
			s.Cache = c
			s.closers = append(s.closers, c.Close)
			cache = c
		}
	}

	var events ports.EventPublisher
	if opts.Events {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, tile events will not be published", "error", err)
		} else {
			s.Events = pub
			s.closers = append(s.closers, pub.Close)
			events = pub
		}
	}

	p := cfg.Pipeline
	s.EPT = usecases.NewEPTService(stac.New(p.STACCatalogURL, p.HTTPTimeout), cache, p.EPTCacheTTL)
	s.Runs = usecases.NewRunService(s.Index, s.EPT, pdal.NewExecutor(p.PDALBinary), events, RunOptions(p))
	return s, nil
}

// WatchDBPool exports pool statistics until ctx is done.
func (s *Services) WatchDBPool(ctx context.Context, every time.Duration) {
	if s.DB == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			metrics.UpdateDBPoolMetrics(s.DB.Stat())
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
