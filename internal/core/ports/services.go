package ports

import (
	"context"
	"io"
	"time"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// EPTResolver finds the point-cloud source for a workunit.
type EPTResolver interface {
	Resolve(ctx context.Context, workunit string) (domain.EPTData, error)
}

// PipelineExecutor runs one stage graph to completion.
type PipelineExecutor interface {
	Execute(ctx context.Context, p domain.Pipeline) error
}

// EventPublisher publishes run progress to a message broker.
type EventPublisher interface {
	PublishTileEvent(ctx context.Context, ev domain.TileEvent) error
	PublishRunSummary(ctx context.Context, s domain.RunSummary) error
}

// EventSubscriber subscribes to run progress from a message broker.
type EventSubscriber interface {
	SubscribeTileEvents(ctx context.Context, handler func(ctx context.Context, ev domain.TileEvent) error) error
	SubscribeRunSummaries(ctx context.Context, handler func(ctx context.Context, s domain.RunSummary) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RemoteFile is a downloadable vector source.
type RemoteFile interface {
	// ModifiedSince reports whether the remote copy changed after t.
	ModifiedSince(ctx context.Context, url string, t time.Time) (bool, error)
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}
