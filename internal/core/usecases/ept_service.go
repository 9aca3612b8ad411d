package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/ports"
	"github.com/depowered/culvertvision/internal/pkg/metrics"
)

// EPTService resolves workunits to EPT sources, memoising per process and
// sharing results through the cache. Cache failures never fail a lookup.
type EPTService struct {
	resolver ports.EPTResolver
	cache    ports.CacheService
	ttl      time.Duration

	mu   sync.Mutex
	memo map[string]domain.EPTData
}

// NewEPTService creates a new EPTService. cache may be nil.
func NewEPTService(resolver ports.EPTResolver, cache ports.CacheService, ttl time.Duration) *EPTService {
	return &EPTService{
		resolver: resolver,
		cache:    cache,
		ttl:      ttl,
		memo:     make(map[string]domain.EPTData),
	}
}

var _ ports.EPTResolver = (*EPTService)(nil)

func eptCacheKey(workunit string) string { return "ept:" + workunit }

// Resolve implements ports.EPTResolver.
func (s *EPTService) Resolve(ctx context.Context, workunit string) (domain.EPTData, error) {
	if strings.TrimSpace(workunit) == "" {
		return domain.EPTData{}, &domain.ValidationError{Field: "workunit", Reason: "is required"}
	}

	s.mu.Lock()
	ept, ok := s.memo[workunit]
	s.mu.Unlock()
	if ok {
		return ept, nil
	}

	key := eptCacheKey(workunit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			if err := json.Unmarshal(data, &ept); err == nil && !ept.CRS.IsZero() {
				metrics.CacheHits.WithLabelValues("ept").Inc()
				s.remember(workunit, ept)
				return ept, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("ept").Inc()
	}

	start := time.Now()
	ept, err := s.resolver.Resolve(ctx, workunit)
	metrics.EPTResolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.EPTData{}, err
	}
	s.remember(workunit, ept)

	if s.cache != nil {
		if data, err := json.Marshal(ept); err == nil {
			if err := s.cache.Set(ctx, key, data, int(s.ttl.Seconds())); err != nil {
				slog.Warn("ept cache write failed", "workunit", workunit, "error", err)
			}
		}
	}
	return ept, nil
}

// Forget drops a workunit from the memo and the shared cache.
func (s *EPTService) Forget(ctx context.Context, workunit string) {
	s.mu.Lock()
	delete(s.memo, workunit)
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.Delete(ctx, eptCacheKey(workunit)); err != nil {
			slog.Warn("ept cache delete failed", "workunit", workunit, "error", err)
		}
	}
}

func (s *EPTService) remember(workunit string, ept domain.EPTData) {
	s.mu.Lock()
	s.memo[workunit] = ept
	s.mu.Unlock()
}
