package usecases_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// --- Mock TileIndexRepository ---

type mockIndexRepo struct {
	index *domain.TileIndex
	err   error
}

func (m *mockIndexRepo) CRS(ctx context.Context) (domain.CRS, error) {
	if m.err != nil {
		return domain.CRS{}, m.err
	}
	return m.index.CRS, nil
}

func (m *mockIndexRepo) Load(ctx context.Context, within *orb.Bound) (*domain.TileIndex, error) {
	return m.index, m.err
}

// --- Mock EPTResolver ---

type mockResolver struct {
	mu        sync.Mutex
	calls     map[string]int
	resolveFn func(ctx context.Context, workunit string) (domain.EPTData, error)
}

func (m *mockResolver) Resolve(ctx context.Context, workunit string) (domain.EPTData, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[workunit]++
	m.mu.Unlock()
	if m.resolveFn != nil {
		return m.resolveFn(ctx, workunit)
	}
	return domain.EPTData{Workunit: workunit, CRS: domain.EPSG(6344), EPTJSONURL: "https://example.com/" + workunit + "/ept.json"}, nil
}

// --- Mock PipelineExecutor ---

type mockExecutor struct {
	mu        sync.Mutex
	executed  []string
	executeFn func(ctx context.Context, p domain.Pipeline) error
}

func (m *mockExecutor) Execute(ctx context.Context, p domain.Pipeline) error {
	m.mu.Lock()
	m.executed = append(m.executed, p.TileName)
	m.mu.Unlock()
	if m.executeFn != nil {
		return m.executeFn(ctx, p)
	}
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	events    []domain.TileEvent
	summaries []domain.RunSummary
}

func (m *mockPublisher) PublishTileEvent(ctx context.Context, ev domain.TileEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) PublishRunSummary(ctx context.Context, s domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	ttls  map[string]int
	getFn func(key string) ([]byte, error)
	setFn func(key string) error
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if m.setFn != nil {
		return m.setFn(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
		m.ttls = make(map[string]int)
	}
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock RemoteFile ---

type mockRemote struct {
	newer   bool
	body    []byte
	fetched int
}

func (m *mockRemote) ModifiedSince(ctx context.Context, url string, t time.Time) (bool, error) {
	return m.newer, nil
}

func (m *mockRemote) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	m.fetched++
	return io.NopCloser(&byteReader{b: m.body}), nil
}

type byteReader struct {
	b []byte
	i int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}

// --- Mock TileShapeReader ---

type mockShapes struct {
	byPath map[string][]domain.TileRecord
	paths  []string
}

func (m *mockShapes) ReadTiles(ctx context.Context, path, tileNameField string) ([]domain.TileRecord, error) {
	m.paths = append(m.paths, path)
	recs, ok := m.byPath[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return recs, nil
}
