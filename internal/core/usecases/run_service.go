package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/ports"
	"github.com/depowered/culvertvision/internal/pkg/metrics"
	"github.com/depowered/culvertvision/internal/pkg/telemetry"
)

// RunOptions are the per-deployment knobs of a raster run.
type RunOptions struct {
	Resolution     float64
	OutputDir      string
	BufferDistance float64
	Workers        int
	TileTimeout    time.Duration
	Products       []string
}

// RunRequest asks for rasters covering an AOI.
type RunRequest struct {
	AOI   domain.AOI
	Force bool // rebuild tiles whose outputs already exist
}

// WorkunitPlan holds the tiles and pipelines that share one EPT source.
type WorkunitPlan struct {
	EPT       domain.EPTData    `json:"ept"`
	Tiles     []domain.TileData `json:"tiles"`
	Pipelines []domain.Pipeline `json:"pipelines"`
}

// Plan is everything a run would execute.
type Plan struct {
	RunID         string         `json:"run_id"`
	CRS           domain.CRS     `json:"crs"`
	TilesSelected int            `json:"tiles_selected"`
	Workunits     []WorkunitPlan `json:"workunits"`
}

// PlannedPipeline is one tile's pipeline tagged with its workunit.
type PlannedPipeline struct {
	Workunit string          `json:"workunit"`
	Pipeline domain.Pipeline `json:"pipeline"`
}

// Pipelines flattens the plan in workunit order.
func (p Plan) Pipelines() []PlannedPipeline {
	var out []PlannedPipeline
	for _, wu := range p.Workunits {
		for _, pl := range wu.Pipelines {
			out = append(out, PlannedPipeline{Workunit: wu.EPT.Workunit, Pipeline: pl})
		}
	}
	return out
}

// RunService selects tiles for an AOI and drives their pipelines.
type RunService struct {
	index    ports.TileIndexRepository
	ept      ports.EPTResolver
	executor ports.PipelineExecutor
	events   ports.EventPublisher
	opts     RunOptions

	exists func(path string) bool
	now    func() time.Time
}

// NewRunService creates a new RunService. events may be nil.
func NewRunService(
	index ports.TileIndexRepository,
	ept ports.EPTResolver,
	executor ports.PipelineExecutor,
	events ports.EventPublisher,
	opts RunOptions,
) *RunService {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &RunService{
		index:    index,
		ept:      ept,
		executor: executor,
		events:   events,
		opts:     opts,
		exists:   fileExists,
		now:      time.Now,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Plan selects tiles, resolves EPT sources per workunit and assembles
// pipelines without executing anything.
func (s *RunService) Plan(ctx context.Context, req RunRequest) (Plan, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "RunService.Plan")
	defer span.End()

	plan := Plan{RunID: uuid.NewString()}

	crs, err := s.index.CRS(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("tile index crs: %w", err)
	}
	plan.CRS = crs
	if len(req.AOI.Geometries) == 0 {
		return plan, nil
	}

	bound, err := AOIBoundIn(req.AOI, crs)
	if err != nil {
		return Plan{}, err
	}
	index, err := s.index.Load(ctx, &bound)
	if err != nil {
		return Plan{}, fmt.Errorf("load tile index: %w", err)
	}

	sel, err := SelectTilesByLocation(req.AOI, index)
	if err != nil {
		return Plan{}, err
	}
	plan.TilesSelected = sel.Len()
	span.SetAttributes(attribute.Int("tiles.selected", sel.Len()))
	if sel.Len() == 0 {
		return plan, nil
	}

	products, err := ProductsFor(s.opts.Products, s.opts.Resolution, s.opts.OutputDir)
	if err != nil {
		return Plan{}, err
	}

	for _, wu := range sel.Workunits() {
		ept, err := s.ept.Resolve(ctx, wu)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ept resolve failed")
			return Plan{}, fmt.Errorf("workunit %s: %w", wu, err)
		}
		tiles, err := GenerateTileData(sel.ByWorkunit(wu), ept, TileDataOptions{BufferDistance: s.opts.BufferDistance})
		if err != nil {
			return Plan{}, fmt.Errorf("workunit %s: %w", wu, err)
		}
		pipelines, err := AssemblePipelines(tiles, ept, VendorGroundSource{}, products)
		if err != nil {
			return Plan{}, fmt.Errorf("workunit %s: %w", wu, err)
		}
		plan.Workunits = append(plan.Workunits, WorkunitPlan{EPT: ept, Tiles: tiles, Pipelines: pipelines})
	}
	return plan, nil
}

// Run plans and executes every tile on a bounded worker pool. A failing tile
// is recorded in the summary and never cancels its siblings.
func (s *RunService) Run(ctx context.Context, req RunRequest) (domain.RunSummary, error) {
	started := s.now()

	plan, err := s.Plan(ctx, req)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return domain.RunSummary{}, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "RunService.Run",
		trace.WithAttributes(attribute.String("run.id", plan.RunID)))
	defer span.End()

	summary := domain.RunSummary{
		RunID:         plan.RunID,
		TilesSelected: plan.TilesSelected,
		StartedAt:     started,
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Workers)
	for _, pp := range plan.Pipelines() {
		pp := pp
		g.Go(func() error {
			ev := s.ExecuteTile(ctx, plan.RunID, pp, req.Force)
			mu.Lock()
			summary.Record(ev)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(summary.Outputs)
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].TileName < summary.Failures[j].TileName
	})
	summary.FinishedAt = s.now()

	result := "ok"
	if !summary.OK() {
		result = "partial"
		span.SetStatus(codes.Error, fmt.Sprintf("%d tiles failed", summary.TilesFailed))
	}
	metrics.RunsTotal.WithLabelValues(result).Inc()

	slog.Info("run finished",
		"run_id", summary.RunID,
		"selected", summary.TilesSelected,
		"processed", summary.TilesProcessed,
		"skipped", summary.TilesSkipped,
		"failed", summary.TilesFailed,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)
	if s.events != nil {
		if err := s.events.PublishRunSummary(ctx, summary); err != nil {
			slog.Warn("publish run summary failed", "run_id", summary.RunID, "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// ExecuteTile runs one pipeline under the tile timeout and reports the
// outcome. Tiles whose outputs all exist are skipped unless force is set.
func (s *RunService) ExecuteTile(ctx context.Context, runID string, pp PlannedPipeline, force bool) domain.TileEvent {
	p := pp.Pipeline
	log := slog.With("run_id", runID, "tile", p.TileName, "workunit", pp.Workunit)
	ev := domain.TileEvent{
		RunID:    runID,
		TileName: p.TileName,
		Workunit: pp.Workunit,
		Outputs:  p.Outputs,
	}

	if !force && len(p.Outputs) > 0 && s.allExist(p.Outputs) {
		ev.Status = domain.TileSkipped
		log.Info("tile up-to-date, skipping")
		s.finishTile(ctx, ev)
		return ev
	}

	tctx := ctx
	if s.opts.TileTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, s.opts.TileTimeout)
		defer cancel()
	}

	metrics.TilesInFlight.Inc()
	start := s.now()
	err := s.executor.Execute(tctx, p)
	ev.Duration = s.now().Sub(start)
	metrics.TilesInFlight.Dec()
	metrics.TileDuration.Observe(ev.Duration.Seconds())

	if err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("tile timeout after %s: %w", s.opts.TileTimeout, err)
		}
		ev.Status = domain.TileFailed
		ev.Outputs = nil
		ev.Error = err.Error()
		log.Error("tile failed", "error", err, "duration", ev.Duration.String())
	} else {
		ev.Status = domain.TileSucceeded
		log.Info("tile complete", "duration", ev.Duration.String())
	}
	s.finishTile(ctx, ev)
	return ev
}

func (s *RunService) finishTile(ctx context.Context, ev domain.TileEvent) {
	metrics.TilesTotal.WithLabelValues(string(ev.Status)).Inc()
	if s.events == nil {
		return
	}
	if err := s.events.PublishTileEvent(ctx, ev); err != nil {
		slog.Warn("publish tile event failed", "run_id", ev.RunID, "tile", ev.TileName, "error", err)
	}
}

func (s *RunService) allExist(paths []string) bool {
	for _, p := range paths {
		if !s.exists(p) {
			return false
		}
	}
	return true
}
