package workflows

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// DefaultTaskQueue is the queue the rasterize worker polls.
const DefaultTaskQueue = "rasterize-queue"

// RasterizeInput is the input for the rasterize workflow. AOI is GeoJSON so
// the input survives the data converter.
type RasterizeInput struct {
	AOI         json.RawMessage
	Force       bool
	TileTimeout time.Duration
}

// RasterizeWorkflow plans a run, then executes one activity per tile. Tile
// failures are folded into the summary instead of failing the workflow.
func RasterizeWorkflow(ctx workflow.Context, input RasterizeInput) (domain.RunSummary, error) {
	logger := workflow.GetLogger(ctx)

	planCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	var plan PlanResult
	if err := workflow.ExecuteActivity(planCtx, "PlanRun", input).Get(ctx, &plan); err != nil {
		return domain.RunSummary{}, err
	}
	logger.Info("Starting rasterize run", "runID", plan.RunID, "tiles", plan.TilesSelected)

	summary := domain.RunSummary{
		RunID:         plan.RunID,
		TilesSelected: plan.TilesSelected,
		StartedAt:     workflow.Now(ctx),
	}

	timeout := input.TileTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	execCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	futures := make([]workflow.Future, len(plan.Pipelines))
	for i, pp := range plan.Pipelines {
		futures[i] = workflow.ExecuteActivity(execCtx, "ExecutePipeline", ExecuteInput{
			RunID:    plan.RunID,
			Pipeline: pp,
			Force:    input.Force,
		})
	}
	for i, f := range futures {
		var ev domain.TileEvent
		if err := f.Get(ctx, &ev); err != nil {
			logger.Warn("tile failed", "tile", plan.Pipelines[i].Pipeline.TileName, "error", err)
			summary.Record(domain.TileEvent{
				RunID:    plan.RunID,
				TileName: plan.Pipelines[i].Pipeline.TileName,
				Workunit: plan.Pipelines[i].Workunit,
				Status:   domain.TileFailed,
				Error:    err.Error(),
			})
			continue
		}
		summary.Record(ev)
	}

	sort.Strings(summary.Outputs)
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].TileName < summary.Failures[j].TileName
	})
	summary.FinishedAt = workflow.Now(ctx)

	logger.Info("Rasterize run finished", "runID", plan.RunID, "failed", summary.TilesFailed)
	return summary, nil
}

// Starter launches rasterize workflows on a Temporal cluster.
type Starter struct {
	Client      client.Client
	TaskQueue   string
	TileTimeout time.Duration
}

// StartRun validates the AOI and starts a workflow, returning its workflow
// and run IDs.
func (s *Starter) StartRun(ctx context.Context, aoi []byte, force bool) (string, string, error) {
	raw, err := aoiJSON(aoi)
	if err != nil {
		return "", "", err
	}
	queue := s.TaskQueue
	if queue == "" {
		queue = DefaultTaskQueue
	}
	run, err := s.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "rasterize-" + uuid.NewString(),
		TaskQueue: queue,
	}, RasterizeWorkflow, RasterizeInput{AOI: raw, Force: force, TileTimeout: s.TileTimeout})
	if err != nil {
		return "", "", err
	}
	return run.GetID(), run.GetRunID(), nil
}
