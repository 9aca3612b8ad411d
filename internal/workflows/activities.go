package workflows

import (
	"context"
	"encoding/json"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/depowered/culvertvision/internal/adapters/vectorfile"
	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/usecases"
)

// PlanResult is the serialisable part of a usecases.Plan.
type PlanResult struct {
	RunID         string
	TilesSelected int
	Pipelines     []usecases.PlannedPipeline
}

// ExecuteInput is one tile of a planned run.
type ExecuteInput struct {
	RunID    string
	Pipeline usecases.PlannedPipeline
	Force    bool
}

// RasterizeActivities holds the activity implementations for the rasterize workflow.
type RasterizeActivities struct {
	Runs *usecases.RunService
}

// PlanRun selects tiles for the AOI and assembles their pipelines.
func (a *RasterizeActivities) PlanRun(ctx context.Context, in RasterizeInput) (PlanResult, error) {
	aoi, err := vectorfile.ParseAOI(in.AOI)
	if err != nil {
		return PlanResult{}, temporal.NewNonRetryableApplicationError("invalid aoi", "validation", err)
	}
	plan, err := a.Runs.Plan(ctx, usecases.RunRequest{AOI: aoi, Force: in.Force})
	if err != nil {
		return PlanResult{}, fmt.Errorf("plan run: %w", err)
	}
	activity.GetLogger(ctx).Info("run planned", "run_id", plan.RunID, "tiles", plan.TilesSelected)
	return PlanResult{RunID: plan.RunID, TilesSelected: plan.TilesSelected, Pipelines: plan.Pipelines()}, nil
}

// ExecutePipeline runs one tile. A failed tile returns an error so the
// retry policy applies; the event is still returned for the final attempt.
func (a *RasterizeActivities) ExecutePipeline(ctx context.Context, in ExecuteInput) (domain.TileEvent, error) {
	ev := a.Runs.ExecuteTile(ctx, in.RunID, in.Pipeline, in.Force)
	if ev.Status == domain.TileFailed {
		return ev, fmt.Errorf("tile %s: %s", ev.TileName, ev.Error)
	}
	return ev, nil
}

// aoiJSON validates raw GeoJSON before a workflow is started.
func aoiJSON(data []byte) (json.RawMessage, error) {
	if _, err := vectorfile.ParseAOI(data); err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
