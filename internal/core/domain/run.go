package domain

import "time"

// TileStatus is the outcome of executing one tile's pipeline.
type TileStatus string

const (
	TileSucceeded TileStatus = "succeeded"
	TileSkipped   TileStatus = "skipped"
	TileFailed    TileStatus = "failed"
)

// TileEvent is published after each tile finishes.
type TileEvent struct {
	RunID    string        `json:"run_id"`
	TileName string        `json:"tile_name"`
	Workunit string        `json:"workunit"`
	Status   TileStatus    `json:"status"`
	Outputs  []string      `json:"outputs,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// TileFailure records why a tile did not produce its outputs.
type TileFailure struct {
	TileName string `json:"tile_name"`
	Reason   string `json:"reason"`
}

// RunSummary is reported at the end of every run.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	TilesSelected  int           `json:"tiles_selected"`
	TilesProcessed int           `json:"tiles_processed"`
	TilesSkipped   int           `json:"tiles_skipped"`
	TilesFailed    int           `json:"tiles_failed"`
	Failures       []TileFailure `json:"failures,omitempty"`
	Outputs        []string      `json:"outputs,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Record folds one tile event into the summary.
func (s *RunSummary) Record(ev TileEvent) {
	switch ev.Status {
	case TileSucceeded:
		s.TilesProcessed++
		s.Outputs = append(s.Outputs, ev.Outputs...)
	case TileSkipped:
		s.TilesSkipped++
		s.Outputs = append(s.Outputs, ev.Outputs...)
	case TileFailed:
		s.TilesFailed++
		s.Failures = append(s.Failures, TileFailure{TileName: ev.TileName, Reason: ev.Error})
	}
}

// OK reports whether every selected tile produced its outputs.
func (s RunSummary) OK() bool {
	return s.TilesFailed == 0
}
