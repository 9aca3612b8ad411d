// Package pdal runs stage graphs with the PDAL command line tool.
package pdal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/depowered/culvertvision/internal/core/domain"
)

const stderrTail = 2048

// Executor implements ports.PipelineExecutor by piping the pipeline JSON into
// `pdal pipeline --stdin`.
type Executor struct {
	binary string
	args   []string
}

// NewExecutor creates an executor for the given pdal binary.
func NewExecutor(binary string) *Executor {
	if binary == "" {
		binary = "pdal"
	}
	return &Executor{binary: binary, args: []string{"pipeline", "--stdin"}}
}

// Execute creates output directories and runs the pipeline to completion.
// Cancelling ctx kills the process.
func (e *Executor) Execute(ctx context.Context, p domain.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	doc, err := p.EngineJSON()
	if err != nil {
		return fmt.Errorf("encode pipeline %s: %w", p.TileName, err)
	}
	for _, out := range p.Outputs {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("output dir for %s: %w", out, err)
		}
	}

	cmd := exec.CommandContext(ctx, e.binary, e.args...)
	cmd.Stdin = bytes.NewReader(doc)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	cmd.WaitDelay = 5 * time.Second

	slog.Debug("pdal pipeline starting", "tile", p.TileName, "stages", len(p.Stages))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("pdal %s: %w", p.TileName, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("pdal %s exited with status %d: %s", p.TileName, exitErr.ExitCode(), tail(stderr.String()))
		}
		return fmt.Errorf("pdal %s: %w", p.TileName, err)
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
