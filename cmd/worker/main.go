package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/depowered/culvertvision/internal/app"
	"github.com/depowered/culvertvision/internal/pkg/config"
	"github.com/depowered/culvertvision/internal/pkg/logging"
	"github.com/depowered/culvertvision/internal/pkg/telemetry"
	"github.com/depowered/culvertvision/internal/workflows"
)

func main() {
	cfg, err := config.Load("culvertvision-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	svc, err := app.New(ctx, cfg, app.Options{Cache: true, Events: true})
	if err != nil {
		log.Fatalf("services: %v", err)
	}
	defer svc.Close()
	svc.WatchDBPool(ctx, 15*time.Second)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	queue := cfg.Temporal.TaskQueue
	if queue == "" {
		queue = workflows.DefaultTaskQueue
	}
	// pdal is CPU bound; one tile per configured worker
	w := worker.New(c, queue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Pipeline.Workers,
	})

	w.RegisterWorkflow(workflows.RasterizeWorkflow)
	w.RegisterActivity(&workflows.RasterizeActivities{Runs: svc.Runs})

	slog.Info("rasterize worker started", "task_queue", queue, "workers", cfg.Pipeline.Workers)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
