package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/depowered/culvertvision/internal/adapters/http"
	natsadapter "github.com/depowered/culvertvision/internal/adapters/nats"
	"github.com/depowered/culvertvision/internal/app"
	"github.com/depowered/culvertvision/internal/pkg/config"
	"github.com/depowered/culvertvision/internal/pkg/logging"
	"github.com/depowered/culvertvision/internal/pkg/telemetry"
	"github.com/depowered/culvertvision/internal/workflows"
)

func main() {
	cfg, err := config.Load("culvertvision-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	svc, err := app.New(ctx, cfg, app.Options{Cache: true})
	if err != nil {
		log.Fatalf("services: %v", err)
	}
	defer svc.Close()
	svc.WatchDBPool(ctx, 15*time.Second)

	deps := &http.Dependencies{
		Index: svc.Index,
		EPT:   svc.EPT,
		Runs:  svc.Runs,
	}
	if svc.DB != nil {
		deps.DB = svc.DB
	}
	if svc.Cache != nil {
		deps.Cache = svc.Cache
	}

	// Raw NATS connection for WebSocket relay
	if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		deps.NATS = nc
		defer nc.Close()
	}

	if tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	}); err != nil {
		slog.Warn("temporal unavailable, POST /v1/runs disabled", "error", err)
	} else {
		defer tc.Close()
		deps.Starter = &workflows.Starter{
			Client:      tc,
			TaskQueue:   cfg.Temporal.TaskQueue,
			TileTimeout: cfg.Pipeline.TileTimeout,
		}
	}

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    8 * 1024 * 1024, // AOIs can be detailed polygons
		AppName:      "culvertvision API",
	})
	fiberApp.Use(recover.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(fiberApp, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := fiberApp.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
