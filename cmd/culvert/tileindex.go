package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/depowered/culvertvision/internal/adapters/postgres"
	"github.com/depowered/culvertvision/internal/adapters/shapefile"
	"github.com/depowered/culvertvision/internal/adapters/vectorfile"
	"github.com/depowered/culvertvision/internal/core/ports"
	"github.com/depowered/culvertvision/internal/core/usecases"
	"github.com/depowered/culvertvision/internal/pkg/config"
)

func (c *cli) tileIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tileindex",
		Short: "Build and load the unified tile index",
	}
	cmd.AddCommand(c.tileIndexBuildCmd(), c.tileIndexLoadCmd())
	return cmd
}

func (c *cli) tileIndexBuildCmd() *cobra.Command {
	var (
		cfgPath string
		load    bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Merge per-workunit tile shapefiles into one GeoJSON tile index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			dataDir := c.cfg.Pipeline.DataDir
			if env := os.Getenv(config.DataDirEnv); env != "" {
				dataDir = env
			}
			build, err := config.LoadTileIndexBuild(cfgPath, dataDir)
			if err != nil {
				return err
			}

			svc := usecases.NewTileIndexService(shapefile.NewReader())
			index, err := svc.Build(ctx, build)
			if err != nil {
				return err
			}

			out := build.OutputPath
			if out == "" {
				out = c.cfg.Pipeline.TileIndexFile()
			}
			dests := []ports.TileIndexWriter{vectorfile.NewTileIndexFile(out)}
			if load {
				db, err := postgres.New(ctx, c.cfg.Database.DSN())
				if err != nil {
					return fmt.Errorf("database: %w", err)
				}
				defer db.Close()
				dests = append(dests, postgres.NewTileRepo(db))
			}
			if err := svc.Publish(ctx, index, dests...); err != nil {
				return err
			}
			slog.Info("tile index written", "path", out, "tiles", len(index.Records), "crs", index.CRS.String(), "loaded", load)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "tile_index.toml", "tile index build config (TOML)")
	cmd.Flags().BoolVar(&load, "load", false, "also load the index into PostGIS")
	return cmd
}

func (c *cli) tileIndexLoadCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a GeoJSON tile index into PostGIS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if from == "" {
				from = c.cfg.Pipeline.TileIndexFile()
			}
			index, err := vectorfile.NewTileIndexFile(from).Load(ctx, nil)
			if err != nil {
				return err
			}

			db, err := postgres.New(ctx, c.cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer db.Close()

			if err := postgres.NewTileRepo(db).ReplaceAll(ctx, index); err != nil {
				return err
			}
			slog.Info("tile index loaded", "from", from, "tiles", len(index.Records))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "GeoJSON tile index (default pipeline.tile_index_path)")
	return cmd
}
