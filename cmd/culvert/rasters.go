package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depowered/culvertvision/internal/adapters/vectorfile"
	"github.com/depowered/culvertvision/internal/app"
	"github.com/depowered/culvertvision/internal/core/usecases"
)

func (c *cli) rastersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rasters",
		Short: "Rasterize point clouds for an area of interest",
	}
	cmd.AddCommand(c.rastersMakeCmd())
	return cmd
}

func (c *cli) rastersMakeCmd() *cobra.Command {
	var (
		aoiPath string
		dryRun  bool
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "make",
		Short: "Select tiles for an AOI and run their pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			aoi, err := vectorfile.ReadAOI(aoiPath)
			if err != nil {
				return err
			}

			svc, err := app.New(ctx, c.cfg, app.Options{Cache: true, Events: !dryRun})
			if err != nil {
				return err
			}
			defer svc.Close()

			req := usecases.RunRequest{AOI: aoi, Force: force}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			if dryRun {
				plan, err := svc.Runs.Plan(ctx, req)
				if err != nil {
					return err
				}
				return enc.Encode(plan)
			}

			summary, err := svc.Runs.Run(ctx, req)
			if err != nil {
				return err
			}
			if err := enc.Encode(summary); err != nil {
				return err
			}
			if !summary.OK() {
				return fmt.Errorf("%d of %d tiles failed", summary.TilesFailed, summary.TilesSelected)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&aoiPath, "aoi", "", "area of interest as GeoJSON")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the planned pipelines without running them")
	cmd.Flags().BoolVar(&force, "force", false, "rebuild tiles whose outputs already exist")
	_ = cmd.MarkFlagRequired("aoi")
	return cmd
}
