package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/depowered/culvertvision/internal/adapters/download"
	"github.com/depowered/culvertvision/internal/core/usecases"
)

func (c *cli) vectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Mirror reference vector datasets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "extract",
		Short: "Download configured vector sources that are missing or stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			dir := filepath.Join(c.cfg.Pipeline.DataDir, "vectors")
			svc := usecases.NewVectorSourceService(download.New(c.cfg.Pipeline.HTTPTimeout), dir)
			results, err := svc.Extract(ctx, c.cfg.VectorSources)
			for _, r := range results {
				slog.Info("vector source", "name", r.Name, "path", r.Path, "downloaded", r.Downloaded)
			}
			return err
		},
	})
	return cmd
}
