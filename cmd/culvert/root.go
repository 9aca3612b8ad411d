package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/depowered/culvertvision/internal/pkg/config"
	"github.com/depowered/culvertvision/internal/pkg/logging"
)

// cli carries state shared by subcommands.
type cli struct {
	cfg      *config.Config
	logLevel string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "culvert",
		Short:         "Build tile indexes and rasterize lidar point clouds for culvert detection",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("culvert-cli")
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if c.logLevel != "" {
				level = c.logLevel
			}
			logging.Setup(level, cfg.Log.Format)
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		c.tileIndexCmd(),
		c.rastersCmd(),
		c.vectorsCmd(),
		c.eventsCmd(),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
