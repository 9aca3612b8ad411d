package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/spf13/cobra"

	natsadapter "github.com/depowered/culvertvision/internal/adapters/nats"
	"github.com/depowered/culvertvision/internal/core/domain"
)

func (c *cli) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect pipeline events",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print live tile events and run summaries as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			sub, err := natsadapter.NewSubscriber(c.cfg.NATS.URL)
			if err != nil {
				return err
			}
			defer sub.Close()

			var mu sync.Mutex
			enc := json.NewEncoder(os.Stdout)
			emit := func(v any) error {
				mu.Lock()
				defer mu.Unlock()
				return enc.Encode(v)
			}

			if err := sub.SubscribeTileEvents(ctx, func(_ context.Context, ev domain.TileEvent) error {
				return emit(ev)
			}); err != nil {
				return err
			}
			if err := sub.SubscribeRunSummaries(ctx, func(_ context.Context, s domain.RunSummary) error {
				return emit(s)
			}); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	})
	return cmd
}
