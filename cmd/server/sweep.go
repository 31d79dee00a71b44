package main

import (
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/storage"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired rooms once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.Open(cmd.Context(), cfg.Store)
			if err != nil {
				return fmt.Errorf("open room store: %w", err)
			}
			defer store.Close(cmd.Context())

			n, err := app.NewSweeper(store, cfg.SweepInterval, time.Now, nil).SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("removed", n).Msg("sweep finished")
			return nil
		},
	}
}
