package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/screening-gate/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/screening-gate/internal/app"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "abandon stale IN_PROGRESS and unclaimed PASSED sessions once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := app.OpenStorage(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()
			res, err := app.BuildServices(cfg, st, redpanda.Noop{}).Sweep.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "in_progress_swept=%d orphaned_passed_swept=%d\n",
				res.InProgressSwept, res.OrphanedPassedSwept)
			return nil
		},
	}
}
