package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/screening-gate/internal/app"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.UseMemoryStore() {
				return errors.New("migrate needs STORAGE_DRIVER=postgres")
			}
			st, err := app.OpenStorage(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
