package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/screening-gate/internal/app"
	"github.com/fairyhunter13/screening-gate/internal/seed"
)

func newSeedCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "upsert jobs and questionnaires from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d jobs valid\n", args[0], len(f.Jobs))
				return nil
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := app.OpenStorage(cmd.Context(), cfg, cfg.MigrateOnStart)
			if err != nil {
				return err
			}
			defer st.Close()
			res, err := seed.Apply(cmd.Context(), st.Jobs, st.Questionnaires, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "jobs upserted: %d, questionnaires saved: %d, unchanged: %d\n",
				res.Jobs, res.QuestionnairesSaved, res.Unchanged)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}
