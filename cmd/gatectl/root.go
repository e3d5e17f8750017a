package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/screening-gate/internal/config"
)

const cliName = "gatectl"

func newRootCmd() *cobra.Command {
	var envFile string
	var debug bool

	root := &cobra.Command{
		Use:           cliName,
		Short:         "gatectl operates the screening gate: migrate, seed, sweep and check questionnaires",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return err
				}
			} else {
				_ = godotenv.Load()
			}
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newSweepCmd(),
		newCheckCmd(),
		newHashPasswordCmd(),
	)
	root.SetOut(os.Stdout)
	return root
}

// loadConfig reads the same environment the server does.
func loadConfig() (config.Config, error) {
	return config.Load()
}
