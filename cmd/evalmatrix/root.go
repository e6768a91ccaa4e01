package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openprocure/evalmatrix/internal/config"
)

var version = "dev"

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg holds the resolved process configuration, populated before any
// subcommand runs.
var cfg = config.New()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:           "evalmatrix",
	Short:         "Evaluate and rank tender bids against a weighted rubric.",
	Long:          `Evalmatrix scores vendor bids against weighted criteria, checks technical compliance, measures inter-evaluator consensus, and produces a deterministic award ranking.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
