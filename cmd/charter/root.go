package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "charter",
	Short: "Charter - constitutional policy runtime",
	Long: `Charter compiles governance principles into verified policy rules and
serves runtime permit/deny decisions over them.

Principles enter as normative statements with structured constraints. The
compilation pipeline synthesizes rules, verifies them against their source
principles, resolves conflicts between opposing rules, and promotes the
survivors into immutable generation snapshots. The evaluator answers
decision requests against the active generation and denies on any failure.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
