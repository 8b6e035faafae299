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
	Use:   "charon",
	Short: "Charon - policy-filtered prompt gateway",
	Long: `Charon is a filtering gateway for generative backends. It classifies the
intent of inbound prompts, evaluates configurable rules against the
classification, and forwards allowed prompts to a completion backend,
returning the response augmented with filtering metadata.

It provides:
  - Intent classification through a pluggable categorization service
  - Rule-based allow/block/review decisions with auditable reasoning
  - Operating modes: full, strict, logging-only, and bypass
  - Fail-open or fail-closed fallback when classification is unavailable
  - Decision provenance storage with scheduled retention`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
