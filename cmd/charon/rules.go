package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"sentrix-hq/charon/pkg/filter"
	"sentrix-hq/charon/pkg/filter/source"
)

var rulesFlags struct {
	path string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rulesets",
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint [path]",
	Short: "Validate a ruleset file or directory",
	Long: `Load and validate a ruleset without starting the gateway.

Checks rule payloads against their kinds, rule name uniqueness, threshold
ranges, and the fallback policy. Exits non-zero on the first problem.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := rulesFlags.path
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("ruleset path is required")
		}

		// Quiet logger; lint output goes to stdout.
		src := source.NewFileSource(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
		ruleSet, err := src.Load()
		if err != nil {
			return err
		}

		fmt.Printf("ruleset valid: %s\n", path)
		fmt.Printf("  version:      %s\n", ruleSet.Version)
		fmt.Printf("  rules:        %d (%d enabled)\n", len(ruleSet.Rules), len(ruleSet.EnabledRules()))
		fmt.Printf("  strict_delta: %.2f\n", ruleSet.StrictDelta)
		fmt.Printf("  risk_floor:   %.2f\n", ruleSet.RiskFloor)
		fmt.Printf("  fallback:     %s", ruleSet.Fallback.Strategy)
		if ruleSet.Fallback.Strategy == filter.FallbackShortCircuit {
			fmt.Printf(" (%s)", ruleSet.Fallback.DefaultAction)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesLintCmd)
	rulesLintCmd.Flags().StringVar(&rulesFlags.path, "path", "", "ruleset file or directory")
	rootCmd.AddCommand(rulesCmd)
}
