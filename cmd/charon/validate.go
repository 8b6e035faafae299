package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sentrix-hq/charon/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the configuration file without starting the gateway.

Exits non-zero when the configuration is missing, malformed, or internally
inconsistent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		fmt.Printf("configuration valid: %s\n", cfgFile)
		fmt.Printf("  listen:      %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  classifier:  %s\n", cfg.Classifier.BaseURL)
		fmt.Printf("  generator:   %s\n", cfg.Generator.BaseURL)
		fmt.Printf("  rules:       %s\n", cfg.Rules.Path)
		fmt.Printf("  audit:       %s\n", cfg.Audit.Backend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
