// Package main implements the matchd CLI for running line item batches
// against a local parts catalog.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides the default config file location
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "matchd",
	Short: "Line item matching pipeline",
	Long: `matchd matches free-text purchase line items against a parts catalog.
Each item is extracted, searched, and matched, with quality gates between
stages and automatic retry when a stage falls short.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/matchd/config.yaml)")
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(profilesCmd)
}
