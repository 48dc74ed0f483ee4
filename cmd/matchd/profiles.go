package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
)

// profilesCmd lists the quality threshold profiles
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List quality threshold profiles",
	Long: `Print the per-stage minimum passing scores for each quality profile.

The active profile is selected via pipeline.profile in the config file or
the MATCHD_PIPELINE_PROFILE environment variable.`,
	RunE: runProfiles,
}

func runProfiles(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-12s", "profile")
	for _, stage := range qualitygate.AllStages() {
		fmt.Printf("  %-12s", stage)
	}
	fmt.Println()

	for _, p := range qualitygate.Profiles() {
		thresholds, err := p.Thresholds()
		if err != nil {
			return err
		}
		fmt.Printf("%-12s", p)
		for _, stage := range qualitygate.AllStages() {
			fmt.Printf("  %-12.2f", thresholds[stage])
		}
		fmt.Println()
	}
	return nil
}
