package main

import (
	"fmt"

	"github.com/hyperengineering/curator"
	"github.com/spf13/cobra"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Mine decision and API logs for learning patterns",
	Long: `Sample the most recent decision and API collaboration log rows and report
recurring failures, success factors, user preferences and peak activity hours,
with recommendations.`,
	Example: `  curator patterns
  curator patterns --json`,
	GroupID: groupMaintenance,
	Args:    cobra.NoArgs,
	RunE:    runPatterns,
}

func init() {
	rootCmd.AddCommand(patternsCmd)
}

func runPatterns(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	var insights *curator.LearningInsights
	err = runWithSpinner(cmd.ErrOrStderr(), "Mining logs", func() error {
		insights, err = engine.MinePatterns(cmd.Context())
		return err
	})
	if err != nil {
		return fmt.Errorf("pattern mining: %w", err)
	}
	return outputInsights(cmd, insights)
}
