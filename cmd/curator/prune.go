package main

import (
	"fmt"

	"github.com/hyperengineering/curator"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Deactivate ineffective seeds",
	Long: `Deactivate seeds whose effectiveness score is below the threshold and that
have been used more than 5 times. Deactivation is soft: rows stay in the store
with active=false, and pruning twice changes nothing the second time.`,
	Example: `  curator prune --dry-run
  curator prune --threshold 25`,
	GroupID: groupMaintenance,
	Args:    cobra.NoArgs,
	RunE:    runPrune,
}

var (
	pruneThreshold float64
	pruneDryRun    bool
)

func init() {
	pruneCmd.Flags().Float64Var(&pruneThreshold, "threshold", 0, "Score threshold 0-100 (default: configured threshold)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Show what would be pruned without changing anything")

	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	threshold := engine.PruneThreshold()
	if cmd.Flags().Changed("threshold") {
		threshold = pruneThreshold
	}
	ctx := cmd.Context()

	if pruneDryRun {
		plan, err := engine.PlanPrune(ctx, threshold)
		if err != nil {
			return fmt.Errorf("plan prune: %w", err)
		}
		return outputPrune(cmd, plan)
	}

	var n int
	err = runWithSpinner(cmd.ErrOrStderr(), "Pruning seeds", func() error {
		n, err = engine.Prune(ctx, threshold)
		return err
	})
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	return outputPrune(cmd, &curator.PruneResult{Threshold: threshold, Pruned: n})
}
