package main

import (
	"fmt"
	"os"

	"github.com/hyperengineering/curator"
	"github.com/spf13/cobra"
)

var effectivenessCmd = &cobra.Command{
	Use:     "effectiveness",
	Aliases: []string{"scan"},
	Short:   "Score every active seed",
	Long: `Score every active seed from 0 to 100 using its usage ledger and
like/dislike feedback, and show the recent feedback trend.

Seeds are listed highest score first. Seeds scoring below the prune threshold
with more than 5 uses are marked as prunable.`,
	Example: `  curator effectiveness
  curator effectiveness --limit 20 --lowest
  curator effectiveness --output report.json`,
	GroupID: groupMaintenance,
	Args:    cobra.NoArgs,
	RunE:    runEffectiveness,
}

var (
	effLimit     int
	effLowest    bool
	effOutput    string
	effThreshold float64
)

func init() {
	effectivenessCmd.Flags().IntVarP(&effLimit, "limit", "n", 0, "Show at most N seeds (0 = all)")
	effectivenessCmd.Flags().BoolVar(&effLowest, "lowest", false, "List the weakest seeds first")
	effectivenessCmd.Flags().StringVarP(&effOutput, "output", "o", "", "Write a JSON report to this file")
	effectivenessCmd.Flags().Float64Var(&effThreshold, "threshold", 0, "Prune threshold for marking (default: configured threshold)")

	rootCmd.AddCommand(effectivenessCmd)
}

func runEffectiveness(cmd *cobra.Command, args []string) error {
	engine, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	threshold := cfg.Threshold()
	if cmd.Flags().Changed("threshold") {
		threshold = effThreshold
	}

	var profiles []curator.EffectivenessProfile
	err = runWithSpinner(cmd.ErrOrStderr(), "Scoring seeds", func() error {
		profiles, err = engine.ScanEffectiveness(cmd.Context())
		return err
	})
	if err != nil {
		return fmt.Errorf("effectiveness scan: %w", err)
	}

	if effOutput != "" {
		if err := writeReport(cmd, effOutput, cfg.Store, threshold, profiles); err != nil {
			return err
		}
	}

	if effLowest {
		for i, j := 0, len(profiles)-1; i < j; i, j = i+1, j-1 {
			profiles[i], profiles[j] = profiles[j], profiles[i]
		}
	}
	if effLimit > 0 && effLimit < len(profiles) {
		profiles = profiles[:effLimit]
	}
	return outputProfiles(cmd, profiles, threshold)
}

func writeReport(cmd *cobra.Command, path, storeID string, threshold float64, profiles []curator.EffectivenessProfile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if err := curator.WriteEffectivenessReport(cmd.Context(), f, storeID, threshold, profiles); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	if !outputJSON {
		printInfo(cmd.ErrOrStderr(), "Report written to %s", path)
	}
	return nil
}
