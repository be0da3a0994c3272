package main

import (
	"fmt"

	"github.com/hyperengineering/curator"
	"github.com/spf13/cobra"
)

var overspecificCmd = &cobra.Command{
	Use:   "overspecific",
	Short: "Find and repair context-bound seeds",
	Long: `Find seeds whose response is bound to a time of day or a prior event
("vanochtend", "na een goede nachtrust") and show the proposed rewrite.

With --apply, fixable rewrites are persisted and the remaining flagged seeds
are deactivated.`,
	Example: `  curator overspecific
  curator overspecific --apply`,
	GroupID: groupMaintenance,
	Args:    cobra.NoArgs,
	RunE:    runOverspecific,
}

var deactivateCmd = &cobra.Command{
	Use:     "deactivate <seed-id>...",
	Short:   "Deactivate seeds by ID",
	Example: `  curator deactivate 01HV3K 01HV3M`,
	GroupID: groupMaintenance,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDeactivate,
}

var overspecificApply bool

func init() {
	overspecificCmd.Flags().BoolVar(&overspecificApply, "apply", false, "Persist repairs and deactivations")

	rootCmd.AddCommand(overspecificCmd)
	rootCmd.AddCommand(deactivateCmd)
}

func runOverspecific(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmd.Context()
	if !overspecificApply {
		entries, err := engine.FindOverspecific(ctx, curator.ContextBoundPredicate)
		if err != nil {
			return fmt.Errorf("overspecificity scan: %w", err)
		}
		return outputOverspecific(cmd, entries)
	}

	var report *curator.OverspecificityReport
	err = runWithSpinner(cmd.ErrOrStderr(), "Sweeping seeds", func() error {
		report, err = engine.SweepOverspecific(ctx, curator.ContextBoundPredicate, curator.SweepOptions{})
		return err
	})
	if err != nil {
		return fmt.Errorf("overspecificity sweep: %w", err)
	}
	return outputSweep(cmd, report)
}

func runDeactivate(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	n, err := engine.DeactivateSeeds(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]int{"requested": len(args), "deactivated": n})
	}
	out := cmd.OutOrStdout()
	printSuccess(out, "Deactivated %d of %d seed(s)", n, len(args))
	if n < len(args) {
		printMuted(out, "The rest were unknown or already inactive.")
	}
	return nil
}
