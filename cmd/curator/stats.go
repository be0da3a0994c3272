package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Long:  `Display row counts for the store, and optionally a health check.`,
	Example: `  curator stats
  curator stats --health`,
	GroupID: groupStore,
	Args:    cobra.NoArgs,
	RunE:    runStats,
}

var backupCmd = &cobra.Command{
	Use:     "backup <dest.db>",
	Short:   "Copy the store database to a file",
	Example: `  curator backup /tmp/curator-backup.db`,
	GroupID: groupStore,
	Args:    cobra.ExactArgs(1),
	RunE:    runBackup,
}

var statsHealth bool

func init() {
	statsCmd.Flags().BoolVar(&statsHealth, "health", false, "Include health check")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(backupCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if outputJSON {
		payload := map[string]interface{}{"store_id": cfg.Store, "stats": stats}
		if statsHealth {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			payload["health"] = engine.HealthCheck(ctx)
		}
		return outputAsJSON(cmd, payload)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderPanel("Store "+cfg.Store, renderTable(
		[]string{"METRIC", "VALUE"},
		[][]string{
			{"Seeds", fmt.Sprintf("%d (%d active)", stats.SeedCount, stats.ActiveSeeds)},
			{"Feedback", fmt.Sprintf("%d", stats.FeedbackCount)},
			{"Usage rows", fmt.Sprintf("%d", stats.UsageEntries)},
			{"Decisions", fmt.Sprintf("%d", stats.DecisionCount)},
			{"API calls", fmt.Sprintf("%d", stats.APICallCount)},
			{"Reflections", fmt.Sprintf("%d", stats.ReflectionCount)},
			{"Schema", stats.SchemaVersion},
		},
	)))

	if statsHealth {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		health := engine.HealthCheck(ctx)

		fmt.Fprintln(out)
		if health.Healthy {
			printSuccess(out, "healthy")
		} else {
			printError(out, "unhealthy: %s", health.Error)
		}
		printField(out, "Store OK", health.StoreOK)
		printField(out, "Safety classifier", configured(health.SafetyConfigured))
		printField(out, "Bias classifier", configured(health.BiasConfigured))
	}
	return nil
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured (fail-open)"
}

func runBackup(cmd *cobra.Command, args []string) error {
	engine, _, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Store().Backup(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if outputJSON {
		return outputAsJSON(cmd, map[string]string{"path": args[0]})
	}
	printSuccess(cmd.OutOrStdout(), "Backup written to %s", args[0])
	return nil
}
