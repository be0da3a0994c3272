package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hyperengineering/curator"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <snapshot.json>",
	Short: "Import a JSON snapshot into the store",
	Long: `Import seeds, feedback, usage and log rows from a JSON snapshot.

Seeds whose ID already exists are skipped. Malformed entries are reported
and the import continues; a truncated or unparseable file aborts it.

Snapshot format:
  {"version": "1", "seeds": [...], "feedback": [...], "usage": [...],
   "decisions": [...], "api_calls": [...]}`,
	Example: `  curator import snapshot.json --dry-run
  curator --store team/companion import snapshot.json`,
	GroupID: groupStore,
	Args:    cobra.ExactArgs(1),
	RunE:    runImport,
}

var importDryRun bool

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview import without making changes")
	rootCmd.AddCommand(importCmd)
}

// importOutput is the JSON form of an import run.
type importOutput struct {
	*curator.ImportResult
	StoreID   string `json:"store_id"`
	InputFile string `json:"input_file"`
	Duration  string `json:"duration"`
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file not found: %s", path)
		}
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	engine, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	out := cmd.OutOrStdout()
	if !outputJSON {
		verb := "Importing"
		if importDryRun {
			verb = "Previewing import"
		}
		printInfo(out, "%s into store '%s' from %s...", verb, cfg.Store, path)
	}

	start := time.Now()
	result, err := engine.Store().ImportSnapshot(cmd.Context(), f, importDryRun)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	duration := time.Since(start).Round(time.Millisecond)

	if outputJSON {
		return outputAsJSON(cmd, importOutput{
			ImportResult: result,
			StoreID:      cfg.Store,
			InputFile:    path,
			Duration:     duration.String(),
		})
	}

	fmt.Fprintln(out)
	printField(out, "Seeds", result.Seeds)
	printField(out, "Skipped (existing)", result.Skipped)
	printField(out, "Feedback", result.Feedback)
	printField(out, "Usage rows", result.Usage)
	printField(out, "Decisions", result.Decisions)
	printField(out, "API calls", result.APICalls)
	printField(out, "Errors", len(result.Errors))
	outputErrorList(out, result.Errors)

	fmt.Fprintln(out)
	if importDryRun {
		printMuted(out, "Dry-run complete. No changes made.")
	} else {
		printSuccess(out, "Import complete (took %s).", duration)
	}
	return nil
}
