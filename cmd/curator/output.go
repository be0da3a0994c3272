package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperengineering/curator"
	"github.com/spf13/cobra"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to w, ensuring no API keys are leaked.
func outputError(w io.Writer, err error) {
	printError(w, "Error: %s", scrubSensitiveData(err.Error()))
}

// scrubSensitiveData redacts the configured API key from msg.
func scrubSensitiveData(msg string) string {
	for _, key := range []string{cfgAPIKey, envAPIKey()} {
		if key != "" && strings.Contains(msg, key) {
			msg = strings.ReplaceAll(msg, key, "[REDACTED]")
		}
	}
	return msg
}

func envAPIKey() string {
	return curator.ConfigFromEnv().APIKey
}

// outputProfiles prints effectiveness profiles as a table.
func outputProfiles(cmd *cobra.Command, profiles []curator.EffectivenessProfile, threshold float64) error {
	if outputJSON {
		return outputAsJSON(cmd, profiles)
	}

	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		printMuted(out, "No active seeds.")
		return nil
	}

	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{
			shortID(p.SeedID),
			p.Emotion,
			renderScore(p.EffectivenessScore, threshold),
			fmt.Sprintf("%d", p.TotalUsage),
			fmt.Sprintf("%d/%d", p.PositiveFeedback, p.NegativeFeedback),
			fmt.Sprintf("%.2f", p.AvgConfidence),
			string(p.Trend),
			formatLastUsed(p.LastUsed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"SEED", "EMOTION", "SCORE", "USAGE", "+/-", "CONF", "TREND", "LAST USED"},
		rows,
	))

	prunable := curator.SelectPrunable(profiles, threshold)
	fmt.Fprintln(out)
	if len(prunable) > 0 {
		printWarning(out, "%d seed(s) below %.0f would be pruned", len(prunable), threshold)
	} else {
		printSuccess(out, "%d seed(s) scored, none below %.0f", len(profiles), threshold)
	}
	return nil
}

// outputPrune prints the outcome of a prune or a prune plan.
func outputPrune(cmd *cobra.Command, result *curator.PruneResult) error {
	if outputJSON {
		return outputAsJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	if result.DryRun {
		if len(result.Selected) == 0 {
			printMuted(out, "Nothing to prune at threshold %.1f.", result.Threshold)
			return nil
		}
		printInfo(out, "Would prune %d seed(s) at threshold %.1f:", len(result.Selected), result.Threshold)
		for _, id := range result.Selected {
			fmt.Fprintf(out, "  - %s\n", id)
		}
		fmt.Fprintln(out)
		printMuted(out, "Dry-run complete. No changes made.")
		return nil
	}

	if result.Pruned == 0 {
		printMuted(out, "Nothing to prune at threshold %.1f.", result.Threshold)
		return nil
	}
	printSuccess(out, "Pruned %d seed(s) at threshold %.1f", result.Pruned, result.Threshold)
	return nil
}

// outputOverspecific prints flagged seeds and their proposed rewrites.
func outputOverspecific(cmd *cobra.Command, entries []curator.OverspecificEntry) error {
	if outputJSON {
		return outputAsJSON(cmd, entries)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		printSuccess(out, "No context-bound seeds found.")
		return nil
	}

	fixable := 0
	for _, e := range entries {
		action := "deactivate"
		if e.Fixable {
			action = "rewrite"
			fixable++
		}
		fmt.Fprintf(out, "[%s] %s (%s)\n", shortID(e.ID), e.Emotion, action)
		fmt.Fprintf(out, "    %s\n", e.Response)
		if e.Fixable {
			fmt.Fprintf(out, "    → %s\n", e.ProposedText)
		}
		fmt.Fprintln(out)
	}
	printInfo(out, "%d flagged: %d fixable, %d to deactivate", len(entries), fixable, len(entries)-fixable)
	printMuted(out, "Run with --apply to persist.")
	return nil
}

// outputSweep prints an overspecificity sweep report.
func outputSweep(cmd *cobra.Command, report *curator.OverspecificityReport) error {
	if outputJSON {
		return outputAsJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	printField(out, "Scanned", report.TotalScanned)
	printField(out, "Overspecific", report.OverspecificFound)
	printField(out, "Fixed", report.Fixed)
	printField(out, "Deactivated", report.Deactivated)
	outputErrorList(out, report.Errors)

	fmt.Fprintln(out)
	if len(report.Errors) > 0 {
		printWarning(out, "Sweep finished with %d error(s).", len(report.Errors))
	} else {
		printSuccess(out, "Sweep complete.")
	}
	return nil
}

// outputInsights renders mined patterns as a markdown report.
func outputInsights(cmd *cobra.Command, insights *curator.LearningInsights) error {
	if outputJSON {
		return outputAsJSON(cmd, insights)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(insightsMarkdown(insights)))
	return nil
}

func insightsMarkdown(insights *curator.LearningInsights) string {
	var b strings.Builder
	b.WriteString("# Learning insights\n\n")
	fmt.Fprintf(&b, "- **Decisions sampled:** %d\n", insights.Summary.TotalDecisions)
	fmt.Fprintf(&b, "- **API success rate:** %.2f%%\n", insights.Summary.SuccessRate)
	fmt.Fprintf(&b, "- **Average confidence:** %.2f\n\n", insights.Summary.AvgConfidence)

	if len(insights.Patterns) == 0 {
		b.WriteString("_No patterns found in the sampled logs._\n")
		return b.String()
	}

	b.WriteString("## Patterns\n\n")
	for _, p := range insights.Patterns {
		fmt.Fprintf(&b, "### %s\n\n", p.PatternType)
		fmt.Fprintf(&b, "%s\n\n", p.Description)
		fmt.Fprintf(&b, "- frequency: %d, confidence: %.2f\n", p.Frequency, p.Confidence)
		for _, ex := range p.Examples {
			fmt.Fprintf(&b, "- `%s`\n", ex)
		}
		fmt.Fprintf(&b, "\n**Insight:** %s\n\n", p.ActionableInsight)
	}

	if len(insights.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for i, r := range insights.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r)
		}
	}
	return b.String()
}

// outputSafety prints a safety verdict.
func outputSafety(cmd *cobra.Command, v curator.SafetyVerdict) error {
	if outputJSON {
		return outputAsJSON(cmd, v)
	}

	out := cmd.OutOrStdout()
	switch v.Decision {
	case curator.SafetyBlock:
		printError(out, "block (score %.2f)", v.Score)
	case curator.SafetyReview:
		printWarning(out, "review (score %.2f)", v.Score)
	default:
		printSuccess(out, "allow (score %.2f)", v.Score)
	}
	printField(out, "Severity", renderSeverity(v.Severity))
	if len(v.Flags) > 0 {
		printField(out, "Flags", strings.Join(v.Flags, ", "))
	}
	for _, r := range v.Reasons {
		fmt.Fprintf(out, "  - %s\n", r)
	}
	if !v.Verified() {
		printMuted(out, "Unverified: %s", scrubSensitiveData(v.Error))
	}
	return nil
}

// outputBias prints a bias report.
func outputBias(cmd *cobra.Command, r curator.BiasReport) error {
	if outputJSON {
		return outputAsJSON(cmd, r)
	}

	out := cmd.OutOrStdout()
	if r.Detected {
		printWarning(out, "Bias detected: %s", strings.Join(r.Types, ", "))
	} else {
		printSuccess(out, "No bias detected")
	}
	printField(out, "Severity", renderSeverity(r.Severity))
	printField(out, "Confidence", fmt.Sprintf("%.2f", r.Confidence))
	if r.Description != "" {
		printField(out, "Description", r.Description)
	}
	if r.Error != "" {
		printMuted(out, "Unverified: %s", scrubSensitiveData(r.Error))
	}
	return nil
}

// outputErrorList prints up to ten per-item errors.
func outputErrorList(out io.Writer, errs []string) {
	if len(errs) == 0 {
		return
	}
	const maxErrors = 10

	fmt.Fprintln(out)
	printWarning(out, "Errors encountered:")
	for i, e := range errs {
		if i >= maxErrors {
			fmt.Fprintf(out, "  ... and %d more errors\n", len(errs)-maxErrors)
			break
		}
		fmt.Fprintf(out, "  - %s\n", e)
	}
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

func formatLastUsed(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
