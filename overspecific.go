package curator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MinFixedLength is the rune length a rewritten response must exceed to be kept.
const MinFixedLength = 20

// Placeholders substituted into generalized responses.
const (
	PlaceholderTemporalRef = "{temporalRef}"
	PlaceholderTimeOfDay   = "{timeOfDay}"
)

type repairRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// repairRules run in order. Qualifiers are stripped before the post-sleep
// rule so "vooral na een goede nachtrust" collapses to "nu".
var repairRules = []repairRule{
	{regexp.MustCompile(`(?i)\b(vannacht|gisteren|vanochtend|vanmiddag|vanavond)\b`), PlaceholderTemporalRef},
	{regexp.MustCompile(`(?i)\b(vooral|specifiek|juist)\s+(na)\b`), "$2"},
	{regexp.MustCompile(`(?i)\bna\s+(een\s+goede\s+nachtrust|het\s+slapen)\b`), "nu"},
	{regexp.MustCompile(`(?i)\bdeze\s+(ochtend|middag|avond)\b`), PlaceholderTimeOfDay},
}

var (
	multiSpace        = regexp.MustCompile(`\s+`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([,.;:!?])`)
	temporalTriggerRe = regexp.MustCompile(`(?i)\b(vannacht|gisteren|vanochtend|vanmiddag|vanavond|ochtend|middag|avond|nacht)\b`)
)

// GeneralizeResponse applies the repair rules to text and normalizes
// whitespace. The boolean reports whether any rule matched.
func GeneralizeResponse(text string) (string, bool) {
	out := text
	applied := false
	for _, r := range repairRules {
		if r.pattern.MatchString(out) {
			out = r.pattern.ReplaceAllString(out, r.replacement)
			applied = true
		}
	}

	out = multiSpace.ReplaceAllString(out, " ")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out), applied
}

// IsFixable reports whether a rewrite may replace the original text.
func IsFixable(rewritten string, applied bool) bool {
	return applied && utf8.RuneCountInString(rewritten) > MinFixedLength
}

// ContextBoundPredicate is the default overspecificity check. It flags text
// any repair rule would touch, and seeds triggered by a time-of-day word.
func ContextBoundPredicate(text string, triggers []string) bool {
	for _, r := range repairRules {
		if r.pattern.MatchString(text) {
			return true
		}
	}
	for _, t := range triggers {
		if temporalTriggerRe.MatchString(t) {
			return true
		}
	}
	return false
}

// SweepOptions controls SweepOverspecific.
type SweepOptions struct {
	// DryRun counts flagged seeds without writing.
	DryRun bool
}

// FindOverspecific returns flagged active seeds with their proposed rewrite.
// It never writes. A nil predicate uses ContextBoundPredicate.
func (e *Engine) FindOverspecific(ctx context.Context, pred OverspecificPredicate) ([]OverspecificEntry, error) {
	if pred == nil {
		pred = ContextBoundPredicate
	}

	seeds, err := e.knowledge.ActiveSeeds(ctx)
	if err != nil {
		err = queryErr("load active seeds", err)
		e.logger.Error("overspecificity scan failed", zap.Error(err))
		return []OverspecificEntry{}, err
	}
	return flagSeeds(seeds, pred), nil
}

func flagSeeds(seeds []Seed, pred OverspecificPredicate) []OverspecificEntry {
	entries := []OverspecificEntry{}
	for _, seed := range seeds {
		if !pred(seed.Response, seed.Triggers) {
			continue
		}
		proposed, applied := GeneralizeResponse(seed.Response)
		entry := OverspecificEntry{
			ID:       seed.ID,
			Emotion:  seed.Emotion,
			Response: seed.Response,
			Triggers: seed.Triggers,
			Fixable:  IsFixable(proposed, applied),
		}
		if entry.Fixable {
			entry.ProposedText = proposed
		}
		entries = append(entries, entry)
	}
	return entries
}

// SweepOverspecific repairs or deactivates every flagged active seed.
// The returned report is never nil. A failure to load seeds aborts the sweep
// with report.Error set; per-seed write failures are collected in
// report.Errors and the sweep continues.
func (e *Engine) SweepOverspecific(ctx context.Context, pred OverspecificPredicate, opts SweepOptions) (*OverspecificityReport, error) {
	report := &OverspecificityReport{Errors: []string{}, DryRun: opts.DryRun}

	if pred == nil {
		pred = ContextBoundPredicate
	}

	seeds, err := e.knowledge.ActiveSeeds(ctx)
	if err != nil {
		err = queryErr("load active seeds", err)
		e.logger.Error("overspecificity sweep failed", zap.Error(err))
		report.Error = err.Error()
		return report, err
	}

	entries := flagSeeds(seeds, pred)
	report.TotalScanned = len(seeds)
	report.OverspecificFound = len(entries)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			report.Error = err.Error()
			return report, queryErr("overspecificity sweep", err)
		}

		if entry.Fixable {
			if !opts.DryRun {
				if err := e.knowledge.UpdateSeedResponse(ctx, entry.ID, entry.ProposedText); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("%s: update response: %v", entry.ID, err))
					continue
				}
			}
			report.Fixed++
			continue
		}

		if !opts.DryRun {
			if err := e.knowledge.SetSeedActive(ctx, entry.ID, false); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: deactivate: %v", entry.ID, err))
				continue
			}
		}
		report.Deactivated++
	}

	e.logger.Info("overspecificity sweep complete",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("scanned", report.TotalScanned),
		zap.Int("found", report.OverspecificFound),
		zap.Int("fixed", report.Fixed),
		zap.Int("deactivated", report.Deactivated),
		zap.Int("errors", len(report.Errors)))

	if !opts.DryRun {
		payload, _ := json.Marshal(report)
		e.reflect(ctx, ReflectionEvent{
			TriggerType:    TriggerOverspecific,
			Context:        payload,
			LearningImpact: float64(report.Fixed),
		})
	}
	return report, nil
}

// DeactivateSeed sets a single seed inactive on operator request.
func (e *Engine) DeactivateSeed(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "id", Message: "required"}
	}

	if err := e.knowledge.SetSeedActive(ctx, id, false); err != nil {
		e.logger.Error("deactivate seed failed", zap.String("seed_id", id), zap.Error(err))
		return queryErr("deactivate seed", err)
	}
	e.logger.Info("seed deactivated", zap.String("seed_id", id))
	return nil
}

// DeactivateSeeds sets every listed seed inactive in one batch and returns
// how many changed. An empty or blank id set is rejected before any I/O.
func (e *Engine) DeactivateSeeds(ctx context.Context, ids []string) (int, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return 0, &ValidationError{Field: "ids", Message: ErrEmptyIDSet.Error(), Err: ErrEmptyIDSet}
	}

	n, err := e.knowledge.DeactivateSeeds(ctx, cleaned)
	if err != nil {
		err = queryErr("deactivate seeds", err)
		e.logger.Error("batch deactivation failed", zap.Int("requested", len(cleaned)), zap.Error(err))
		return 0, err
	}
	e.logger.Info("seeds deactivated", zap.Int("requested", len(cleaned)), zap.Int("changed", n))
	return n, nil
}
