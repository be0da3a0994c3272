package curator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pattern mining thresholds and fixed confidences.
const (
	minFailuresForPattern  = 3
	minSuccessesForPattern = 5
	successConfidenceFloor = 0.8
	conciseInputLength     = 50
	maxPatternExamples     = 3
	topEmotionCount        = 3

	commonFailureConfidence  = 0.9
	successFactorConfidence  = 0.85
	userPreferenceConfidence = 0.75
	temporalConfidence       = 0.8
)

// MinePatterns samples the most recent decision and API collaboration logs
// and derives learning patterns from them. On a load failure it returns
// zeroed insights and a *QueryError, which is also logged.
func (e *Engine) MinePatterns(ctx context.Context) (*LearningInsights, error) {
	var (
		decisions []DecisionLogEntry
		calls     []APICollaborationLogEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := e.logs.RecentDecisions(gctx, e.sampleSize)
		if err != nil {
			return queryErr("load decision log", err)
		}
		decisions = rows
		return nil
	})
	g.Go(func() error {
		rows, err := e.logs.RecentAPICollaborations(gctx, e.sampleSize)
		if err != nil {
			return queryErr("load api collaboration log", err)
		}
		calls = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		e.logger.Error("pattern mining failed", zap.Error(err))
		return emptyInsights(time.Now()), err
	}

	insights := MineLogs(decisions, calls, time.Now())
	e.logger.Info("pattern mining complete",
		zap.Int("decisions", len(decisions)),
		zap.Int("api_calls", len(calls)),
		zap.Int("patterns", len(insights.Patterns)))

	payload, _ := json.Marshal(insights.Summary)
	e.reflect(ctx, ReflectionEvent{
		TriggerType:    TriggerPatternMining,
		Context:        payload,
		LearningImpact: meanPatternConfidence(insights.Patterns),
	})
	return insights, nil
}

// MineLogs derives learning patterns from log samples ordered newest first.
func MineLogs(decisions []DecisionLogEntry, calls []APICollaborationLogEntry, now time.Time) *LearningInsights {
	insights := emptyInsights(now)

	if p, rec, ok := commonFailure(calls); ok {
		insights.Patterns = append(insights.Patterns, p)
		insights.Recommendations = append(insights.Recommendations, rec)
	}
	if p, rec, ok := successFactor(decisions); ok {
		insights.Patterns = append(insights.Patterns, p)
		insights.Recommendations = append(insights.Recommendations, rec)
	}
	if p, rec, ok := userPreference(decisions); ok {
		insights.Patterns = append(insights.Patterns, p)
		insights.Recommendations = append(insights.Recommendations, rec)
	}
	if p, ok := temporalPattern(decisions); ok {
		insights.Patterns = append(insights.Patterns, p)
	}

	insights.Summary = summarize(decisions, calls)
	return insights
}

func emptyInsights(now time.Time) *LearningInsights {
	return &LearningInsights{
		Patterns:        []LearningPattern{},
		Recommendations: []string{},
		GeneratedAt:     now.UTC(),
	}
}

func commonFailure(calls []APICollaborationLogEntry) (LearningPattern, string, bool) {
	var failures []string
	for _, c := range calls {
		if c.Success {
			continue
		}
		msg := strings.TrimSpace(c.ErrorDetails)
		if msg == "" {
			msg = "unknown error"
		}
		failures = append(failures, msg)
	}
	if len(failures) <= minFailuresForPattern {
		return LearningPattern{}, "", false
	}

	// Ties go to the message seen first, i.e. the most recent.
	counts := make(map[string]int)
	for _, msg := range failures {
		counts[msg]++
	}
	modal := failures[0]
	for _, msg := range failures[1:] {
		if counts[msg] > counts[modal] {
			modal = msg
		}
	}

	p := LearningPattern{
		PatternType:       PatternCommonFailure,
		Description:       fmt.Sprintf("Recurring API failure: %s", modal),
		Frequency:         counts[modal],
		Confidence:        commonFailureConfidence,
		Examples:          head(failures, maxPatternExamples),
		ActionableInsight: fmt.Sprintf("address recurring error: %s", modal),
	}
	rec := fmt.Sprintf("Investigate and fix the recurring API error %q (%d of %d failures)",
		modal, counts[modal], len(failures))
	return p, rec, true
}

type emotionCount struct {
	emotion string
	count   int
}

func successFactor(decisions []DecisionLogEntry) (LearningPattern, string, bool) {
	counts := make(map[string]int)
	successes := 0
	for _, d := range decisions {
		if d.ConfidenceScore <= successConfidenceFloor {
			continue
		}
		successes++
		emotion := strings.TrimSpace(d.HybridDecision.Emotion)
		if emotion == "" {
			emotion = "unknown"
		}
		counts[emotion]++
	}
	if successes <= minSuccessesForPattern {
		return LearningPattern{}, "", false
	}

	ranked := make([]emotionCount, 0, len(counts))
	for emotion, n := range counts {
		ranked = append(ranked, emotionCount{emotion, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].emotion < ranked[j].emotion
	})
	if len(ranked) > topEmotionCount {
		ranked = ranked[:topEmotionCount]
	}

	freq := 0
	examples := make([]string, 0, len(ranked))
	for _, ec := range ranked {
		freq += ec.count
		examples = append(examples, fmt.Sprintf("%s: %d successes", ec.emotion, ec.count))
	}
	top := ranked[0].emotion

	p := LearningPattern{
		PatternType:       PatternSuccessFactor,
		Description:       fmt.Sprintf("High-confidence decisions cluster around %s", top),
		Frequency:         freq,
		Confidence:        successFactorConfidence,
		Examples:          examples,
		ActionableInsight: fmt.Sprintf("expand seed coverage for %s", top),
	}
	rec := fmt.Sprintf("Add more seeds for %s, the emotion with the most confident matches", top)
	return p, rec, true
}

func userPreference(decisions []DecisionLogEntry) (LearningPattern, string, bool) {
	if len(decisions) == 0 {
		return LearningPattern{}, "", false
	}

	total, short := 0, 0
	for _, d := range decisions {
		n := utf8.RuneCountInString(d.UserInput)
		total += n
		if n < conciseInputLength {
			short++
		}
	}
	mean := float64(total) / float64(len(decisions))
	if mean >= conciseInputLength {
		return LearningPattern{}, "", false
	}

	p := LearningPattern{
		PatternType:       PatternUserPreference,
		Description:       "Users write short messages",
		Frequency:         short,
		Confidence:        userPreferenceConfidence,
		Examples:          []string{fmt.Sprintf("average input length: %.0f characters", mean)},
		ActionableInsight: "keep responses concise to match user input style",
	}
	return p, "Prefer short, direct responses; most inputs are under 50 characters", true
}

func temporalPattern(decisions []DecisionLogEntry) (LearningPattern, bool) {
	if len(decisions) == 0 {
		return LearningPattern{}, false
	}

	var buckets [24]int
	for _, d := range decisions {
		buckets[d.CreatedAt.UTC().Hour()]++
	}

	peak := 0
	for h := 1; h < len(buckets); h++ {
		if buckets[h] > buckets[peak] {
			peak = h
		}
	}

	return LearningPattern{
		PatternType:       PatternTemporalPattern,
		Description:       fmt.Sprintf("Peak activity between %02d:00 and %02d:00 UTC", peak, (peak+1)%24),
		Frequency:         buckets[peak],
		Confidence:        temporalConfidence,
		Examples:          []string{fmt.Sprintf("%d decisions at hour %02d", buckets[peak], peak)},
		ActionableInsight: fmt.Sprintf("schedule maintenance outside %02d:00 UTC", peak),
	}, true
}

func summarize(decisions []DecisionLogEntry, calls []APICollaborationLogEntry) InsightSummary {
	s := InsightSummary{TotalDecisions: len(decisions)}

	if len(calls) > 0 {
		ok := 0
		for _, c := range calls {
			if c.Success {
				ok++
			}
		}
		s.SuccessRate = round2(100 * float64(ok) / float64(len(calls)))
	}

	if len(decisions) > 0 {
		var sum float64
		for _, d := range decisions {
			sum += d.ConfidenceScore
		}
		s.AvgConfidence = round2(sum / float64(len(decisions)))
	}
	return s
}

func meanPatternConfidence(patterns []LearningPattern) float64 {
	if len(patterns) == 0 {
		return 0
	}
	var sum float64
	for _, p := range patterns {
		sum += p.Confidence
	}
	return round2(sum / float64(len(patterns)))
}

func head(s []string, n int) []string {
	if len(s) < n {
		n = len(s)
	}
	out := make([]string, n)
	copy(out, s[:n])
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
