package curator

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Snapshot is the input to effectiveness scoring.
type Snapshot struct {
	Seeds    []Seed
	Feedback []FeedbackRecord
	Usage    []UsageStat
}

// ScanEffectiveness loads the active seeds, feedback and usage ledger and
// scores every seed. On a load failure it returns an empty slice and a
// *QueryError, which is also logged.
func (e *Engine) ScanEffectiveness(ctx context.Context) ([]EffectivenessProfile, error) {
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		e.logger.Error("effectiveness scan failed", zap.Error(err))
		return []EffectivenessProfile{}, err
	}

	profiles := ScoreSeeds(snap)
	e.logger.Info("effectiveness scan complete",
		zap.Int("seeds", len(snap.Seeds)),
		zap.Int("feedback", len(snap.Feedback)),
		zap.Int("usage_entries", len(snap.Usage)))
	return profiles, nil
}

func (e *Engine) loadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		seeds, err := e.knowledge.ActiveSeeds(gctx)
		if err != nil {
			return queryErr("load active seeds", err)
		}
		snap.Seeds = seeds
		return nil
	})
	g.Go(func() error {
		feedback, err := e.knowledge.Feedback(gctx)
		if err != nil {
			return queryErr("load feedback", err)
		}
		snap.Feedback = feedback
		return nil
	})
	g.Go(func() error {
		usage, err := e.knowledge.UsageStats(gctx)
		if err != nil {
			return queryErr("load usage ledger", err)
		}
		snap.Usage = usage
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// usageSummary aggregates the ledger rows of one seed.
type usageSummary struct {
	count         int
	confidenceSum float64
	rows          int
	lastUsed      *time.Time
}

// ScoreSeeds computes an EffectivenessProfile for every seed in the snapshot,
// sorted by score descending. Ties are broken by seed ID.
func ScoreSeeds(snap Snapshot) []EffectivenessProfile {
	feedbackBySeed := make(map[string][]FeedbackRecord)
	for _, fb := range snap.Feedback {
		feedbackBySeed[fb.SeedID] = append(feedbackBySeed[fb.SeedID], fb)
	}

	usageBySeed := make(map[string]*usageSummary)
	for _, u := range snap.Usage {
		sum, ok := usageBySeed[u.ContentID]
		if !ok {
			sum = &usageSummary{}
			usageBySeed[u.ContentID] = sum
		}
		sum.count += u.UsageCount
		sum.confidenceSum += u.ConfidenceScore
		sum.rows++
		if u.LastUsed != nil && (sum.lastUsed == nil || u.LastUsed.After(*sum.lastUsed)) {
			t := *u.LastUsed
			sum.lastUsed = &t
		}
	}

	profiles := make([]EffectivenessProfile, 0, len(snap.Seeds))
	for _, seed := range snap.Seeds {
		profiles = append(profiles, scoreSeed(seed, feedbackBySeed[seed.ID], usageBySeed[seed.ID]))
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].EffectivenessScore != profiles[j].EffectivenessScore {
			return profiles[i].EffectivenessScore > profiles[j].EffectivenessScore
		}
		return profiles[i].SeedID < profiles[j].SeedID
	})
	return profiles
}

func scoreSeed(seed Seed, feedback []FeedbackRecord, usage *usageSummary) EffectivenessProfile {
	var positive, negative int
	for _, fb := range feedback {
		switch fb.Rating {
		case RatingLike:
			positive++
		case RatingDislike:
			negative++
		}
	}

	// Seeds without ledger rows fall back to their stored meta values.
	totalUsage := seed.Meta.Usage()
	avgConfidence := seed.Meta.ConfidenceOr()
	var lastUsed *time.Time
	if usage != nil {
		totalUsage = usage.count
		avgConfidence = usage.confidenceSum / float64(usage.rows)
		lastUsed = usage.lastUsed
	}

	return EffectivenessProfile{
		SeedID:             seed.ID,
		Emotion:            seed.Emotion,
		TotalUsage:         totalUsage,
		PositiveFeedback:   positive,
		NegativeFeedback:   negative,
		EffectivenessScore: EffectivenessScore(positive, negative, totalUsage, avgConfidence),
		AvgConfidence:      avgConfidence,
		LastUsed:           lastUsed,
		Trend:              FeedbackTrend(feedback),
	}
}

// EffectivenessScore combines the like ratio with usage and confidence
// boosts and clamps the result to [0, 100].
func EffectivenessScore(positive, negative, usage int, avgConfidence float64) float64 {
	total := positive + negative

	score := NeutralScore
	if total > 0 {
		score = 100 * float64(positive) / float64(total)
	}

	if usage > 10 {
		score += 10
	}
	if usage > 50 {
		score += 15
	}
	if avgConfidence > 0.8 {
		score += 10
	}
	if negative > positive {
		score -= 20
	}

	return clamp(score, MinScore, MaxScore)
}

// FeedbackTrend compares likes among the three most recent rated records
// with likes among the three before them. Records with an unknown rating
// are ignored; fewer than three rated records is stable.
func FeedbackTrend(feedback []FeedbackRecord) Trend {
	ordered := make([]FeedbackRecord, 0, len(feedback))
	for _, fb := range feedback {
		if fb.Rating.IsValid() {
			ordered = append(ordered, fb)
		}
	}
	if len(ordered) < TrendMinFeedback {
		return TrendStable
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	recent := countLikes(window(ordered, 0, TrendWindow))
	previous := countLikes(window(ordered, TrendWindow, 2*TrendWindow))

	switch {
	case recent > previous:
		return TrendImproving
	case recent < previous:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func window(records []FeedbackRecord, from, to int) []FeedbackRecord {
	if from >= len(records) {
		return nil
	}
	if to > len(records) {
		to = len(records)
	}
	return records[from:to]
}

func countLikes(records []FeedbackRecord) int {
	n := 0
	for _, r := range records {
		if r.Rating == RatingLike {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
