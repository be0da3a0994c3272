package curator

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestEffectivenessScore_AllLikesHighUsageClampsTo100(t *testing.T) {
	// 100 (ratio) + 10 (usage > 10) + 10 (confidence > 0.8) = 120
	assert.Equal(t, 100.0, EffectivenessScore(10, 0, 12, 0.85))
}

func TestEffectivenessScore_NoSignalIsNeutral(t *testing.T) {
	assert.Equal(t, 50.0, EffectivenessScore(0, 0, 0, 0))
}

func TestEffectivenessScore_MostlyDislikes(t *testing.T) {
	// 20 (ratio) + 10 (usage > 10) - 20 (negative > positive)
	assert.Equal(t, 10.0, EffectivenessScore(2, 8, 20, 0.5))
}

func TestEffectivenessScore_Boosts(t *testing.T) {
	tests := []struct {
		name       string
		pos, neg   int
		usage      int
		confidence float64
		want       float64
	}{
		{"usage exactly 10 gets no boost", 1, 1, 10, 0, 50},
		{"usage 11", 1, 1, 11, 0, 60},
		{"usage 51 gets both boosts", 1, 1, 51, 0, 75},
		{"confidence exactly 0.8 gets no boost", 1, 1, 0, 0.8, 50},
		{"floor at zero", 0, 5, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectivenessScore(tt.pos, tt.neg, tt.usage, tt.confidence))
		})
	}
}

func TestEffectivenessScore_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		pos := rng.Intn(200)
		neg := rng.Intn(200)
		usage := rng.Intn(500)
		conf := rng.Float64()
		score := EffectivenessScore(pos, neg, usage, conf)
		require.GreaterOrEqual(t, score, 0.0, "pos=%d neg=%d usage=%d conf=%f", pos, neg, usage, conf)
		require.LessOrEqual(t, score, 100.0, "pos=%d neg=%d usage=%d conf=%f", pos, neg, usage, conf)
	}
}

func TestFeedbackTrend_StableBelowThreeRecords(t *testing.T) {
	for n := 0; n < TrendMinFeedback; n++ {
		assert.Equal(t, TrendStable, FeedbackTrend(feedbackN("s", RatingLike, n, t0)))
	}
}

func TestFeedbackTrend(t *testing.T) {
	dislikesThenLikes := append(feedbackN("s", RatingDislike, 3, t0), feedbackN("s", RatingLike, 3, t0.Add(time.Hour))...)
	likesThenDislikes := append(feedbackN("s", RatingLike, 3, t0), feedbackN("s", RatingDislike, 3, t0.Add(time.Hour))...)

	tests := []struct {
		name     string
		feedback []FeedbackRecord
		want     Trend
	}{
		{"improving", dislikesThenLikes, TrendImproving},
		{"declining", likesThenDislikes, TrendDeclining},
		{"flat", feedbackN("s", RatingLike, 6, t0), TrendStable},
		{"three likes and nothing before", feedbackN("s", RatingLike, 3, t0), TrendImproving},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FeedbackTrend(tt.feedback))
		})
	}
}

func TestFeedbackTrend_IgnoresUnknownRatings(t *testing.T) {
	fb := append(feedbackN("s", RatingLike, 3, t0), feedbackN("s", Rating("meh"), 3, t0.Add(time.Hour))...)
	assert.Equal(t, TrendImproving, FeedbackTrend(fb))

	mixed := []FeedbackRecord{
		{SeedID: "s", Rating: "meh", CreatedAt: t0},
		{SeedID: "s", Rating: "", CreatedAt: t0.Add(time.Minute)},
		{SeedID: "s", Rating: RatingLike, CreatedAt: t0.Add(2 * time.Minute)},
	}
	assert.Equal(t, TrendStable, FeedbackTrend(mixed))

	profiles := ScoreSeeds(Snapshot{Seeds: []Seed{seed("s", "rustig ademen helpt")}, Feedback: mixed})
	require.Len(t, profiles, 1)
	assert.Equal(t, 1, profiles[0].PositiveFeedback)
	assert.Equal(t, 0, profiles[0].NegativeFeedback)
	assert.Equal(t, TrendStable, profiles[0].Trend)
}

func TestFeedbackTrend_IgnoresInputOrder(t *testing.T) {
	fb := append(feedbackN("s", RatingLike, 3, t0.Add(time.Hour)), feedbackN("s", RatingDislike, 3, t0)...)
	reversed := make([]FeedbackRecord, len(fb))
	for i := range fb {
		reversed[len(fb)-1-i] = fb[i]
	}
	assert.Equal(t, FeedbackTrend(fb), FeedbackTrend(reversed))
}

func TestScoreSeeds_UsesLedgerOverMeta(t *testing.T) {
	s := seed("a", "rustig ademen helpt")
	s.Meta = SeedMeta{UsageCount: intPtr(3), Confidence: floatPtr(0.1)}
	last := t0.Add(48 * time.Hour)

	profiles := ScoreSeeds(Snapshot{
		Seeds:    []Seed{s},
		Feedback: feedbackN("a", RatingLike, 10, t0),
		Usage: []UsageStat{
			{ContentID: "a", UsageCount: 5, ConfidenceScore: 0.9, LastUsed: timePtr(t0)},
			{ContentID: "a", UsageCount: 7, ConfidenceScore: 0.8, LastUsed: timePtr(last)},
		},
	})

	require.Len(t, profiles, 1)
	p := profiles[0]
	assert.Equal(t, 12, p.TotalUsage)
	assert.InDelta(t, 0.85, p.AvgConfidence, 1e-9)
	assert.Equal(t, 100.0, p.EffectivenessScore)
	require.NotNil(t, p.LastUsed)
	assert.True(t, p.LastUsed.Equal(last))
}

func TestScoreSeeds_FallsBackToMeta(t *testing.T) {
	s := seed("a", "rustig ademen helpt")
	s.Meta = SeedMeta{UsageCount: intPtr(12), Confidence: floatPtr(0.85)}

	profiles := ScoreSeeds(Snapshot{Seeds: []Seed{s}, Feedback: feedbackN("a", RatingLike, 10, t0)})

	require.Len(t, profiles, 1)
	assert.Equal(t, 12, profiles[0].TotalUsage)
	assert.Equal(t, 100.0, profiles[0].EffectivenessScore)
	assert.Nil(t, profiles[0].LastUsed)
}

func TestScoreSeeds_NoSignal(t *testing.T) {
	profiles := ScoreSeeds(Snapshot{Seeds: []Seed{seed("a", "x")}})

	want := []EffectivenessProfile{{
		SeedID:             "a",
		Emotion:            "calm",
		EffectivenessScore: 50,
		Trend:              TrendStable,
	}}
	if diff := cmp.Diff(want, profiles); diff != "" {
		t.Errorf("profiles mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, SelectPrunable(profiles, DefaultPruneThreshold))
}

func TestScoreSeeds_SortedByScoreThenID(t *testing.T) {
	snap := Snapshot{
		Seeds: []Seed{seed("c", "x"), seed("b", "x"), seed("a", "x")},
		Feedback: append(
			feedbackN("c", RatingLike, 4, t0),
			feedbackN("b", RatingDislike, 4, t0)...,
		),
	}

	profiles := ScoreSeeds(snap)

	var ids []string
	for _, p := range profiles {
		ids = append(ids, p.SeedID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestScoreSeeds_IgnoresFeedbackForUnknownSeeds(t *testing.T) {
	profiles := ScoreSeeds(Snapshot{
		Seeds:    []Seed{seed("a", "x")},
		Feedback: feedbackN("gone", RatingDislike, 5, t0),
	})
	require.Len(t, profiles, 1)
	assert.Equal(t, 0, profiles[0].NegativeFeedback)
}

func TestEngine_ScanEffectiveness(t *testing.T) {
	k := newMemKnowledge(seed("a", "x"), seed("b", "y"))
	k.feedback = feedbackN("a", RatingLike, 2, t0)
	k.usage = []UsageStat{{ContentID: "b", UsageCount: 20, ConfidenceScore: 0.5}}

	engine, logs := observedEngine(t, k, &memLogs{})
	profiles, err := engine.ScanEffectiveness(context.Background())

	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].SeedID)
	assert.Equal(t, 1, logs.FilterMessage("effectiveness scan complete").Len())
}

func TestEngine_ScanEffectiveness_QueryFailure(t *testing.T) {
	for name, inject := range map[string]func(*memKnowledge){
		"seeds":    func(k *memKnowledge) { k.failSeeds = errBoom },
		"feedback": func(k *memKnowledge) { k.failFeedback = errBoom },
		"usage":    func(k *memKnowledge) { k.failUsage = errBoom },
	} {
		t.Run(name, func(t *testing.T) {
			k := newMemKnowledge(seed("a", "x"))
			inject(k)
			engine, logs := observedEngine(t, k, &memLogs{})

			profiles, err := engine.ScanEffectiveness(context.Background())

			require.Error(t, err)
			assert.NotNil(t, profiles)
			assert.Empty(t, profiles)

			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.ErrorIs(t, err, errBoom)

			failures := logs.FilterLevelExact(zapcore.ErrorLevel).All()
			require.Len(t, failures, 1)
			assert.Equal(t, "effectiveness scan failed", failures[0].Message)
		})
	}
}
