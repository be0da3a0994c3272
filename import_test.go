package curator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotFixture = `{
  "version": "1",
  "exported_by": "care-app",
  "seeds": [
    {"id": "s1", "emotion": "sad", "response": "Het is oké om verdrietig te zijn.", "triggers": ["verdriet"], "meta": {"usageCount": 3}},
    {"id": "s2", "emotion": "calm", "response": "Vanavond mag je rusten.", "active": false},
    {"id": "s3", "emotion": "calm", "response": ""},
    {"emotion": "joy", "response": "Wat fijn om te horen!"}
  ],
  "feedback": [
    {"seed_id": "s1", "rating": "like", "created_at": "2026-03-01T10:00:00Z"},
    {"seed_id": "s1", "rating": "meh"}
  ],
  "usage": [
    {"content_id": "s1", "usage_count": 12, "confidence_score": 0.9, "last_used": "2026-03-02T08:00:00Z"}
  ],
  "decisions": [
    {"created_at": "2026-03-01T22:00:00Z", "confidence_score": 0.91, "user_input": "moe", "hybrid_decision": {"emotion": "sad"}}
  ],
  "api_calls": [
    {"created_at": "2026-03-01T22:00:01Z", "success": false, "error_details": "rate_limit_exceeded"},
    {"success": "nope"}
  ]
}`

func TestStore_ImportSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result, err := s.ImportSnapshot(ctx, strings.NewReader(snapshotFixture), false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Seeds)
	assert.Equal(t, 1, result.Feedback)
	assert.Equal(t, 1, result.Usage)
	assert.Equal(t, 1, result.Decisions)
	assert.Equal(t, 1, result.APICalls)
	assert.Len(t, result.Errors, 3)

	s1, err := s.Seed(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, s1.Active)
	assert.Equal(t, 3, s1.Meta.Usage())

	s2, err := s.Seed(ctx, "s2")
	require.NoError(t, err)
	assert.False(t, s2.Active)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SeedCount)
	assert.Equal(t, 2, stats.ActiveSeeds)
}

func TestStore_ImportSnapshot_SkipsExistingSeeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ImportSnapshot(ctx, strings.NewReader(snapshotFixture), false)
	require.NoError(t, err)
	require.NoError(t, s.UpdateSeedResponse(ctx, "s1", "lokaal aangepast"))

	result, err := s.ImportSnapshot(ctx, strings.NewReader(snapshotFixture), false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Seeds)

	s1, err := s.Seed(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "lokaal aangepast", s1.Response)
}

func TestStore_ImportSnapshot_DryRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result, err := s.ImportSnapshot(ctx, strings.NewReader(snapshotFixture), true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 3, result.Seeds)
	assert.Equal(t, 1, result.Feedback)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SeedCount)
	assert.Equal(t, 0, stats.FeedbackCount)
}

func TestStore_ImportSnapshot_DryRunMatchesApply(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	preview, err := s.ImportSnapshot(ctx, strings.NewReader(snapshotFixture), true)
	require.NoError(t, err)
	applied, err := s.ImportSnapshot(ctx, strings.NewReader(snapshotFixture), false)
	require.NoError(t, err)

	assert.Equal(t, applied.Seeds, preview.Seeds)
	assert.Equal(t, applied.Feedback, preview.Feedback)
	assert.Equal(t, applied.Usage, preview.Usage)
	assert.Equal(t, applied.Decisions, preview.Decisions)
	assert.Equal(t, applied.APICalls, preview.APICalls)
	assert.Equal(t, applied.Errors, preview.Errors)
}

func TestStore_ImportSnapshot_FeedsEngine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ImportSnapshot(ctx, strings.NewReader(snapshotFixture), false)
	require.NoError(t, err)

	profiles, err := NewEngine(s, s).ScanEffectiveness(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, profiles)
	assert.Equal(t, "s1", profiles[0].SeedID)
	assert.Equal(t, 12, profiles[0].TotalUsage)
	assert.Equal(t, 100.0, profiles[0].EffectivenessScore)
}

func TestStore_ImportSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an object", `[1,2]`},
		{"missing version", `{"seeds": []}`},
		{"wrong version", `{"version": "9"}`},
		{"seeds not an array", `{"version": "1", "seeds": {}}`},
		{"truncated", `{"version": "1", "seeds": [{"id": "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			_, err := s.ImportSnapshot(context.Background(), strings.NewReader(tt.input), false)
			assert.Error(t, err)
		})
	}
}
