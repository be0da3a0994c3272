package curator

import (
	"encoding/json"
	"time"
)

// Seed is a stored candidate response template for an emotion and trigger set.
type Seed struct {
	ID        string    `json:"id"`
	Emotion   string    `json:"emotion"`
	Response  string    `json:"response"`
	Triggers  []string  `json:"triggers"`
	Weight    float64   `json:"weight"`
	Meta      SeedMeta  `json:"meta"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeedMeta holds the optional bookkeeping values stored alongside a seed.
// Absent fields fall back to the defaults documented on each accessor.
type SeedMeta struct {
	UsageCount *int     `json:"usageCount,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Usage returns the recorded usage count, or 0.
func (m SeedMeta) Usage() int {
	if m.UsageCount == nil {
		return 0
	}
	return *m.UsageCount
}

// WeightOr returns the recorded weight, or DefaultSeedWeight.
func (m SeedMeta) WeightOr() float64 {
	if m.Weight == nil {
		return DefaultSeedWeight
	}
	return *m.Weight
}

// ConfidenceOr returns the recorded confidence, or 0.
func (m SeedMeta) ConfidenceOr() float64 {
	if m.Confidence == nil {
		return 0
	}
	return *m.Confidence
}

// Rating is the user's verdict on a served seed.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
)

// IsValid reports whether r is a known rating.
func (r Rating) IsValid() bool {
	return r == RatingLike || r == RatingDislike
}

// FeedbackRecord is a single append-only rating of a seed.
type FeedbackRecord struct {
	SeedID    string    `json:"seed_id"`
	Rating    Rating    `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageStat is a row of the knowledge-usage ledger.
type UsageStat struct {
	ContentID       string     `json:"content_id"`
	UsageCount      int        `json:"usage_count"`
	ConfidenceScore float64    `json:"confidence_score"`
	LastUsed        *time.Time `json:"last_used,omitempty"`
}

// Trend classifies a seed's recent feedback trajectory.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// EffectivenessProfile is the derived health of a single seed.
type EffectivenessProfile struct {
	SeedID             string     `json:"seed_id"`
	Emotion            string     `json:"emotion"`
	TotalUsage         int        `json:"total_usage"`
	PositiveFeedback   int        `json:"positive_feedback"`
	NegativeFeedback   int        `json:"negative_feedback"`
	EffectivenessScore float64    `json:"effectiveness_score"`
	AvgConfidence      float64    `json:"avg_confidence"`
	LastUsed           *time.Time `json:"last_used,omitempty"`
	Trend              Trend      `json:"trend"`
}

// HybridDecision is the routing decision recorded by the live request path.
type HybridDecision struct {
	Emotion  string `json:"emotion"`
	Strategy string `json:"strategy,omitempty"`
	SeedID   string `json:"seed_id,omitempty"`
}

// DecisionLogEntry is one row of the decision log.
type DecisionLogEntry struct {
	ID              int64          `json:"id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ConfidenceScore float64        `json:"confidence_score"`
	UserInput       string         `json:"user_input"`
	HybridDecision  HybridDecision `json:"hybrid_decision"`
}

// APICollaborationLogEntry is one row of the API collaboration log.
type APICollaborationLogEntry struct {
	ID           int64     `json:"id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Success      bool      `json:"success"`
	ErrorDetails string    `json:"error_details,omitempty"`
}

// PatternType identifies the kind of mined learning pattern.
type PatternType string

const (
	PatternCommonFailure   PatternType = "common_failure"
	PatternSuccessFactor   PatternType = "success_factor"
	PatternUserPreference  PatternType = "user_preference"
	PatternTemporalPattern PatternType = "temporal_pattern"
)

// LearningPattern is a recurring structural signal mined from the logs.
type LearningPattern struct {
	PatternType       PatternType `json:"pattern_type"`
	Description       string      `json:"description"`
	Frequency         int         `json:"frequency"`
	Confidence        float64     `json:"confidence"`
	Examples          []string    `json:"examples"`
	ActionableInsight string      `json:"actionable_insight"`
}

// InsightSummary aggregates the sampled logs.
type InsightSummary struct {
	TotalDecisions int     `json:"total_decisions"`
	SuccessRate    float64 `json:"success_rate"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// LearningInsights is the output of a pattern mining run.
type LearningInsights struct {
	Patterns        []LearningPattern `json:"patterns"`
	Recommendations []string          `json:"recommendations"`
	Summary         InsightSummary    `json:"summary"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// SafetyDecision is the gate outcome for a user prompt.
type SafetyDecision string

const (
	SafetyAllow  SafetyDecision = "allow"
	SafetyReview SafetyDecision = "review"
	SafetyBlock  SafetyDecision = "block"
)

// Severity is ordered low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the position of s in the severity order, or -1 if unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// MaxSeverity returns the highest of the given severities, or low if none are known.
func MaxSeverity(levels ...Severity) Severity {
	max := SeverityLow
	for _, s := range levels {
		if s.Rank() > max.Rank() {
			max = s
		}
	}
	return max
}

// SafetyVerdict is the normalized result of a prompt safety check.
// Error is set when the verdict is a fail-open default rather than a classification.
type SafetyVerdict struct {
	Decision SafetyDecision `json:"decision"`
	Score    float64        `json:"score"`
	Flags    []string       `json:"flags"`
	Severity Severity       `json:"severity"`
	Reasons  []string       `json:"reasons"`
	Error    string         `json:"error,omitempty"`
}

// Verified reports whether the verdict came from the classifier.
func (v SafetyVerdict) Verified() bool {
	return v.Error == ""
}

// BiasReport is the result of a response bias check.
type BiasReport struct {
	Detected    bool     `json:"detected"`
	Types       []string `json:"types"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Error       string   `json:"error,omitempty"`
}

// RawSafetyResponse is the classifier payload before normalization.
// Fields stay raw so that malformed values can be defaulted individually.
type RawSafetyResponse struct {
	Decision json.RawMessage `json:"decision,omitempty"`
	Score    json.RawMessage `json:"score,omitempty"`
	Flags    json.RawMessage `json:"flags,omitempty"`
	Severity json.RawMessage `json:"severity,omitempty"`
	Reasons  json.RawMessage `json:"reasons,omitempty"`
}

// RawBiasResponse is the bias classifier payload before normalization.
type RawBiasResponse struct {
	Detected    json.RawMessage `json:"detected,omitempty"`
	Types       json.RawMessage `json:"types,omitempty"`
	Severity    json.RawMessage `json:"severity,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
	Confidence  json.RawMessage `json:"confidence,omitempty"`
}

// ReflectionEvent summarizes a maintenance or mining run in the audit log.
type ReflectionEvent struct {
	ID             string          `json:"id"`
	TriggerType    string          `json:"trigger_type"`
	Context        json.RawMessage `json:"context,omitempty"`
	SeedsGenerated int             `json:"seeds_generated"`
	LearningImpact float64         `json:"learning_impact"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Reflection trigger types.
const (
	TriggerPruning       = "pruning"
	TriggerOverspecific  = "overspecificity_sweep"
	TriggerPatternMining = "pattern_mining"
)

// OverspecificEntry is a flagged seed together with its proposed rewrite.
type OverspecificEntry struct {
	ID           string   `json:"id"`
	Emotion      string   `json:"emotion"`
	Response     string   `json:"response"`
	Triggers     []string `json:"triggers"`
	ProposedText string   `json:"proposed_text,omitempty"`
	Fixable      bool     `json:"fixable"`
}

// OverspecificityReport summarizes an overspecificity sweep.
type OverspecificityReport struct {
	TotalScanned      int      `json:"total_scanned"`
	OverspecificFound int      `json:"overspecific_found"`
	Fixed             int      `json:"fixed"`
	Deactivated       int      `json:"deactivated"`
	Errors            []string `json:"errors"`
	DryRun            bool     `json:"dry_run"`
	Error             string   `json:"error,omitempty"`
}

// StoreStats contains statistics about the knowledge store.
type StoreStats struct {
	SeedCount       int    `json:"seed_count"`
	ActiveSeeds     int    `json:"active_seeds"`
	FeedbackCount   int    `json:"feedback_count"`
	UsageEntries    int    `json:"usage_entries"`
	DecisionCount   int    `json:"decision_count"`
	APICallCount    int    `json:"api_call_count"`
	ReflectionCount int    `json:"reflection_count"`
	SchemaVersion   string `json:"schema_version"`
}

// HealthStatus represents the health of the engine and its collaborators.
type HealthStatus struct {
	Healthy          bool   `json:"healthy"`
	StoreOK          bool   `json:"store_ok"`
	SafetyConfigured bool   `json:"safety_configured"`
	BiasConfigured   bool   `json:"bias_configured"`
	Error            string `json:"error,omitempty"`
}

// Scoring and pruning constants.
const (
	DefaultPruneThreshold = 20.0
	PruneMinUsage         = 5
	NeutralScore          = 50.0
	MinScore              = 0.0
	MaxScore              = 100.0
	DefaultSeedWeight     = 1.0
	DefaultSampleSize     = 100
	TrendWindow           = 3
	TrendMinFeedback      = 3
)
