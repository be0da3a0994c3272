package curator

import (
	"context"
	"encoding/json"
	"math"

	"go.uber.org/zap"
)

// PruneResult reports which seeds a prune selected and how many changed.
type PruneResult struct {
	Threshold float64  `json:"threshold"`
	Selected  []string `json:"selected"`
	Pruned    int      `json:"pruned"`
	DryRun    bool     `json:"dry_run"`
}

// SelectPrunable returns the IDs of seeds scoring below threshold that have
// been used more than PruneMinUsage times, in profile order.
func SelectPrunable(profiles []EffectivenessProfile, threshold float64) []string {
	var ids []string
	for _, p := range profiles {
		if p.EffectivenessScore < threshold && p.TotalUsage > PruneMinUsage {
			ids = append(ids, p.SeedID)
		}
	}
	return ids
}

// Prune scores the current seed set and deactivates seeds below threshold.
// It returns the number of seeds deactivated.
func (e *Engine) Prune(ctx context.Context, threshold float64) (int, error) {
	if err := validateThreshold(threshold); err != nil {
		return 0, err
	}

	profiles, err := e.ScanEffectiveness(ctx)
	if err != nil {
		return 0, err
	}
	return e.PruneProfiles(ctx, profiles, threshold)
}

// PruneDefault prunes with the engine's configured threshold.
func (e *Engine) PruneDefault(ctx context.Context) (int, error) {
	return e.Prune(ctx, e.pruneThreshold)
}

// PruneProfiles deactivates the prunable seeds among precomputed profiles in
// a single batch. A failed batch write applies nothing and returns 0.
func (e *Engine) PruneProfiles(ctx context.Context, profiles []EffectivenessProfile, threshold float64) (int, error) {
	if err := validateThreshold(threshold); err != nil {
		return 0, err
	}

	ids := SelectPrunable(profiles, threshold)
	if len(ids) == 0 {
		e.logger.Info("prune: nothing to prune", zap.Float64("threshold", threshold))
		return 0, nil
	}

	n, err := e.knowledge.DeactivateSeeds(ctx, ids)
	if err != nil {
		err = queryErr("deactivate seeds", err)
		e.logger.Error("prune failed",
			zap.Float64("threshold", threshold),
			zap.Int("selected", len(ids)),
			zap.Error(err))
		return 0, err
	}

	e.logger.Info("prune complete",
		zap.Float64("threshold", threshold),
		zap.Int("selected", len(ids)),
		zap.Int("pruned", n))

	payload, _ := json.Marshal(PruneResult{Threshold: threshold, Selected: ids, Pruned: n})
	e.reflect(ctx, ReflectionEvent{
		TriggerType:    TriggerPruning,
		Context:        payload,
		LearningImpact: float64(n),
	})
	return n, nil
}

// PlanPrune reports which seeds Prune would deactivate without writing.
func (e *Engine) PlanPrune(ctx context.Context, threshold float64) (*PruneResult, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	profiles, err := e.ScanEffectiveness(ctx)
	if err != nil {
		return &PruneResult{Threshold: threshold, DryRun: true}, err
	}
	return &PruneResult{
		Threshold: threshold,
		Selected:  SelectPrunable(profiles, threshold),
		DryRun:    true,
	}, nil
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < MinScore || threshold > MaxScore {
		return &ValidationError{Field: "threshold", Message: "must be between 0 and 100"}
	}
	return nil
}
