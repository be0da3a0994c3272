package curator

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// CheckPromptSafety classifies user input. It never fails: when no
// classifier is configured or the classifier errors, it returns an allow
// verdict with score 0 and Error set.
func (e *Engine) CheckPromptSafety(ctx context.Context, text string) SafetyVerdict {
	if e.safety == nil {
		return failOpenSafety(ErrNoClassifier)
	}

	raw, err := e.safety.ClassifyPrompt(ctx, text)
	if err != nil {
		e.logger.Warn("safety classifier unavailable, failing open", zap.Error(err))
		return failOpenSafety(err)
	}

	v := NormalizeSafety(raw)
	if v.Decision != SafetyAllow {
		e.logger.Info("prompt flagged",
			zap.String("decision", string(v.Decision)),
			zap.Float64("score", v.Score),
			zap.Strings("flags", v.Flags))
	}
	return v
}

func failOpenSafety(err error) SafetyVerdict {
	return SafetyVerdict{
		Decision: SafetyAllow,
		Score:    0,
		Flags:    []string{},
		Severity: SeverityLow,
		Reasons:  []string{},
		Error:    fmt.Sprintf("safety check unavailable: %v", err),
	}
}

// NormalizeSafety maps a raw classifier payload to a verdict, replacing each
// missing or malformed field with its safest default.
func NormalizeSafety(raw *RawSafetyResponse) SafetyVerdict {
	v := SafetyVerdict{
		Decision: SafetyAllow,
		Flags:    []string{},
		Severity: SeverityLow,
		Reasons:  []string{},
	}
	if raw == nil {
		return v
	}

	switch d := SafetyDecision(rawString(raw.Decision)); d {
	case SafetyAllow, SafetyReview, SafetyBlock:
		v.Decision = d
	}

	if f, ok := rawFloat(raw.Score); ok {
		v.Score = clamp(f, 0, 1)
	}

	switch s := Severity(rawString(raw.Severity)); s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		v.Severity = s
	}

	v.Flags = rawStrings(raw.Flags)
	v.Reasons = rawStrings(raw.Reasons)
	return v
}

func rawString(msg json.RawMessage) string {
	var s string
	if len(msg) == 0 || json.Unmarshal(msg, &s) != nil {
		return ""
	}
	return s
}

func rawFloat(msg json.RawMessage) (float64, bool) {
	var f float64
	if len(msg) == 0 || json.Unmarshal(msg, &f) != nil {
		return 0, false
	}
	return f, true
}

func rawBool(msg json.RawMessage) bool {
	var b bool
	if len(msg) == 0 || json.Unmarshal(msg, &b) != nil {
		return false
	}
	return b
}

// rawStrings decodes a JSON array and keeps its string elements, dropping
// nulls and other types. Anything other than an array yields an empty slice.
func rawStrings(msg json.RawMessage) []string {
	var items []json.RawMessage
	if len(msg) == 0 || json.Unmarshal(msg, &items) != nil {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s *string
		if json.Unmarshal(item, &s) == nil && s != nil {
			out = append(out, *s)
		}
	}
	return out
}
