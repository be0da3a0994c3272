package curator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Heuristic bias confidences.
const (
	HeuristicMatchConfidence   = 0.65
	HeuristicNoMatchConfidence = 0.90
)

// Bias type labels reported by the heuristic detector.
const (
	BiasGender   = "gender"
	BiasAge      = "age"
	BiasCultural = "cultural"
)

type biasFamily struct {
	label       string
	severity    Severity
	description string
	patterns    []*regexp.Regexp
}

var biasFamilies = []biasFamily{
	{
		label:       BiasGender,
		severity:    SeverityMedium,
		description: "gender stereotyping",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(mannen|vrouwen|jongens|meisjes)\s+(zijn|kunnen|willen|moeten)\s+(meestal|altijd|nooit|vaak|van nature|gewoon)\b`),
			regexp.MustCompile(`(?i)\b(als|voor een)\s+(man|vrouw|jongen|meisje)\s+(hoor|moet|zou)\s+je\b`),
			regexp.MustCompile(`(?i)\b(men|women|boys|girls)\s+(are|can't|cannot|should)\s+(always|never|naturally|usually)\b`),
		},
	},
	{
		label:       BiasAge,
		severity:    SeverityLow,
		description: "age-based assumptions",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(ouderen|jongeren|bejaarden|pubers)\s+(zijn|kunnen|willen|snappen|begrijpen)\s+(meestal|altijd|nooit|vaak|geen|niet)\b`),
			regexp.MustCompile(`(?i)\bop\s+jouw\s+leeftijd\b`),
			regexp.MustCompile(`(?i)\bte\s+(oud|jong)\s+om\b`),
			regexp.MustCompile(`(?i)\b(at your age|too old to|too young to)\b`),
		},
	},
	{
		label:       BiasCultural,
		severity:    SeverityMedium,
		description: "cultural-norm assumptions",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bin\s+jouw\s+cultuur\b`),
			regexp.MustCompile(`(?i)\b(normale|echte)\s+nederlanders\b`),
			regexp.MustCompile(`(?i)\b(mensen|families)\s+zoals\s+jij\b`),
			regexp.MustCompile(`(?i)\b(in your culture|people like you|normal people)\b`),
		},
	},
}

// CheckForBias audits a generated response. Without a configured classifier
// it falls back to DetectBiasHeuristic. A classifier failure fails open to
// detected=false with Error set.
func (e *Engine) CheckForBias(ctx context.Context, userInput, response string) BiasReport {
	if e.bias == nil {
		return DetectBiasHeuristic(response)
	}

	raw, err := e.bias.ClassifyBias(ctx, userInput, response)
	if err != nil {
		e.logger.Warn("bias classifier unavailable, failing open", zap.Error(err))
		return BiasReport{
			Detected:    false,
			Types:       []string{},
			Severity:    SeverityLow,
			Description: "bias check unavailable",
			Confidence:  0,
			Error:       err.Error(),
		}
	}

	report := NormalizeBias(raw)
	if report.Detected {
		e.logger.Info("bias detected",
			zap.Strings("types", report.Types),
			zap.String("severity", string(report.Severity)))
	}
	return report
}

// NormalizeBias maps a raw bias classifier payload to a report, replacing
// each missing or malformed field with its safest default.
func NormalizeBias(raw *RawBiasResponse) BiasReport {
	r := BiasReport{
		Types:    []string{},
		Severity: SeverityLow,
	}
	if raw == nil {
		return r
	}

	r.Detected = rawBool(raw.Detected)
	r.Types = rawStrings(raw.Types)
	if s := Severity(rawString(raw.Severity)); s.Rank() >= 0 {
		r.Severity = s
	}
	r.Description = rawString(raw.Description)
	if f, ok := rawFloat(raw.Confidence); ok {
		r.Confidence = clamp(f, 0, 1)
	}
	return r
}

// DetectBiasHeuristic tests a response against the gender, age and cultural
// pattern families. Severity is the maximum over matched families.
func DetectBiasHeuristic(response string) BiasReport {
	var (
		types     []string
		fragments []string
		levels    []Severity
	)

	for _, fam := range biasFamilies {
		if !matchesAny(fam.patterns, response) {
			continue
		}
		types = append(types, fam.label)
		fragments = append(fragments, fam.description)
		levels = append(levels, fam.severity)
	}

	if len(types) == 0 {
		return BiasReport{
			Detected:    false,
			Types:       []string{},
			Severity:    SeverityLow,
			Description: "no bias patterns detected",
			Confidence:  HeuristicNoMatchConfidence,
		}
	}

	return BiasReport{
		Detected:    true,
		Types:       types,
		Severity:    MaxSeverity(levels...),
		Description: fmt.Sprintf("possible %s", strings.Join(fragments, "; ")),
		Confidence:  HeuristicMatchConfidence,
	}
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
