package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/curator"
	"github.com/stretchr/testify/assert"
)

// setMockTTY forces TTY detection and returns a function restoring real detection.
func setMockTTY(value bool) func() {
	ttyOverrideMu.Lock()
	ttyOverride = &value
	ttyOverrideMu.Unlock()
	return func() {
		ttyOverrideMu.Lock()
		ttyOverride = nil
		ttyOverrideMu.Unlock()
	}
}

const borderChars = "─│╭╮╰╯├┼┤┬┴"

func TestRenderTable_TTY_HasBorders(t *testing.T) {
	defer setMockTTY(true)()

	result := renderTable([]string{"SEED", "SCORE"}, [][]string{{"alpha", "10.0"}, {"beta", "80.0"}})

	for _, s := range []string{"SEED", "SCORE", "alpha", "beta"} {
		assert.Contains(t, result, s)
	}
	assert.True(t, strings.ContainsAny(result, borderChars), "TTY output should contain border characters")
}

func TestRenderTable_NonTTY_AlignedPlainText(t *testing.T) {
	defer setMockTTY(false)()

	result := renderTable([]string{"SEED", "SCORE"}, [][]string{{"alpha", "10.0"}, {"b", "80.0"}})

	assert.False(t, strings.ContainsAny(result, borderChars))
	lines := strings.Split(result, "\n")
	assert.Equal(t, []string{
		"SEED   SCORE",
		"alpha  10.0",
		"b      80.0",
	}, lines)
}

func TestRenderTable_EmptyRows(t *testing.T) {
	defer setMockTTY(true)()

	assert.Contains(t, renderTable([]string{"SEED"}, nil), "SEED")
}

func TestRenderTable_RowsLongerThanHeaders(t *testing.T) {
	defer setMockTTY(false)()

	result := renderTable([]string{"A"}, [][]string{{"x", "extra"}})

	assert.Contains(t, result, "extra")
}

func TestRenderPanel(t *testing.T) {
	t.Run("tty with title", func(t *testing.T) {
		defer setMockTTY(true)()
		result := renderPanel("Store default", "body")
		assert.Contains(t, result, "Store default")
		assert.Contains(t, result, "body")
		assert.True(t, strings.ContainsAny(result, borderChars))
	})

	t.Run("non-tty", func(t *testing.T) {
		defer setMockTTY(false)()
		assert.Equal(t, "Title\n-----\nbody", renderPanel("Title", "body"))
		assert.Equal(t, "body", renderPanel("", "body"))
	})
}

func TestRenderScore_NonTTY(t *testing.T) {
	defer setMockTTY(false)()

	assert.Equal(t, "12.5", renderScore(12.5, 20))
	assert.Equal(t, "100.0", renderScore(100, 20))
}

func TestRenderSeverity_NonTTY(t *testing.T) {
	defer setMockTTY(false)()

	assert.Equal(t, "critical", renderSeverity(curator.SeverityCritical))
}

func TestPrintStyled_NonTTY_HasIcon(t *testing.T) {
	defer setMockTTY(false)()

	var buf bytes.Buffer
	printSuccess(&buf, "pruned %d", 3)
	printWarning(&buf, "careful")

	assert.Equal(t, "✓ pruned 3\n⚠ careful\n", buf.String())
}

func TestRenderMarkdown_NonTTY_Passthrough(t *testing.T) {
	defer setMockTTY(false)()

	md := "# Title\n\n- item"
	assert.Equal(t, md, renderMarkdown(md))
}

func TestRenderMarkdown_TTY_Renders(t *testing.T) {
	defer setMockTTY(true)()

	out := renderMarkdown("# Learning insights\n\n- one\n- two")
	assert.Contains(t, out, "Learning insights")
	assert.Contains(t, out, "two")
}

func TestInsightsMarkdown(t *testing.T) {
	insights := &curator.LearningInsights{
		Patterns: []curator.LearningPattern{{
			PatternType:       curator.PatternCommonFailure,
			Description:       "Recurring API failure: timeout",
			Frequency:         4,
			Confidence:        0.9,
			Examples:          []string{"timeout"},
			ActionableInsight: "address recurring error: timeout",
		}},
		Recommendations: []string{"Investigate timeouts"},
		Summary:         curator.InsightSummary{TotalDecisions: 2, SuccessRate: 50, AvgConfidence: 0.75},
	}

	md := insightsMarkdown(insights)

	assert.Contains(t, md, "### common_failure")
	assert.Contains(t, md, "- frequency: 4, confidence: 0.90")
	assert.Contains(t, md, "**API success rate:** 50.00%")
	assert.Contains(t, md, "1. Investigate timeouts")
}

func TestFormatLastUsed(t *testing.T) {
	assert.Equal(t, "never", formatLastUsed(nil))
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01 09:30", formatLastUsed(&at))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "01HV3K9ZQ8", shortID("01HV3K9ZQ8XYZ"))
}

func TestRenderBanner_ContainsName(t *testing.T) {
	assert.Contains(t, renderBannerWithTagline(), "C U R A T O R")
}
