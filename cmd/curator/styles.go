package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hyperengineering/curator"
	"github.com/mattn/go-isatty"
)

// Palette
var (
	colorPrimary      = lipgloss.Color("#3B82C4") // Archive Blue
	colorPrimaryLight = lipgloss.Color("#6BA6DC")
	colorPrimaryDark  = lipgloss.Color("#2A5F91")

	colorText  = lipgloss.Color("#F2F3F3")
	colorMuted = lipgloss.Color("240")

	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorSevere  = lipgloss.Color("#B91C1C")
)

// Styles
var (
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle   = lipgloss.NewStyle().Foreground(colorPrimaryLight).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(colorText)

	tableHeaderStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	panelStyle       = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimaryDark).
				Padding(0, 1)
)

// Icons
const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "⚠"
	iconInfo    = "●"
)

// ttyOverride forces TTY detection in tests.
var (
	ttyOverride   *bool
	ttyOverrideMu sync.RWMutex
)

// isTTY returns true if stdout is a terminal
func isTTY() bool {
	ttyOverrideMu.RLock()
	override := ttyOverride
	ttyOverrideMu.RUnlock()
	if override != nil {
		return *override
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printStyled prints a message with an icon, applying style only in TTY mode
func printStyled(w io.Writer, icon string, style lipgloss.Style, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if isTTY() {
		fmt.Fprintf(w, "%s %s\n", style.Render(icon), msg)
	} else {
		fmt.Fprintf(w, "%s %s\n", icon, msg)
	}
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	printStyled(w, iconSuccess, successStyle, format, args...)
}

func printError(w io.Writer, format string, args ...interface{}) {
	printStyled(w, iconError, errorStyle, format, args...)
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	printStyled(w, iconWarning, warningStyle, format, args...)
}

func printInfo(w io.Writer, format string, args ...interface{}) {
	printStyled(w, iconInfo, infoStyle, format, args...)
}

// printMuted prints muted/secondary text
func printMuted(w io.Writer, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if isTTY() {
		fmt.Fprintln(w, mutedStyle.Render(msg))
	} else {
		fmt.Fprintln(w, msg)
	}
}

// printField prints an aligned "label: value" line.
func printField(w io.Writer, label string, value interface{}) {
	l := fmt.Sprintf("%-18s", label+":")
	v := fmt.Sprint(value)
	if isTTY() {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(l), valueStyle.Render(v))
	} else {
		fmt.Fprintf(w, "%s %s\n", l, v)
	}
}

// renderTable renders rows under headers. TTY output gets a rounded border;
// otherwise columns are padded with spaces.
func renderTable(headers []string, rows [][]string) string {
	if !isTTY() {
		return renderPlainTable(headers, rows)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	return t.String()
}

func renderPlainTable(headers []string, rows [][]string) string {
	cols := len(headers)
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	widths := make([]int, cols)
	measure := func(r []string) {
		for i, c := range r {
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(headers)
	for _, r := range rows {
		measure(r)
	}

	var b strings.Builder
	line := func(r []string) {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = c + strings.Repeat(" ", widths[i]-lipgloss.Width(c))
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		b.WriteString("\n")
	}
	if len(headers) > 0 {
		line(headers)
	}
	for _, r := range rows {
		line(r)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderPanel wraps content in a bordered panel with an optional title.
func renderPanel(title, content string) string {
	if !isTTY() {
		if title == "" {
			return content
		}
		return title + "\n" + strings.Repeat("-", lipgloss.Width(title)) + "\n" + content
	}
	if title != "" {
		content = labelStyle.Render(title) + "\n\n" + content
	}
	return panelStyle.Render(content)
}

// severityStyle maps a severity to its color.
func severityStyle(s curator.Severity) lipgloss.Style {
	switch s {
	case curator.SeverityCritical:
		return lipgloss.NewStyle().Foreground(colorSevere).Bold(true)
	case curator.SeverityHigh:
		return errorStyle
	case curator.SeverityMedium:
		return warningStyle
	default:
		return mutedStyle
	}
}

func renderSeverity(s curator.Severity) string {
	if !isTTY() {
		return string(s)
	}
	return severityStyle(s).Render(string(s))
}

// renderScore colors an effectiveness score against the prune threshold.
func renderScore(score, threshold float64) string {
	text := fmt.Sprintf("%.1f", score)
	if !isTTY() {
		return text
	}
	switch {
	case score < threshold:
		return errorStyle.Render(text)
	case score < curator.NeutralScore:
		return warningStyle.Render(text)
	default:
		return successStyle.Render(text)
	}
}

// renderMarkdown renders markdown content with glamour
func renderMarkdown(content string) string {
	if !isTTY() {
		return content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}
