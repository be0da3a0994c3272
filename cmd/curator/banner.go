package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerShelfStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	bannerBookStyle    = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryDark).Italic(true)
	bannerVersionStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderBanner draws a small bookshelf around the name.
func renderBanner() string {
	shelf := bannerShelfStyle.Render("═══════════════════")
	books := bannerBookStyle.Render("▌▌▐ ▌▐▐▌ ▌▌▐▐ ▌▐▌▌")
	title := bannerTitleStyle.Render("C U R A T O R")

	return strings.Join([]string{
		"  " + books,
		"  " + shelf,
		"      " + title,
		"  " + shelf,
	}, "\n")
}

func renderBannerWithTagline() string {
	tagline := bannerTaglineStyle.Render("     keep what helps, retire what doesn't")
	ver := bannerVersionStyle.Render("             " + version)
	return strings.Join([]string{renderBanner(), tagline, ver}, "\n")
}
