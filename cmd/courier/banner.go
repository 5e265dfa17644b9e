package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerWaveStyle    = lipgloss.NewStyle().Foreground(colorPrimaryLight)
	bannerDimStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryDark).Italic(true)
	bannerVersionStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderBanner draws the title between outgoing signal arcs.
func renderBanner() string {
	near := bannerWaveStyle.Render(")")
	far := bannerDimStyle.Render(")")
	nearL := bannerWaveStyle.Render("(")
	farL := bannerDimStyle.Render("(")
	title := bannerTitleStyle.Render("COURIER")

	lines := []string{
		"   " + farL + "             " + far,
		"  " + farL + " " + nearL + "         " + near + " " + far,
		"  " + farL + " " + nearL + " " + title + " " + near + " " + far,
		"  " + farL + " " + nearL + "         " + near + " " + far,
		"   " + farL + "             " + far,
	}
	return strings.Join(lines, "\n")
}

func renderBannerWithTagline() string {
	tagline := bannerTaglineStyle.Render("   delivered when you're back")
	ver := bannerVersionStyle.Render("          " + version)
	return strings.Join([]string{renderBanner(), tagline, ver}, "\n")
}
