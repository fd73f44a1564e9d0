// Package render formats parsed patches, run comparisons, and log output for
// a terminal using lipgloss.
package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAdd     = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
	colorRemove  = lipgloss.AdaptiveColor{Light: "124", Dark: "196"}
	colorHunk    = lipgloss.AdaptiveColor{Light: "30", Dark: "6"}
	colorPrimary = lipgloss.AdaptiveColor{Light: "92", Dark: "99"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "244", Dark: "245"}
	colorWarning = lipgloss.AdaptiveColor{Light: "166", Dark: "214"}
)

// styles is the full style set bound to one renderer, so the colour profile
// follows the writer being printed to rather than os.Stdout.
type styles struct {
	file    lipgloss.Style
	hunk    lipgloss.Style
	add     lipgloss.Style
	remove  lipgloss.Style
	context lipgloss.Style
	gutter  lipgloss.Style

	section  lipgloss.Style
	header   lipgloss.Style
	cell     lipgloss.Style
	executor lipgloss.Style
	warn     lipgloss.Style
	muted    lipgloss.Style
}

func newStyles(w io.Writer, theme string) styles {
	r := lipgloss.NewRenderer(w)
	switch theme {
	case "light":
		r.SetHasDarkBackground(false)
	case "dark":
		r.SetHasDarkBackground(true)
	}

	return styles{
		file: r.NewStyle().
			Bold(true).
			Foreground(colorPrimary),
		hunk:    r.NewStyle().Foreground(colorHunk),
		add:     r.NewStyle().Foreground(colorAdd),
		remove:  r.NewStyle().Foreground(colorRemove),
		context: r.NewStyle(),
		gutter:  r.NewStyle().Foreground(colorMuted),

		section: r.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginTop(1),
		header: r.NewStyle().
			Bold(true).
			Underline(true),
		cell: r.NewStyle().PaddingRight(2),
		executor: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81")),
		warn:  r.NewStyle().Foreground(colorWarning),
		muted: r.NewStyle().Foreground(colorMuted),
	}
}
