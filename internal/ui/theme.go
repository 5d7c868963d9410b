package ui

import "github.com/charmbracelet/lipgloss"

type palette struct {
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Accent    lipgloss.Color
	AccentAlt lipgloss.Color
	Border    lipgloss.Color
	Wall      lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
}

var defaultPalette = palette{
	Text:      lipgloss.Color("#cdd6f4"),
	Muted:     lipgloss.Color("#6c7086"),
	Accent:    lipgloss.Color("#cba6f7"),
	AccentAlt: lipgloss.Color("#f38ba8"),
	Border:    lipgloss.Color("#585b70"),
	Wall:      lipgloss.Color("#a6adc8"),
	Success:   lipgloss.Color("#94e2d5"),
	Warning:   lipgloss.Color("#f9e2af"),
}

type styles struct {
	title    lipgloss.Style
	bar      lipgloss.Style
	help     lipgloss.Style
	status   lipgloss.Style
	errText  lipgloss.Style
	side     lipgloss.Style
	wall     lipgloss.Style
	floor    lipgloss.Style
	player   lipgloss.Style
	painting lipgloss.Style
	focused  lipgloss.Style
	marker   lipgloss.Style
	near     lipgloss.Style
	label    lipgloss.Style
}

func newStyles(p palette) styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		bar:      lipgloss.NewStyle().Foreground(p.Text),
		help:     lipgloss.NewStyle().Foreground(p.Muted),
		status:   lipgloss.NewStyle().Foreground(p.Success),
		errText:  lipgloss.NewStyle().Foreground(p.AccentAlt),
		side:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Border).Padding(0, 1),
		wall:     lipgloss.NewStyle().Foreground(p.Wall),
		floor:    lipgloss.NewStyle().Foreground(p.Border),
		player:   lipgloss.NewStyle().Bold(true).Foreground(p.AccentAlt),
		painting: lipgloss.NewStyle().Foreground(p.Warning),
		focused:  lipgloss.NewStyle().Bold(true).Reverse(true).Foreground(p.Warning),
		marker:   lipgloss.NewStyle().Foreground(p.Muted),
		near:     lipgloss.NewStyle().Bold(true).Foreground(p.Success),
		label:    lipgloss.NewStyle().Bold(true).Foreground(p.Text),
	}
}
