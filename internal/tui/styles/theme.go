package styles

import (
	"github.com/allbin/go-comm/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	// Line state pills
	SignalHighStyle = lipgloss.NewStyle().
				Foreground(colors.Base).
				Background(colors.Green).
				Bold(true).
				Padding(0, 1)

	SignalLowStyle = lipgloss.NewStyle().
				Foreground(colors.Subtext0).
				Background(colors.Surface1).
				Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Padding(0, 1)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	HelpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(1, 2).
			Margin(1, 0)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)
)

// ModeStyle renders the mode block at the left of the status bar.
func ModeStyle(paused bool) lipgloss.Style {
	bg := colors.Blue
	if paused {
		bg = colors.Peach
	}
	return lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(bg).
		Bold(true).
		Padding(0, 1)
}

// Signal picks the pill style for a line level.
func Signal(high bool) lipgloss.Style {
	if high {
		return SignalHighStyle
	}
	return SignalLowStyle
}
