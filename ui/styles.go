package ui

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	te "github.com/muesli/termenv"
)

const ellipsis = "…"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	dimFg     = lipgloss.AdaptiveColor{Light: "#C2C2C2", Dark: "#4D4D4D"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(red).
				Render

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(green).
			Bold(true).
			Render

	headerLabelStyle = lipgloss.NewStyle().Bold(true)
	headerTimeStyle  = lipgloss.NewStyle().Foreground(statusBarNoteFg)
	controlStyle     = lipgloss.NewStyle().Foreground(green).Bold(true)
	disabledStyle    = lipgloss.NewStyle().Foreground(dimFg)
	barFilledStyle   = lipgloss.NewStyle().Foreground(green)
	barEmptyStyle    = lipgloss.NewStyle().Foreground(dimFg)
	mutedStyle       = lipgloss.NewStyle().Foreground(red)

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1F1F1")).
			Background(red).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().Foreground(statusBarNoteFg)

	playerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimFg).
			Padding(0, 1)
)

func logoView() string {
	return logoStyle(" Reminder ")
}

// resolveStyle maps "auto" to the dark or light style of the terminal.
func resolveStyle(style string) string {
	if style == "" || style == styles.AutoStyle {
		if te.HasDarkBackground() {
			return styles.DarkStyle
		}
		return styles.LightStyle
	}
	return style
}

// glamourStyle returns the renderer option for a builtin style name or a
// JSON style path.
func glamourStyle(style string) glamour.TermRendererOption {
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylesFromJSONFile(style)
}
