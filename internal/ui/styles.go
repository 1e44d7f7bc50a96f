// internal/ui/styles.go

package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	Subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#6C7086"}
	Highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7DC4E4"}
	Special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	Warning   = lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#FFD75F"}
	Error     = lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#F38BA8"}
	Border    = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#33B2FF"}

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Highlight).
			MarginLeft(2)

	DescriptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginLeft(2)

	InputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(Highlight).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Special).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	// Terminal dialog
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E7E7E7")).
			Background(lipgloss.Color("#3C3C3C")).
			Padding(0, 1)

	ScrollbackStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#000000")).
			Foreground(lipgloss.Color("#E5E5E5"))
)

// StateStyle colors the session state label in the status bar.
func StateStyle(connected, failed bool) lipgloss.Style {
	switch {
	case connected:
		return SuccessStyle
	case failed:
		return ErrorStyle
	default:
		return InfoStyle
	}
}
