package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/benaskins/tether/internal/supervisor"
)

var (
	colorInfo    = lipgloss.AdaptiveColor{Light: "#1f6feb", Dark: "#58a6ff"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	colorError   = lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}
	colorFaint   = lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"}

	titleStyle  = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(colorFaint)
	mediaStyle  = lipgloss.NewStyle().Foreground(colorFaint)
	stderrStyle = lipgloss.NewStyle().Foreground(colorError)
	systemStyle = lipgloss.NewStyle().Foreground(colorFaint).Italic(true)
)

// bannerStyle returns the status banner style for a severity level.
func bannerStyle(level supervisor.Level) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch level {
	case supervisor.LevelSuccess:
		return base.Foreground(colorSuccess)
	case supervisor.LevelWarning:
		return base.Foreground(colorWarning)
	case supervisor.LevelError:
		return base.Foreground(colorError)
	default:
		return base.Foreground(colorInfo)
	}
}
