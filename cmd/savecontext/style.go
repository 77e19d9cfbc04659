package main

import "github.com/charmbracelet/lipgloss"

// Status colors, grounded on the teacher's internal/ui/table.go palette
// (ColorPass/ColorWarn/ColorMuted/ColorAccent) but scoped down to this
// command package since nothing else needs a shared ui package.
var (
	colorPass  = lipgloss.Color("42")
	colorWarn  = lipgloss.Color("214")
	colorMuted = lipgloss.Color("245")
	colorFail  = lipgloss.Color("204")

	styleStatusClosed  = lipgloss.NewStyle().Foreground(colorPass)
	styleStatusActive  = lipgloss.NewStyle().Foreground(colorWarn)
	styleStatusBlocked = lipgloss.NewStyle().Foreground(colorFail)
	styleStatusMuted   = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderStatus colors a status label for terminal listing output, falling
// back to plain text for statuses it doesn't specifically recognize.
func renderStatus(status string) string {
	switch status {
	case "closed", "completed":
		return styleStatusClosed.Render(status)
	case "in_progress", "active":
		return styleStatusActive.Render(status)
	case "blocked":
		return styleStatusBlocked.Render(status)
	case "open", "draft", "deferred":
		return styleStatusMuted.Render(status)
	default:
		return status
	}
}
