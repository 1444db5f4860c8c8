package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// Palette used for status badges and headings.
var (
	colourPrimary = lipgloss.Color("#7C3AED") // Purple
	colourMuted   = lipgloss.Color("#6C7086") // Medium gray
	colourSuccess = lipgloss.Color("#A6E3A1") // Green
	colourWarning = lipgloss.Color("#F9E2AF") // Yellow
	colourError   = lipgloss.Color("#F38BA8") // Red
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	labelStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted).Italic(true)
)

// statusBadge renders a status in its colour.
func statusBadge(status domain.SourceStatus) string {
	colour := colourMuted
	switch status {
	case domain.StatusCompleted:
		colour = colourSuccess
	case domain.StatusProcessing:
		colour = colourWarning
	case domain.StatusFailed:
		colour = colourError
	}
	return lipgloss.NewStyle().Foreground(colour).Render(string(status))
}

// excludedBadge marks sources hidden from retrieval.
func excludedBadge(s *domain.Source) string {
	if !s.ExcludeFromRag {
		return ""
	}
	label := "excluded"
	if s.Category != nil {
		label += ": " + *s.Category
	}
	return lipgloss.NewStyle().Foreground(colourError).Render("[" + label + "]")
}
