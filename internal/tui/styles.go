// Package tui implements the `self-dev monitor --watch` dashboard, a
// bubbletea program, and a glamour-rendered Markdown summary of a
// pending change for non-interactive output.
// Grounded on the teacher's cmd/nerd/ui package: a lipgloss Styles bundle
// shared across tab components, a glamour renderer for Markdown content,
// and a poll-driven tea.Model rather than a push-driven one.
package tui

import "github.com/charmbracelet/lipgloss"

// Styles bundles the lipgloss styles the dashboard views share.
type Styles struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Content   lipgloss.Style
	Good      lipgloss.Style
	Bad       lipgloss.Style
	Muted     lipgloss.Style
	Border    lipgloss.Style
}

// DefaultStyles builds the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Content: lipgloss.NewStyle().Padding(0, 1),
		Good:   lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
		Bad:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Border: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")),
	}
}
