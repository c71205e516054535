package tui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	blue   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	statusStyles = map[string]lipgloss.Style{
		StatusDone:        green,
		StatusListing:     blue,
		StatusDownloading: blue,
		StatusRetrying:    yellow,
		StatusPartial:     yellow,
		StatusFailed:      red,
		StatusPending:     lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
