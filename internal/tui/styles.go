package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	listStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1)

	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	statusOKStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	statusErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)

	helpStyle = lipgloss.NewStyle().Faint(true).MarginTop(1)
)
