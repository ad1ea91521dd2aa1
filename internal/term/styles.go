package term

import "github.com/charmbracelet/lipgloss"

const (
	primaryColor = "#7C3AED" // Purple
	successColor = "#10B981" // Green
	warningColor = "#F59E0B" // Amber
	errorColor   = "#EF4444" // Red
	dimColor     = "#6B7280" // Gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(1, 2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	recommendedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(successColor))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	countdownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(successColor)).
			Bold(true)
)
