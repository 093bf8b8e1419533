package monitor

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for the dashboard
var (
	primaryColor = lipgloss.Color("#7D56F4") // Purple - borders, headers
	successColor = lipgloss.Color("#43BF6D") // Green - running jets, OK
	errorColor   = lipgloss.Color("#FF5555") // Red - faults
	warningColor = lipgloss.Color("#FFA500") // Orange - transitional jet states
	mutedColor   = lipgloss.Color("#626262") // Gray - labels, absent jets
	textColor    = lipgloss.Color("#FFFFFF") // White - values
)

// Layout constants
const (
	minTerminalWidth = 60
	maxContentWidth  = 100
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Bold(true).
			PaddingLeft(2)

	addrStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			PaddingLeft(2)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(textColor)

	jetRunningStyle = lipgloss.NewStyle().
			Foreground(successColor)

	jetTransitionStyle = lipgloss.NewStyle().
				Foreground(warningColor)

	jetStoppedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	faultStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(successColor)

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(errorColor)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			PaddingLeft(2)
)

// terminalWidth returns the usable content width, with fallback
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minTerminalWidth {
		return minTerminalWidth
	}
	if width > maxContentWidth {
		return maxContentWidth
	}
	return width
}

// panelStyle returns the bordered container for a dashboard panel
func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Width(width-2).
		Padding(0, 1)
}

// faultPanelStyle returns the bordered container for the fault panel
func faultPanelStyle(width int, faulted bool) lipgloss.Style {
	color := primaryColor
	if faulted {
		color = errorColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 1)
}
