package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(20)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)
)

func displayBanner(w io.Writer) {
	banner := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("BrokerGo"),
		lipgloss.NewStyle().Italic(true).Render("Colombo Stock Exchange broker agent"),
		"Type a question, /reset to start over or exit to quit.",
	)
	fmt.Fprintln(w, panelStyle.Render(banner))
}

// printRows renders label/value pairs as an aligned block.
func printRows(w io.Writer, title string, rows [][2]string) {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row[0])+row[1])
	}
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, completedStyle.Render(fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf(format, args...)))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf(format, args...)))
}

func configured(value string) string {
	if value == "" {
		return errorStyle.Render("not configured")
	}
	return completedStyle.Render("configured")
}
