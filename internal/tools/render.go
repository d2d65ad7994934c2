package tools

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dyike/BrokerGo/internal/tradesummary"
)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// markdownTable renders rows as a GitHub-flavoured markdown table.
func markdownTable(headers []string, rows []tradesummary.Row) string {
	t := table.New().
		Border(lipgloss.MarkdownBorder()).
		BorderTop(false).
		BorderBottom(false).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(headers...)
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = escapeCell(row[h])
		}
		t.Row(cells...)
	}
	return t.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
