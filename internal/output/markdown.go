package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders reports as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders a report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## agentbridge doctor\n\n")
	sb.WriteString("| Check | Status | Detail |\n")
	sb.WriteString("|-------|--------|--------|\n")

	for _, c := range report.Checks {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdownCell(c.Name),
			escapeMarkdownCell(string(c.Status)),
			escapeMarkdownCell(c.Detail),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summary(report)))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
