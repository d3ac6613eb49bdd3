// Package report renders flow analytics for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/stepflow/pkg/flow"
)

// Format selects a rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatTable, FormatMarkdown, FormatYAML}

// LabelWidth is the column budget for step labels in table and markdown
// output.
const LabelWidth = 40

// ParseFormat returns the format named s. The empty string means text.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatText, nil
	}
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format %q (want one of %v)", s, Formats)
}

// Render writes r to w in the given format.
func Render(w io.Writer, r flow.Report, format Format) error {
	switch format {
	case FormatText, "":
		return Text(w, r)
	case FormatTable:
		_, err := fmt.Fprintln(w, Table(r))
		return err
	case FormatMarkdown:
		_, err := fmt.Fprintln(w, RenderMarkdown(Markdown(r)))
		return err
	case FormatYAML:
		return YAML(w, r)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// Average formats the average errors per completed flow, or "N/A" when no
// flow has completed.
func Average(r flow.Report) string {
	avg, ok := r.AverageErrors()
	if !ok {
		return "N/A (No completed flows)"
	}
	return strconv.FormatFloat(avg, 'g', 6, 64)
}

// Text writes the plain analytics listing.
func Text(w io.Writer, r flow.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Flow Analytics for '%s':\n", r.Flow)
	fmt.Fprintf(&b, "a. Flow started %d times.\n", r.FlowStarted)
	fmt.Fprintf(&b, "b. Flow completed %d times.\n", r.FlowCompleted)
	b.WriteString("c. Step-wise analytics:\n")
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "   Step %d (%s: %s): Started %d times, Completed %d times, Skipped %d times, Errors %d times.\n",
			s.Index+1, s.Kind, s.Label, s.Started, s.Completed, s.Skipped, s.Errors)
	}
	fmt.Fprintf(&b, "d. Total errors: %d\n", r.TotalErrors)
	fmt.Fprintf(&b, "e. Average number of errors per flow completed: %s\n", Average(r))
	_, err := io.WriteString(w, b.String())
	return err
}

// truncate shortens s to width terminal columns.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = cellStyle.Foreground(lipgloss.Color("196"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const errorsColumn = 6

// Table renders the analytics as a bordered lipgloss table.
func Table(r flow.Report) string {
	rows := make([][]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		rows = append(rows, []string{
			strconv.Itoa(s.Index + 1),
			string(s.Kind),
			truncate(s.Label, LabelWidth),
			strconv.Itoa(s.Started),
			strconv.Itoa(s.Completed),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Errors),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("#", "KIND", "LABEL", "STARTED", "COMPLETED", "SKIPPED", "ERRORS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == errorsColumn && row >= 0 && row < len(rows) && rows[row][col] != "0":
				return errorStyle
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Flow %q", r.Flow)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "started %d · completed %d · errors %d · avg errors/completed %s\n",
		r.FlowStarted, r.FlowCompleted, r.TotalErrors, Average(r))
	b.WriteString(t.String())
	return b.String()
}

// Markdown returns the analytics as a markdown document.
func Markdown(r flow.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Flow analytics: %s\n\n", r.Flow)
	fmt.Fprintf(&b, "- **Started:** %d\n", r.FlowStarted)
	fmt.Fprintf(&b, "- **Completed:** %d\n", r.FlowCompleted)
	fmt.Fprintf(&b, "- **Total errors:** %d\n", r.TotalErrors)
	fmt.Fprintf(&b, "- **Average errors per completed flow:** %s\n\n", Average(r))
	if len(r.Steps) == 0 {
		b.WriteString("_No steps._\n")
		return b.String()
	}
	b.WriteString("| # | Kind | Label | Started | Completed | Skipped | Errors |\n")
	b.WriteString("|---|------|-------|---------|-----------|---------|--------|\n")
	for _, s := range r.Steps {
		label := strings.ReplaceAll(truncate(s.Label, LabelWidth), "|", `\|`)
		fmt.Fprintf(&b, "| %d | `%s` | %s | %d | %d | %d | %d |\n",
			s.Index+1, s.Kind, label, s.Started, s.Completed, s.Skipped, s.Errors)
	}
	return b.String()
}

// RenderMarkdown converts markdown to styled terminal output. Falls back to
// the raw input if rendering fails.
func RenderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

type yamlReport struct {
	flow.Report   `yaml:",inline"`
	AverageErrors *float64 `yaml:"average_errors"`
}

// YAML writes the report as a YAML document. average_errors is null when no
// flow has completed.
func YAML(w io.Writer, r flow.Report) error {
	doc := yamlReport{Report: r}
	if avg, ok := r.AverageErrors(); ok {
		doc.AverageErrors = &avg
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
