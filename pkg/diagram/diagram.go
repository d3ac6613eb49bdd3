// Package diagram draws flows as Mermaid flowcharts or ASCII box diagrams.
// Display steps are drawn with a dotted edge back to the step they show.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/stepflow/pkg/flow"
	"github.com/ormasoftchile/stepflow/pkg/step"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram of f.
func Generate(f *flow.Flow, format Format) (string, error) {
	if f == nil {
		return "", fmt.Errorf("nil flow")
	}
	nodes := collect(f)
	switch format {
	case FormatMermaid:
		return generateMermaid(nodes), nil
	case FormatASCII:
		return generateASCII(f.Name(), nodes), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

type node struct {
	index int
	kind  step.Kind
	label string
	ref   int // display target, step.NoRef otherwise
}

func (n node) id() string { return fmt.Sprintf("S%d", n.index+1) }

func (n node) title() string {
	if n.label == "" {
		return string(n.kind)
	}
	return n.label
}

func collect(f *flow.Flow) []node {
	nodes := make([]node, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		s, _ := f.Step(i)
		n := node{index: i, kind: s.Kind(), label: s.Label(), ref: step.NoRef}
		if d, ok := s.(*step.Display); ok {
			n.ref = d.Ref
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// --- Mermaid flowchart ---

func generateMermaid(nodes []node) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	if len(nodes) == 0 {
		b.WriteString("    START([Start]) --> END([End])\n")
		return b.String()
	}

	b.WriteString("    START([Start]) --> " + nodes[0].id() + "\n")
	for i, n := range nodes {
		b.WriteString("    " + nodeDefinition(n) + "\n")
		if i < len(nodes)-1 {
			fmt.Fprintf(&b, "    %s --> %s\n", n.id(), nodes[i+1].id())
		}
	}
	fmt.Fprintf(&b, "    %s --> END([End])\n", nodes[len(nodes)-1].id())

	for _, n := range nodes {
		if n.ref >= 0 && n.ref < len(nodes) {
			fmt.Fprintf(&b, "    %s -.->|\"shows\"| %s\n", n.id(), nodes[n.ref].id())
		}
	}
	for _, n := range nodes {
		if style := kindStyle(n.kind); style != "" {
			fmt.Fprintf(&b, "    style %s %s\n", n.id(), style)
		}
	}
	return b.String()
}

func nodeDefinition(n node) string {
	text := escMermaid(fmt.Sprintf("%s %d. %s", icon(n.kind), n.index+1, truncate(n.title(), 40)))
	switch n.kind {
	case step.KindTitle, step.KindText:
		return fmt.Sprintf(`%s["%s"]`, n.id(), text)
	case step.KindTextInput, step.KindCSVInput, step.KindFileInput, step.KindTextFile, step.KindCSVFile, step.KindNumberInput:
		return fmt.Sprintf(`%s[/"%s"/]`, n.id(), text)
	case step.KindCalculus:
		return fmt.Sprintf(`%s{{"%s"}}`, n.id(), text)
	case step.KindOutput:
		return fmt.Sprintf(`%s[\"%s"\]`, n.id(), text)
	case step.KindDisplay:
		return fmt.Sprintf(`%s[["%s"]]`, n.id(), text)
	}
	return fmt.Sprintf(`%s(["%s"])`, n.id(), text)
}

func kindStyle(k step.Kind) string {
	switch k {
	case step.KindCalculus:
		return "fill:#1a3a4a,stroke:#0af"
	case step.KindOutput:
		return "fill:#0d6,stroke:#0a5,color:#fff"
	case step.KindDisplay:
		return "stroke-dasharray: 5 5"
	}
	return ""
}

// --- ASCII ---

func generateASCII(name string, nodes []node) string {
	var b strings.Builder
	if name == "" {
		name = "Flow"
	}
	if len(nodes) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Uniform box width so every box and connector aligns.
	const indent = 4
	boxWidth := boxWidthFor(name, nodes)
	connPad := strings.Repeat(" ", indent+1+boxWidth/2)
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + centerPad(name, boxWidth) + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")

	for _, n := range nodes {
		b.WriteString(connPad + "│\n")
		b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
		for _, line := range boxLines(n) {
			b.WriteString(pad + "│" + line + strings.Repeat(" ", boxWidth-runewidth.StringWidth(line)) + "│\n")
		}
		b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
	}
	b.WriteString(connPad + "│\n")
	b.WriteString(connPad[:len(connPad)-1] + "(end)\n")
	return b.String()
}

// boxLines returns the interior lines of a step box.
func boxLines(n node) []string {
	lines := []string{fmt.Sprintf(" %s %d. %s ", icon(n.kind), n.index+1, truncate(n.title(), 40))}
	if n.kind == step.KindDisplay {
		if n.ref >= 0 {
			lines = append(lines, fmt.Sprintf(" ↺ shows step %d ", n.ref+1))
		} else {
			lines = append(lines, " ↺ no reference ")
		}
	}
	return lines
}

func boxWidthFor(name string, nodes []node) int {
	w := 22
	if nw := runewidth.StringWidth(name) + 4; nw > w {
		w = nw
	}
	for _, n := range nodes {
		for _, line := range boxLines(n) {
			if lw := runewidth.StringWidth(line); lw > w {
				w = lw
			}
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	left := (width - sw) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-sw-left)
}

func icon(k step.Kind) string {
	switch k {
	case step.KindTitle, step.KindText:
		return "¶"
	case step.KindTextInput, step.KindCSVInput, step.KindFileInput, step.KindTextFile, step.KindCSVFile:
		return "⇢"
	case step.KindNumberInput, step.KindCalculus:
		return "∑"
	case step.KindDisplay:
		return "◉"
	case step.KindOutput:
		return "⇥"
	case step.KindEnd:
		return "■"
	}
	return "○"
}

// --- string helpers ---

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

// truncate shortens s to max display columns.
func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}
