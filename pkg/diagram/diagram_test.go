package diagram

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/stepflow/pkg/flow"
	"github.com/ormasoftchile/stepflow/pkg/step"
)

func sampleFlow(t *testing.T) *flow.Flow {
	t.Helper()
	f := flow.New("weekly-report")
	for _, s := range []step.Step{
		step.NewTitle("Weekly report", "numbers"),
		step.NewTextFile("notes", "notes.txt"),
		step.NewDisplay(1),
		step.NewCalculus(2, []int{1, 2}, step.OpAdd),
		step.NewEnd(),
	} {
		if _, err := f.Add(s); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestGenerateMermaid_LinearFlow(t *testing.T) {
	out, err := Generate(sampleFlow(t), FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "flowchart TD\n") {
		t.Error("missing flowchart header")
	}
	for _, want := range []string{
		"START([Start]) --> S1",
		"S1 --> S2",
		"S4 --> S5",
		"S5 --> END([End])",
		`S2[/"⇢ 2. notes"/]`,
		`S4{{"∑ 4. calculus + over 2 values"}}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q, got:\n%s", want, out)
		}
	}
}

func TestGenerateMermaid_DisplayEdge(t *testing.T) {
	out, err := Generate(sampleFlow(t), FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `S3 -.->|"shows"| S2`) {
		t.Errorf("missing display edge, got:\n%s", out)
	}
	if !strings.Contains(out, "style S3 stroke-dasharray: 5 5") {
		t.Error("missing display style")
	}
}

func TestGenerateMermaid_Empty(t *testing.T) {
	out, err := Generate(flow.New("empty"), FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "START([Start]) --> END([End])") {
		t.Errorf("got:\n%s", out)
	}
}

func TestGenerateMermaid_EscapesQuotes(t *testing.T) {
	f := flow.New("q")
	f.Add(step.NewTitle(`say "hi"`, ""))
	out, _ := Generate(f, FormatMermaid)
	if !strings.Contains(out, "say #quot;hi#quot;") {
		t.Errorf("quotes not escaped:\n%s", out)
	}
}

func TestGenerateASCII(t *testing.T) {
	out, err := Generate(sampleFlow(t), FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "weekly-report") {
		t.Error("missing header name")
	}
	if !strings.Contains(out, "↺ shows step 2") {
		t.Errorf("missing display reference, got:\n%s", out)
	}
	if !strings.Contains(out, "(end)") {
		t.Error("missing end marker")
	}

	// Every box line has the same display width.
	var width int
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "│" || (!strings.HasPrefix(trimmed, "│") && !strings.HasPrefix(trimmed, "┌")) {
			continue
		}
		w := len([]rune(trimmed))
		if width == 0 {
			width = w
		} else if w != width {
			t.Errorf("misaligned line %q (%d runes, want %d)", trimmed, w, width)
		}
	}
}

func TestGenerateASCII_Empty(t *testing.T) {
	out, _ := Generate(flow.New("nothing"), FormatASCII)
	if out != "nothing (empty)\n" {
		t.Errorf("got %q", out)
	}
}

func TestGenerate_Errors(t *testing.T) {
	if _, err := Generate(nil, FormatASCII); err == nil {
		t.Error("expected error for nil flow")
	}
	if _, err := Generate(flow.New("x"), Format("svg")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate(strings.Repeat("a", 20), 10); got != "aaaaaaa..." {
		t.Errorf("got %q", got)
	}
}
