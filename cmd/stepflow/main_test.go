package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyCatalog = `apiVersion: stepflow/v0
templates:
  - name: tiny
    description: Two steps.
    steps:
      - type: title
        title: Hello
        subtitle: World
      - type: end
`

// clearEnv keeps the developer's STEPFLOW_* settings out of the tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STEPFLOW_CATALOG", "STEPFLOW_TRACE", "STEPFLOW_REPORT", "STEPFLOW_LOG_LEVEL", "STEPFLOW_DIR"} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	clearEnv(t)
	var out, errb bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errb)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errb.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMenu_Session(t *testing.T) {
	catalog := writeFile(t, t.TempDir(), "catalog.yaml", tinyCatalog)
	stdin := strings.Join([]string{
		"1", "alpha", "tiny", // create
		"1", "alpha", // duplicate
		"1", "", // blank name
		"4",                          // list
		"3", "alpha", "y", "y", "n", "y", // run: complete step 1, skip step 2
		"3", "ghost", // run unknown
		"2", "ghost", // delete unknown
		"2", "alpha", // delete
		"9", // invalid
		"5",
	}, "\n") + "\n"

	out, errs, err := execute(t, stdin, "--catalog", catalog)
	require.NoError(t, err)

	assert.Contains(t, out, "Choose an option:")
	assert.Contains(t, out, "Flow 'alpha' created with 2 steps from template 'tiny'.")
	assert.Contains(t, errs, "Error: flow already exists: alpha")
	assert.Contains(t, errs, "Error: invalid flow name")
	assert.Contains(t, out, "Available Flows:\n- alpha\n")
	assert.Contains(t, out, "Title: Hello\nSubtitle: World\n")
	assert.Contains(t, out, "Step 1 completed.")
	assert.Contains(t, out, "Step 2 skipped.")
	assert.Contains(t, out, "Flow Analytics for 'alpha':")
	assert.Contains(t, out, "b. Flow completed 1 times.")
	assert.Contains(t, errs, "Error: Flow 'ghost' not found.")
	assert.Contains(t, errs, "Error: flow not found: ghost")
	assert.Contains(t, out, "Flow 'alpha' deleted from the system.")
	assert.Contains(t, out, "Invalid choice. Try again.")
	assert.True(t, strings.HasSuffix(out, "Exiting program.\n"))
}

func TestMenu_DefaultTemplate(t *testing.T) {
	out, _, err := execute(t, "1\ndemo\n\n4\n5\n", "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Flow 'demo' created with 11 steps from template 'default'.")
	assert.Contains(t, out, "- demo\n")
}

func TestMenu_UnknownTemplate(t *testing.T) {
	out, errs, err := execute(t, "1\ndemo\nnope\n4\n5\n")
	require.NoError(t, err)
	assert.Contains(t, errs, `Error: template "nope" not found`)
	assert.NotContains(t, out, "- demo")
}

func TestMenu_EndOfInputExits(t *testing.T) {
	out, _, err := execute(t, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Exiting program.")
}

func TestMenu_RunInterruptedByEndOfInput(t *testing.T) {
	out, errs, err := execute(t, "1\ndemo\n\n3\ndemo\ny\n")
	require.NoError(t, err)
	assert.Contains(t, errs, "Run aborted:")
	assert.Contains(t, out, "a. Flow started 1 times.")
	assert.Contains(t, out, "b. Flow completed 0 times.")
	assert.Contains(t, out, "N/A (No completed flows)")
}

func TestRun_AnswersAndTrace(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", tinyCatalog)
	answers := writeFile(t, dir, "answers.yaml", "answers: [y, y, n, y]\n")
	tracePath := filepath.Join(dir, "trace.jsonl")

	out, _, err := execute(t, "", "run", catalog, "tiny", "--answers", answers, "--report", "yaml", "--trace", tracePath)
	require.NoError(t, err)
	assert.Contains(t, out, "flow: tiny")
	assert.Contains(t, out, "flow_completed: 1")
	assert.Contains(t, out, "average_errors: 0")

	out, _, err = execute(t, "", "trace", "verify", tracePath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Chain integrity: 6 events in 1 runs, no breaks")

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tracePath, bytes.Replace(data, []byte(`"steps":2`), []byte(`"steps":3`), 1), 0o644))
	out, _, err = execute(t, "", "trace", "verify", tracePath)
	require.Error(t, err)
	assert.Contains(t, out, "✗ Chain broken at event 2")
}

func TestRun_CatalogFlag(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", tinyCatalog)
	answers := writeFile(t, dir, "answers.yaml", "answers: [n, y, n, y]\n")

	out, _, err := execute(t, "", "run", "tiny", "--catalog", catalog, "--answers", answers)
	require.NoError(t, err)
	assert.Contains(t, out, "Step 1 skipped.")
	assert.Contains(t, out, "Step 2 skipped.")
}

func TestRun_Interactive(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", tinyCatalog)

	out, _, err := execute(t, "y\ny\ny\ny\n", "run", catalog, "tiny", "--report", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Do you want to run step 1 (title: Hello)? (y/n): ")
	assert.Contains(t, out, `Flow "tiny"`)
	assert.Contains(t, out, "COMPLETED")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "catalog.yaml", tinyCatalog)

	_, _, err := execute(t, "", "run", catalog, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `template "missing" not found`)

	_, _, err = execute(t, "", "run", "tiny", "--report", "html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report format")

	_, _, err = execute(t, "", "run", "tiny", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --log-level")

	answers := writeFile(t, dir, "answers.yaml", "answers: [y]\n")
	_, errs, err := execute(t, "", "run", catalog, "tiny", "--answers", answers)
	require.Error(t, err)
	assert.Contains(t, errs, "Run aborted:")
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", tinyCatalog)
	out, _, err := execute(t, "", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid (1 templates, 2 steps)")

	bad := writeFile(t, dir, "bad.yaml", `apiVersion: stepflow/v0
templates:
  - name: broken
    steps:
      - type: display
        ref: later
      - id: later
        type: end
`)
	_, errs, err := execute(t, "", "validate", bad)
	require.Error(t, err)
	assert.Contains(t, errs, "Validation failed: 1 error(s)")
	assert.Contains(t, errs, `display ref "later" does not name an earlier step`)
	assert.Contains(t, errs, "at: templates[0].steps[0]")

	_, _, err = execute(t, "", "run", bad, "broken")
	require.Error(t, err)
}

func TestSchemaCmd(t *testing.T) {
	out, _, err := execute(t, "", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"$schema"`)

	path := filepath.Join(t.TempDir(), "catalog.schema.json")
	out, _, err = execute(t, "", "schema", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema written to")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "calculus")
}

func TestTemplatesCmd(t *testing.T) {
	catalog := writeFile(t, t.TempDir(), "catalog.yaml", tinyCatalog)
	out, _, err := execute(t, "", "templates", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "- default (11 steps): Stock flow exercising every step type.")
	assert.Contains(t, out, "- tiny (2 steps): Two steps.")
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "stepflow dev (commit unknown)\n", out)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", "# comment\n\nSTEPFLOW_TEST_A=\"one\"\nSTEPFLOW_TEST_B=two\nbroken line\n")
	t.Setenv("STEPFLOW_TEST_A", "")
	t.Setenv("STEPFLOW_TEST_B", "kept")

	loadDotEnv(path)
	assert.Equal(t, "one", os.Getenv("STEPFLOW_TEST_A"))
	assert.Equal(t, "kept", os.Getenv("STEPFLOW_TEST_B"))
}

func TestDiagramCmd(t *testing.T) {
	out, _, err := execute(t, "", "diagram", "default", "--format", "mermaid")
	require.NoError(t, err)
	assert.Contains(t, out, "flowchart TD")
	assert.Contains(t, out, `S9 -.->|"shows"| S8`)

	catalog := writeFile(t, t.TempDir(), "catalog.yaml", tinyCatalog)
	out, _, err = execute(t, "", "diagram", catalog, "tiny")
	require.NoError(t, err)
	assert.Contains(t, out, "tiny")
	assert.Contains(t, out, "1. Hello")

	_, _, err = execute(t, "", "diagram", "default", "--format", "svg")
	require.Error(t, err)
}
