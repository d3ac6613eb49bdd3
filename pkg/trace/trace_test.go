package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/stepflow/pkg/flow"
	"github.com/ormasoftchile/stepflow/pkg/prompt"
	"github.com/ormasoftchile/stepflow/pkg/step"
)

// flaky fails its first n executions.
type flaky struct {
	step.Step
	failures int
}

func (s *flaky) Execute(ctx context.Context, env *step.Env) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("boom")
	}
	return s.Step.Execute(ctx, env)
}

func events(t *testing.T, data string) []Event {
	t.Helper()
	var out []Event
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		var evt Event
		require.NoError(t, json.Unmarshal([]byte(line), &evt), line)
		out = append(out, evt)
	}
	return out
}

func types(evts []Event) []EventType {
	out := make([]EventType, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

func runFlow(t *testing.T, tw *Writer, f *flow.Flow, answers ...string) error {
	t.Helper()
	_, err := f.Run(context.Background(), flow.RunConfig{
		Prompter: prompt.NewScript(answers),
		RunID:    "run-1",
		Stdout:   &bytes.Buffer{},
		Stderr:   &bytes.Buffer{},
		Observer: tw,
	})
	return err
}

func TestWriter_Emit(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf)

	err := tw.Emit(EventStepStart, flow.RunInfo{ID: "test-run-1", Flow: "demo"}, map[string]any{"step": 1})
	require.NoError(t, err)

	evts := events(t, buf.String())
	require.Len(t, evts, 1)
	assert.Equal(t, EventStepStart, evts[0].Type)
	assert.Equal(t, "test-run-1", evts[0].RunID)
	assert.Equal(t, "demo", evts[0].Flow)
	assert.Equal(t, Genesis, evts[0].PrevHash)
	assert.EqualValues(t, 1, evts[0].Data["step"])
}

func TestWriter_ObservesRun(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf)

	f := flow.New("demo")
	_, _ = f.Add(&flaky{Step: step.NewTitle("T", "S"), failures: 1})
	_, _ = f.Add(step.NewEnd())

	require.NoError(t, runFlow(t, tw, f, "y", "y", "n", "y"))
	require.NoError(t, tw.Err())

	evts := events(t, buf.String())
	assert.Equal(t, []EventType{
		EventRunStart,
		EventStepStart, EventStepError, EventStepCompleted,
		EventStepStart, EventStepSkipped,
		EventRunComplete,
	}, types(evts))

	assert.Equal(t, "title", evts[1].Data["kind"])
	assert.Contains(t, evts[2].Data["error"], "boom")
	assert.EqualValues(t, 2, evts[3].Data["attempts"])
	assert.EqualValues(t, 1, evts[6].Data["completed"])
	assert.EqualValues(t, 1, evts[6].Data["skipped"])
	assert.EqualValues(t, 1, evts[6].Data["errors"])
	assert.Len(t, evts[6].Data["chain_hash"], 64)

	res, err := Verify(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Error)
	assert.Equal(t, 7, res.EventCount)
	assert.Equal(t, 1, res.Runs)
}

func TestWriter_AbortedRun(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf)

	f := flow.New("demo")
	_, _ = f.Add(step.NewEnd())
	require.Error(t, runFlow(t, tw, f, "n", "n"))

	evts := events(t, buf.String())
	assert.Equal(t, []EventType{EventRunStart, EventStepStart, EventInvalidDecision, EventRunAborted}, types(evts))
	assert.Contains(t, evts[3].Data["error"], "script exhausted")
}

func TestWriter_HashChaining(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf)
	run := flow.RunInfo{ID: "r", Flow: "f"}

	require.NoError(t, tw.Emit(EventRunStart, run, nil))
	require.NoError(t, tw.Emit(EventStepStart, run, nil))
	require.NoError(t, tw.Emit(EventRunComplete, run, nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	evts := events(t, buf.String())
	assert.Equal(t, Genesis, evts[0].PrevHash)
	assert.Equal(t, hashLine([]byte(lines[0])), evts[1].PrevHash)
	assert.Equal(t, hashLine([]byte(lines[1])), evts[2].PrevHash)
	assert.Equal(t, evts[2].PrevHash, evts[2].Data["chain_hash"])
}

func TestVerify_DetectsTampering(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf)
	run := flow.RunInfo{ID: "r", Flow: "f"}
	_ = tw.Emit(EventRunStart, run, map[string]any{"steps": 2})
	_ = tw.Emit(EventStepStart, run, map[string]any{"step": 1})
	_ = tw.Emit(EventRunComplete, run, nil)

	tampered := strings.Replace(buf.String(), `"steps":2`, `"steps":3`, 1)
	res, err := Verify(strings.NewReader(tampered))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 2, res.BrokenAt)
	assert.Contains(t, res.Error, "prev_hash mismatch")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	res, err = Verify(strings.NewReader(lines[0] + "\n" + lines[2] + "\n"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 2, res.BrokenAt)

	res, err = Verify(strings.NewReader("{not json\n"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "invalid JSON")
}

func TestFileWriter_ContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	run := flow.RunInfo{ID: "r", Flow: "f"}

	for range 2 {
		tw, err := NewFileWriter(path)
		require.NoError(t, err)
		require.NoError(t, tw.Emit(EventRunStart, run, nil))
		require.NoError(t, tw.Emit(EventRunComplete, run, map[string]any{"duration": time.Second.String()}))
		require.NoError(t, tw.Close())
	}

	res, err := VerifyFile(path)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Error)
	assert.Equal(t, 4, res.EventCount)
	assert.Equal(t, 2, res.Runs)
}

func TestVerifyFile_Missing(t *testing.T) {
	_, err := VerifyFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
