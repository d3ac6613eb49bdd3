// Package trace writes an append-only JSONL audit trail of flow runs.
// Every event carries the SHA-256 of the previous line so that a trace file
// can be checked for tampering or truncation with Verify.
package trace

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ormasoftchile/stepflow/pkg/flow"
	"github.com/ormasoftchile/stepflow/pkg/step"
)

// EventType enumerates trace event types.
type EventType string

const (
	EventRunStart        EventType = "run_start"
	EventStepStart       EventType = "step_start"
	EventInvalidDecision EventType = "invalid_decision"
	EventStepError       EventType = "step_error"
	EventStepCompleted   EventType = "step_completed"
	EventStepSkipped     EventType = "step_skipped"
	EventRunComplete     EventType = "run_complete"
	EventRunAborted      EventType = "run_aborted"
)

// Genesis is the prev_hash of the first event of a trace.
var Genesis = strings.Repeat("0", 64)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Flow      string         `json:"flow"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events as JSONL. It implements flow.Observer, so it
// can be passed to flow.RunConfig directly.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	prevHash string
	err      error
	now      func() time.Time
}

var _ flow.Observer = (*Writer)(nil)

// NewWriter creates a trace writer that writes to w, starting a new chain.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, prevHash: Genesis, now: func() time.Time { return time.Now().UTC() }}
}

// NewFileWriter appends to the JSONL file at path. The chain continues from
// the last event already in the file.
func NewFileWriter(path string) (*Writer, error) {
	prev, err := lastHash(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f)
	tw.closer = f
	tw.prevHash = prev
	return tw, nil
}

func lastHash(path string) (string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Genesis, nil
	}
	if err != nil {
		return "", fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	prev := Genesis
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Bytes(); len(line) > 0 {
			prev = hashLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read trace file: %w", err)
	}
	return prev, nil
}

func hashLine(line []byte) string {
	h := sha256.Sum256(line)
	return hex.EncodeToString(h[:])
}

// Emit writes a single trace event. Terminal events (run_complete,
// run_aborted) also record the chain hash reached so far.
func (tw *Writer) Emit(eventType EventType, run flow.RunInfo, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if eventType == EventRunComplete || eventType == EventRunAborted {
		if data == nil {
			data = map[string]any{}
		}
		data["chain_hash"] = tw.prevHash
	}
	evt := Event{
		Type:      eventType,
		Timestamp: tw.now(),
		RunID:     run.ID,
		Flow:      run.Flow,
		PrevHash:  tw.prevHash,
		Data:      data,
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return tw.fail(fmt.Errorf("marshal %s event: %w", eventType, err))
	}
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return tw.fail(fmt.Errorf("write %s event: %w", eventType, err))
	}
	tw.prevHash = hashLine(line)
	return nil
}

func (tw *Writer) fail(err error) error {
	if tw.err == nil {
		tw.err = err
	}
	return err
}

// Err returns the first error met while emitting events through the
// Observer methods, which cannot report errors themselves.
func (tw *Writer) Err() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.err
}

// Close closes the underlying file of a writer made by NewFileWriter.
func (tw *Writer) Close() error {
	if tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

func stepData(index int, s step.Step) map[string]any {
	return map[string]any{
		"step":  index + 1,
		"kind":  string(s.Kind()),
		"label": s.Label(),
	}
}

func (tw *Writer) OnRunStart(_ context.Context, run flow.RunInfo, steps int) {
	_ = tw.Emit(EventRunStart, run, map[string]any{"steps": steps})
}

func (tw *Writer) OnStepStart(_ context.Context, run flow.RunInfo, index int, s step.Step) {
	_ = tw.Emit(EventStepStart, run, stepData(index, s))
}

func (tw *Writer) OnInvalidDecision(_ context.Context, run flow.RunInfo, index int) {
	_ = tw.Emit(EventInvalidDecision, run, map[string]any{"step": index + 1})
}

func (tw *Writer) OnStepError(_ context.Context, run flow.RunInfo, index int, s step.Step, err error) {
	data := stepData(index, s)
	data["error"] = err.Error()
	_ = tw.Emit(EventStepError, run, data)
}

func (tw *Writer) OnStepResolved(_ context.Context, run flow.RunInfo, index int, s step.Step, outcome flow.Outcome, attempts int, d time.Duration) {
	data := stepData(index, s)
	data["attempts"] = attempts
	data["duration"] = d.String()
	eventType := EventStepCompleted
	if outcome == flow.OutcomeSkipped {
		eventType = EventStepSkipped
	}
	_ = tw.Emit(eventType, run, data)
}

func (tw *Writer) OnRunComplete(_ context.Context, run flow.RunInfo, result *flow.RunResult) {
	_ = tw.Emit(EventRunComplete, run, map[string]any{
		"completed": result.Completed,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
		"duration":  result.Duration.String(),
	})
}

func (tw *Writer) OnRunAborted(_ context.Context, run flow.RunInfo, err error) {
	_ = tw.Emit(EventRunAborted, run, map[string]any{"error": err.Error()})
}
