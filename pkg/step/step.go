// Package step defines the closed set of executable step variants a flow is
// built from.
package step

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Kind identifies a step variant.
type Kind string

const (
	KindTitle       Kind = "title"
	KindText        Kind = "text"
	KindTextInput   Kind = "text_input"
	KindCSVInput    Kind = "csv_input"
	KindFileInput   Kind = "file_input"
	KindTextFile    Kind = "text_file"
	KindCSVFile     Kind = "csv_file"
	KindDisplay     Kind = "display"
	KindNumberInput Kind = "number_input"
	KindCalculus    Kind = "calculus"
	KindOutput      Kind = "output"
	KindEnd         Kind = "end"
)

// Kinds lists every step variant in declaration order.
var Kinds = []Kind{
	KindTitle, KindText, KindTextInput, KindCSVInput, KindFileInput,
	KindTextFile, KindCSVFile, KindDisplay, KindNumberInput, KindCalculus,
	KindOutput, KindEnd,
}

// Step is a single unit of work in a flow. The set of implementations is
// fixed to the variants in this package.
type Step interface {
	Kind() Kind
	// Label is a short human description used in prompts and reports.
	Label() string
	// Execute performs the step's side effect. Failures are *ExecutionError.
	Execute(ctx context.Context, env *Env) error

	sealed()
}

// ContentReader is implemented by steps that expose file content.
// Display prefers ReadContent over Execute when its target implements it.
type ContentReader interface {
	Step
	ReadContent(ctx context.Context, env *Env) error
}

// Resolver looks up steps of the owning flow by index. Only steps that
// precede the one currently executing are visible.
type Resolver interface {
	StepAt(index int) (Step, bool)
}

// LineReader reads one line of free-form input from the user.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Env carries the I/O a step may use while executing.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Input  LineReader
	Steps  Resolver
	// Dir is the directory output files are written to; empty means the
	// working directory.
	Dir string
}

// Out returns the stdout writer, defaulting to os.Stdout.
func (e *Env) Out() io.Writer {
	if e == nil || e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

// Errw returns the stderr writer, defaulting to os.Stderr.
func (e *Env) Errw() io.Writer {
	if e == nil || e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

// ErrExecution matches every *ExecutionError via errors.Is.
var ErrExecution = errors.New("step execution failed")

// ExecutionError reports that a step could not complete its side effect.
// It is always recoverable by retrying the step.
type ExecutionError struct {
	Kind Kind
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("error during flow execution in step: %s", e.Kind)
	}
	return fmt.Sprintf("error during flow execution in step: %s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

func fail(kind Kind, format string, args ...any) error {
	return &ExecutionError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
