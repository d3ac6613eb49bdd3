package prompt

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/stepflow/pkg/step"
)

// ErrScriptExhausted is returned when a Script runs out of answers or
// lines. It matches io.EOF so the engine treats it as closed input.
var ErrScriptExhausted = fmt.Errorf("script exhausted: %w", io.EOF)

// ScriptFile is the YAML form of a Script.
//
//	answers: [y, n, y]
//	lines: [report]
type ScriptFile struct {
	Answers []string `yaml:"answers"`
	Lines   []string `yaml:"lines,omitempty"`
}

// Script answers questions from a fixed list, in order. Malformed answers
// are reported and consume the next answer, the same way Console re-asks.
type Script struct {
	answers []string
	lines   []string
	errw    io.Writer

	// Asked records every question in the order it was asked.
	Asked []string
}

// NewScript returns a script answering with answers and providing lines
// as free-form input.
func NewScript(answers []string, lines ...string) *Script {
	return &Script{answers: answers, lines: lines, errw: io.Discard}
}

// LoadScriptFile reads a YAML answers file.
func LoadScriptFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open answers: %w", err)
	}
	defer f.Close()
	return LoadScript(f)
}

// LoadScript decodes a YAML answers document.
func LoadScript(r io.Reader) (*Script, error) {
	var sf ScriptFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return NewScript(sf.Answers, sf.Lines...), nil
}

// SetErrorOutput sets where malformed-answer notices are written.
func (s *Script) SetErrorOutput(w io.Writer) { s.errw = w }

// Remaining returns the number of unused answers.
func (s *Script) Remaining() int { return len(s.answers) }

func (s *Script) confirm(ctx context.Context, question string) (bool, error) {
	s.Asked = append(s.Asked, question)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if len(s.answers) == 0 {
			return false, ErrScriptExhausted
		}
		next := s.answers[0]
		s.answers = s.answers[1:]
		if answer, ok := ParseAnswer(next); ok {
			return answer, nil
		}
		fmt.Fprintln(s.errw, "Invalid input. Please enter 'y' or 'n'.")
	}
}

func (s *Script) AskRun(ctx context.Context, index int, _ step.Step) (bool, error) {
	return s.confirm(ctx, fmt.Sprintf("run %d", index+1))
}

func (s *Script) AskSkip(ctx context.Context, index int, _ step.Step) (bool, error) {
	return s.confirm(ctx, fmt.Sprintf("skip %d", index+1))
}

func (s *Script) AskCompleted(ctx context.Context, index int, _ step.Step) (bool, error) {
	return s.confirm(ctx, fmt.Sprintf("completed %d", index+1))
}

// ReadLine returns the next scripted line.
func (s *Script) ReadLine(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.lines) == 0 {
		return "", ErrScriptExhausted
	}
	next := s.lines[0]
	s.lines = s.lines[1:]
	return next, nil
}
