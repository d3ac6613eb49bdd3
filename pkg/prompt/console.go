// Package prompt provides the Prompter implementations the flow engine
// consults: an interactive console backed by readline and a scripted
// prompter fed from an answers file.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/stepflow/pkg/step"
)

// ErrClosed is returned once no more input can be read. It matches io.EOF.
var ErrClosed = fmt.Errorf("input closed: %w", io.EOF)

// ParseAnswer maps y/yes/n/no (any case) to a boolean. ok is false for
// anything else.
func ParseAnswer(s string) (answer, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}

type lineSource interface {
	readLine(prompt string) (string, error)
	Close() error
}

// Console asks questions on a terminal. Malformed answers are reported
// and the question is asked again.
type Console struct {
	src  lineSource
	errw io.Writer
}

// NewConsole returns a readline-backed console on the process terminal.
// completions are offered on tab for free-form input.
func NewConsole(completions ...string) (*Console, error) {
	completer := readline.NewPrefixCompleter()
	for _, c := range completions {
		completer.Children = append(completer.Children, readline.PcItem(c))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	return &Console{src: &readlineSource{rl: rl}, errw: os.Stderr}, nil
}

// NewReaderConsole returns a console reading lines from r and writing
// prompts to w. Errors go to os.Stderr.
func NewReaderConsole(r io.Reader, w io.Writer) *Console {
	return &Console{src: &scannerSource{sc: bufio.NewScanner(r), w: w}, errw: os.Stderr}
}

// SetErrorOutput redirects where malformed-input notices are written.
func (c *Console) SetErrorOutput(w io.Writer) { c.errw = w }

// Close releases the terminal.
func (c *Console) Close() error { return c.src.Close() }

// ReadLine reads one line of free-form input.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := c.src.readLine(prompt)
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", ErrClosed
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks question until it gets a y/n answer.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		line, err := c.ReadLine(ctx, question+" (y/n): ")
		if err != nil {
			return false, err
		}
		if answer, ok := ParseAnswer(line); ok {
			return answer, nil
		}
		fmt.Fprintln(c.errw, "Invalid input. Please enter 'y' or 'n'.")
	}
}

func (c *Console) AskRun(ctx context.Context, index int, s step.Step) (bool, error) {
	return c.Confirm(ctx, fmt.Sprintf("Do you want to run step %d (%s)?", index+1, describe(s)))
}

func (c *Console) AskSkip(ctx context.Context, index int, _ step.Step) (bool, error) {
	return c.Confirm(ctx, fmt.Sprintf("Do you want to skip step %d?", index+1))
}

func (c *Console) AskCompleted(ctx context.Context, index int, _ step.Step) (bool, error) {
	return c.Confirm(ctx, fmt.Sprintf("Have you completed the action of step %d?", index+1))
}

func describe(s step.Step) string {
	if s == nil {
		return ""
	}
	if label := s.Label(); label != "" {
		return fmt.Sprintf("%s: %s", s.Kind(), label)
	}
	return string(s.Kind())
}

type readlineSource struct {
	rl *readline.Instance
}

func (r *readlineSource) readLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	return r.rl.Readline()
}

func (r *readlineSource) Close() error { return r.rl.Close() }

type scannerSource struct {
	sc *bufio.Scanner
	w  io.Writer
}

func (s *scannerSource) readLine(prompt string) (string, error) {
	fmt.Fprint(s.w, prompt)
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

func (s *scannerSource) Close() error { return nil }
