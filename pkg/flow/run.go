package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/stepflow/pkg/step"
)

// Prompter answers the yes/no questions Run asks at each decision point.
// Implementations deal with malformed input themselves; an error means no
// answer can be obtained at all (closed input, cancelled context) and ends
// the run.
type Prompter interface {
	AskRun(ctx context.Context, index int, s step.Step) (bool, error)
	AskSkip(ctx context.Context, index int, s step.Step) (bool, error)
	AskCompleted(ctx context.Context, index int, s step.Step) (bool, error)
}

// ErrNoPrompter is returned by Run when RunConfig.Prompter is nil.
var ErrNoPrompter = errors.New("no prompter configured")

// RunConfig configures one execution of a flow.
type RunConfig struct {
	Prompter Prompter
	RunID    string          // generated when empty
	Stdout   io.Writer       // defaults to os.Stdout
	Stderr   io.Writer       // defaults to os.Stderr
	Input    step.LineReader // free-form input for steps that ask for it
	Dir      string          // directory output steps write to
	Observer Observer
}

// RunResult summarises one execution.
type RunResult struct {
	RunID     string
	Flow      string
	Completed int // steps confirmed completed in this run
	Skipped   int
	Errors    int // failed executions in this run
	Duration  time.Duration
}

// decision is the state of the step currently being visited.
type decision int

const (
	decisionPending decision = iota
	decisionRunning
	decisionSkipped
	decisionAdvance
)

// runner holds the per-run state shared by the step visits.
type runner struct {
	f      *Flow
	cfg    RunConfig
	info   RunInfo
	obs    Observer
	result *RunResult
}

// Run visits every step in order, asking the prompter whether to run or
// skip it and retrying failed or unconfirmed executions until the user
// confirms completion. Step failures never abort the run; only a prompter
// error (or a cancelled context) does, in which case the flow is not
// counted as completed.
func (f *Flow) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if cfg.Prompter == nil {
		return nil, ErrNoPrompter
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	obs := cfg.Observer
	if obs == nil {
		obs = NoopObserver{}
	}

	r := &runner{
		f:      f,
		cfg:    cfg,
		info:   RunInfo{ID: cfg.RunID, Flow: f.name},
		obs:    obs,
		result: &RunResult{RunID: cfg.RunID, Flow: f.name},
	}
	start := time.Now()

	f.mu.Lock()
	f.flowStarted++
	f.mu.Unlock()
	obs.OnRunStart(ctx, r.info, f.Len())

	for i := 0; i < f.Len(); i++ {
		if err := r.visit(ctx, i); err != nil {
			err = fmt.Errorf("flow %q step %d: %w", f.name, i+1, err)
			obs.OnRunAborted(ctx, r.info, err)
			return r.result, err
		}
	}

	f.mu.Lock()
	f.flowCompleted++
	f.mu.Unlock()

	r.result.Duration = time.Since(start)
	obs.OnRunComplete(ctx, r.info, r.result)
	return r.result, nil
}

// visit drives the decision state machine for step index until it
// advances.
func (r *runner) visit(ctx context.Context, index int) error {
	s, _ := r.f.Step(index)
	start := time.Now()
	attempts := 0

	state := decisionPending
	for state != decisionAdvance {
		switch state {
		case decisionPending:
			// Every presentation is a visit, including one that follows an
			// invalid decision.
			r.f.update(index, func(a *StepAnalytics) { a.Started++ })
			r.obs.OnStepStart(ctx, r.info, index, s)
			next, err := r.decide(ctx, index, s)
			if err != nil {
				return err
			}
			state = next

		case decisionRunning:
			if err := ctx.Err(); err != nil {
				return err
			}
			attempts++
			done, err := r.attempt(ctx, index, s)
			if err != nil {
				return err
			}
			if done {
				r.f.update(index, func(a *StepAnalytics) { a.Completed++ })
				r.result.Completed++
				fmt.Fprintf(r.cfg.Stdout, "Step %d completed.\n", index+1)
				r.obs.OnStepResolved(ctx, r.info, index, s, OutcomeCompleted, attempts, time.Since(start))
				state = decisionAdvance
			}

		case decisionSkipped:
			r.f.update(index, func(a *StepAnalytics) { a.Skipped++ })
			r.result.Skipped++
			fmt.Fprintf(r.cfg.Stdout, "Step %d skipped.\n", index+1)
			r.obs.OnStepResolved(ctx, r.info, index, s, OutcomeSkipped, attempts, time.Since(start))
			state = decisionAdvance
		}
	}
	return nil
}

// decide asks run? and then skip?. Declining both leaves the step pending
// so the same step is presented again.
func (r *runner) decide(ctx context.Context, index int, s step.Step) (decision, error) {
	run, err := r.cfg.Prompter.AskRun(ctx, index, s)
	if err != nil {
		return decisionPending, fmt.Errorf("ask run: %w", err)
	}
	if run {
		return decisionRunning, nil
	}

	skip, err := r.cfg.Prompter.AskSkip(ctx, index, s)
	if err != nil {
		return decisionPending, fmt.Errorf("ask skip: %w", err)
	}
	if skip {
		return decisionSkipped, nil
	}

	fmt.Fprintln(r.cfg.Stderr, "Invalid input. Please enter 'y' or 'n'.")
	r.obs.OnInvalidDecision(ctx, r.info, index)
	return decisionPending, nil
}

// attempt executes the step once. done reports whether the user confirmed
// completion; a failed or unconfirmed execution returns done=false so the
// caller retries.
func (r *runner) attempt(ctx context.Context, index int, s step.Step) (done bool, err error) {
	env := &step.Env{
		Stdout: r.cfg.Stdout,
		Stderr: r.cfg.Stderr,
		Input:  r.cfg.Input,
		Steps:  scope{f: r.f, current: index},
		Dir:    r.cfg.Dir,
	}

	if execErr := s.Execute(ctx, env); execErr != nil {
		if interrupted(ctx, execErr) {
			return false, execErr
		}
		if !errors.Is(execErr, step.ErrExecution) {
			execErr = &step.ExecutionError{Kind: s.Kind(), Err: execErr}
		}
		r.f.recordError(index)
		r.result.Errors++
		fmt.Fprintf(r.cfg.Stderr, "Flow Execution Error: %v\n", execErr)
		fmt.Fprintln(r.cfg.Stdout, "Retrying the step...")
		r.obs.OnStepError(ctx, r.info, index, s, execErr)
		return false, nil
	}

	completed, err := r.cfg.Prompter.AskCompleted(ctx, index, s)
	if err != nil {
		return false, fmt.Errorf("ask completed: %w", err)
	}
	return completed, nil
}

// interrupted reports whether err means the user can no longer answer, as
// opposed to an ordinary step failure.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
