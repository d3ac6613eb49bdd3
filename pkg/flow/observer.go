package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/ormasoftchile/stepflow/pkg/step"
)

// RunInfo identifies one execution of a flow.
type RunInfo struct {
	ID   string
	Flow string
}

// Outcome is how a visited step was resolved.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
)

// Observer receives callbacks from Run for logging and tracing.
// Implementations must not block: they run inline with the state machine.
type Observer interface {
	OnRunStart(ctx context.Context, run RunInfo, steps int)
	OnStepStart(ctx context.Context, run RunInfo, index int, s step.Step)
	OnInvalidDecision(ctx context.Context, run RunInfo, index int)
	OnStepError(ctx context.Context, run RunInfo, index int, s step.Step, err error)
	OnStepResolved(ctx context.Context, run RunInfo, index int, s step.Step, outcome Outcome, attempts int, d time.Duration)
	OnRunComplete(ctx context.Context, run RunInfo, result *RunResult)
	OnRunAborted(ctx context.Context, run RunInfo, err error)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(context.Context, RunInfo, int)                   {}
func (NoopObserver) OnStepStart(context.Context, RunInfo, int, step.Step)       {}
func (NoopObserver) OnInvalidDecision(context.Context, RunInfo, int)            {}
func (NoopObserver) OnStepError(context.Context, RunInfo, int, step.Step, error) {}
func (NoopObserver) OnStepResolved(context.Context, RunInfo, int, step.Step, Outcome, int, time.Duration) {
}
func (NoopObserver) OnRunComplete(context.Context, RunInfo, *RunResult) {}
func (NoopObserver) OnRunAborted(context.Context, RunInfo, error)       {}

// CompositeObserver fans events out to several observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver returns an Observer forwarding to every non-nil
// observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopObserver{}
	case 1:
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, run RunInfo, steps int) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, run, steps)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, run RunInfo, index int, s step.Step) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, run, index, s)
	}
}

func (c *CompositeObserver) OnInvalidDecision(ctx context.Context, run RunInfo, index int) {
	for _, o := range c.observers {
		o.OnInvalidDecision(ctx, run, index)
	}
}

func (c *CompositeObserver) OnStepError(ctx context.Context, run RunInfo, index int, s step.Step, err error) {
	for _, o := range c.observers {
		o.OnStepError(ctx, run, index, s, err)
	}
}

func (c *CompositeObserver) OnStepResolved(ctx context.Context, run RunInfo, index int, s step.Step, outcome Outcome, attempts int, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepResolved(ctx, run, index, s, outcome, attempts, d)
	}
}

func (c *CompositeObserver) OnRunComplete(ctx context.Context, run RunInfo, result *RunResult) {
	for _, o := range c.observers {
		o.OnRunComplete(ctx, run, result)
	}
}

func (c *CompositeObserver) OnRunAborted(ctx context.Context, run RunInfo, err error) {
	for _, o := range c.observers {
		o.OnRunAborted(ctx, run, err)
	}
}

// LoggingObserver writes structured run events with log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver returns an Observer logging to logger, or to
// slog.Default() when logger is nil.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, run RunInfo, steps int) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.String("flow", run.Flow),
		slog.String("run_id", run.ID),
		slog.Int("steps", steps),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, run RunInfo, index int, s step.Step) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("flow", run.Flow),
		slog.String("run_id", run.ID),
		slog.Int("step_index", index),
		slog.String("kind", string(s.Kind())),
	)
}

func (o *LoggingObserver) OnInvalidDecision(ctx context.Context, run RunInfo, index int) {
	o.Logger.WarnContext(ctx, "invalid_decision",
		slog.String("flow", run.Flow),
		slog.String("run_id", run.ID),
		slog.Int("step_index", index),
	)
}

func (o *LoggingObserver) OnStepError(ctx context.Context, run RunInfo, index int, s step.Step, err error) {
	o.Logger.WarnContext(ctx, "step_error",
		slog.String("flow", run.Flow),
		slog.String("run_id", run.ID),
		slog.Int("step_index", index),
		slog.String("kind", string(s.Kind())),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepResolved(ctx context.Context, run RunInfo, index int, s step.Step, outcome Outcome, attempts int, d time.Duration) {
	o.Logger.DebugContext(ctx, "step_resolved",
		slog.String("flow", run.Flow),
		slog.String("run_id", run.ID),
		slog.Int("step_index", index),
		slog.String("kind", string(s.Kind())),
		slog.String("outcome", string(outcome)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnRunComplete(ctx context.Context, run RunInfo, result *RunResult) {
	o.Logger.InfoContext(ctx, "run_complete",
		slog.String("flow", run.Flow),
		slog.String("run_id", run.ID),
		slog.Int("completed", result.Completed),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
}

func (o *LoggingObserver) OnRunAborted(ctx context.Context, run RunInfo, err error) {
	o.Logger.ErrorContext(ctx, "run_aborted",
		slog.String("flow", run.Flow),
		slog.String("run_id", run.ID),
		slog.Any("error", err),
	)
}
