// Package flow implements the interactive flow execution engine: an owned,
// ordered list of steps, the per-step run/skip/retry state machine and the
// analytics it accumulates.
package flow

import (
	"errors"
	"sync"
	"time"

	"github.com/ormasoftchile/stepflow/pkg/step"
)

// ErrNilStep is returned when adding a nil step.
var ErrNilStep = errors.New("nil step")

// StepAnalytics are the usage counters of one step.
type StepAnalytics struct {
	Started   int `yaml:"started"   json:"started"`
	Completed int `yaml:"completed" json:"completed"`
	Skipped   int `yaml:"skipped"   json:"skipped"`
	Errors    int `yaml:"errors"    json:"errors"`
}

// Flow is a named, append-only sequence of steps plus its analytics.
// The step index is the step's identity: analytics[i] belongs to steps[i].
type Flow struct {
	name      string
	createdAt time.Time

	mu            sync.Mutex
	steps         []step.Step
	analytics     []StepAnalytics
	flowStarted   int
	flowCompleted int
	totalErrors   int
}

// New creates an empty flow.
func New(name string) *Flow {
	return &Flow{name: name, createdAt: time.Now()}
}

func (f *Flow) Name() string         { return f.name }
func (f *Flow) CreatedAt() time.Time { return f.createdAt }

// Add appends a step and creates its analytics entry. It returns the
// step's index, which Display steps use to refer back to it.
func (f *Flow) Add(s step.Step) (int, error) {
	if s == nil {
		return -1, ErrNilStep
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, s)
	f.analytics = append(f.analytics, StepAnalytics{})
	return len(f.steps) - 1, nil
}

// Len returns the number of steps.
func (f *Flow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.steps)
}

// Step returns the step at index.
func (f *Flow) Step(index int) (step.Step, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.steps) {
		return nil, false
	}
	return f.steps[index], true
}

// Analytics returns a copy of the counters of the step at index.
func (f *Flow) Analytics(index int) (StepAnalytics, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.analytics) {
		return StepAnalytics{}, false
	}
	return f.analytics[index], true
}

// update applies fn to the analytics of step index under the flow lock.
func (f *Flow) update(index int, fn func(*StepAnalytics)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.analytics[index])
}

// recordError counts one failed execution of step index, both on the step
// and in the cross-run error total.
func (f *Flow) recordError(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analytics[index].Errors++
	f.totalErrors++
}

// Report returns a read-only snapshot of the flow's analytics.
func (f *Flow) Report() Report {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := Report{
		Flow:          f.name,
		CreatedAt:     f.createdAt,
		FlowStarted:   f.flowStarted,
		FlowCompleted: f.flowCompleted,
		TotalErrors:   f.totalErrors,
		Steps:         make([]StepReport, len(f.steps)),
	}
	for i, s := range f.steps {
		r.Steps[i] = StepReport{
			Index:         i,
			Kind:          s.Kind(),
			Label:         s.Label(),
			StepAnalytics: f.analytics[i],
		}
	}
	return r
}

// scope exposes the steps preceding the one being executed.
type scope struct {
	f       *Flow
	current int
}

func (s scope) StepAt(index int) (step.Step, bool) {
	if index < 0 || index >= s.current {
		return nil, false
	}
	return s.f.Step(index)
}
