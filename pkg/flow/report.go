package flow

import (
	"time"

	"github.com/ormasoftchile/stepflow/pkg/step"
)

// Report is a point-in-time snapshot of a flow's analytics.
type Report struct {
	Flow          string       `yaml:"flow"           json:"flow"`
	CreatedAt     time.Time    `yaml:"created_at"     json:"created_at"`
	FlowStarted   int          `yaml:"flow_started"   json:"flow_started"`
	FlowCompleted int          `yaml:"flow_completed" json:"flow_completed"`
	TotalErrors   int          `yaml:"total_errors"   json:"total_errors"`
	Steps         []StepReport `yaml:"steps"          json:"steps"`
}

// StepReport is the analytics of one step, in flow order.
type StepReport struct {
	Index         int       `yaml:"index" json:"index"`
	Kind          step.Kind `yaml:"kind"  json:"kind"`
	Label         string    `yaml:"label" json:"label"`
	StepAnalytics `yaml:",inline"`
}

// AverageErrors returns the errors accumulated over every run divided by
// the number of completed runs. ok is false when no run has completed.
func (r Report) AverageErrors() (avg float64, ok bool) {
	if r.FlowCompleted == 0 {
		return 0, false
	}
	return float64(r.TotalErrors) / float64(r.FlowCompleted), true
}
