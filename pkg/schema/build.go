package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/ormasoftchile/stepflow/pkg/flow"
	"github.com/ormasoftchile/stepflow/pkg/step"
)

// Numeric types of number_input and calculus steps.
const (
	NumericInt   = "int"
	NumericFloat = "float"
)

// Build appends the template's steps to f. Display references are
// resolved to indexes of the steps appended by this call.
func (t *Template) Build(f *flow.Flow) error {
	ids := make(map[string]int)
	for i, sd := range t.Steps {
		s, err := NewStep(sd, ids)
		if err != nil {
			return fmt.Errorf("template %q step %d: %w", t.Name, i+1, err)
		}
		idx, err := f.Add(s)
		if err != nil {
			return fmt.Errorf("template %q step %d: %w", t.Name, i+1, err)
		}
		if sd.ID != "" {
			ids[sd.ID] = idx
		}
	}
	return nil
}

// NewStep converts a definition into an executable step. ids maps the ids
// of already-added steps to their flow index.
func NewStep(sd StepDef, ids map[string]int) (step.Step, error) {
	switch step.Kind(sd.Type) {
	case step.KindTitle:
		return step.NewTitle(sd.Title, sd.Subtitle), nil
	case step.KindText:
		return step.NewText(sd.Title, sd.Content), nil
	case step.KindTextInput:
		return step.NewTextInput(sd.Description, sd.Input), nil
	case step.KindCSVInput:
		return step.NewCSVInput(sd.Description, sd.Path), nil
	case step.KindFileInput:
		return step.NewFileInput(sd.Description, sd.Path), nil
	case step.KindTextFile:
		return step.NewTextFile(sd.Description, sd.Path), nil
	case step.KindCSVFile:
		return step.NewCSVFile(sd.Description, sd.Path), nil
	case step.KindDisplay:
		ref, ok := ids[sd.Ref]
		if !ok {
			// Left unresolved on purpose: the step reports it when executed.
			ref = step.NoRef
		}
		return step.NewDisplay(ref), nil
	case step.KindNumberInput:
		return newNumberInput(sd)
	case step.KindCalculus:
		return newCalculus(sd)
	case step.KindOutput:
		return step.NewOutput(sd.FileType, sd.Description, sd.Content), nil
	case step.KindEnd:
		return step.NewEnd(), nil
	}
	return nil, fmt.Errorf("unknown step type %q", sd.Type)
}

func newNumberInput(sd StepDef) (step.Step, error) {
	nums, err := evalNumbers(sd.Numeric, []any{sd.Value})
	if err != nil {
		return nil, err
	}
	if isFloat(sd.Numeric) {
		return step.NewNumberInput(sd.Description, nums[0]), nil
	}
	return step.NewNumberInput(sd.Description, int(nums[0])), nil
}

func newCalculus(sd StepDef) (step.Step, error) {
	nums, err := evalNumbers(sd.Numeric, sd.Values)
	if err != nil {
		return nil, err
	}
	op := step.Operation(sd.Operation)
	if isFloat(sd.Numeric) {
		return step.NewCalculus(sd.Steps, nums, op), nil
	}
	ints := make([]int, len(nums))
	for i, n := range nums {
		ints[i] = int(n)
	}
	return step.NewCalculus(sd.Steps, ints, op), nil
}

func isFloat(numeric string) bool { return numeric == NumericFloat }

// evalNumbers evaluates literal numbers and expr-lang expressions
// ("6 * 7", "max(2, 9)") to float64. For int steps every value must be
// integral.
func evalNumbers(numeric string, values []any) ([]float64, error) {
	switch numeric {
	case "", NumericInt, NumericFloat:
	default:
		return nil, fmt.Errorf("unknown numeric type %q", numeric)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		n, err := evalNumber(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		if !isFloat(numeric) && n != math.Trunc(n) {
			return nil, fmt.Errorf("value %d: %v is not an integer", i+1, n)
		}
		out[i] = n
	}
	return out, nil
}

func evalNumber(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		src := strings.TrimSpace(n)
		if src == "" {
			return 0, fmt.Errorf("empty expression")
		}
		program, err := expr.Compile(src)
		if err != nil {
			return 0, fmt.Errorf("compile expression %q: %w", src, err)
		}
		out, err := expr.Run(program, nil)
		if err != nil {
			return 0, fmt.Errorf("eval expression %q: %w", src, err)
		}
		if _, ok := out.(string); ok {
			return 0, fmt.Errorf("expression %q is not numeric", src)
		}
		return evalNumber(out)
	case nil:
		return 0, fmt.Errorf("missing value")
	}
	return 0, fmt.Errorf("%v (%T) is not a number", v, v)
}
