package step

import (
	"context"
	"errors"
	"fmt"
)

// Number is the set of numeric types number steps can carry.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// NumberInput prints a described number.
type NumberInput[T Number] struct {
	Description string
	Value       T
}

func NewNumberInput[T Number](description string, value T) *NumberInput[T] {
	return &NumberInput[T]{Description: description, Value: value}
}

func (s *NumberInput[T]) Kind() Kind    { return KindNumberInput }
func (s *NumberInput[T]) Label() string { return s.Description }
func (s *NumberInput[T]) sealed()       {}

func (s *NumberInput[T]) Execute(_ context.Context, env *Env) error {
	fmt.Fprintf(env.Out(), "Description: %s\n", s.Description)
	fmt.Fprintf(env.Out(), "Number Input: %v\n", s.Value)
	return nil
}

// Operation is a binary fold operator applied by Calculus.
type Operation string

const (
	OpAdd Operation = "+"
	OpSub Operation = "-"
	OpMul Operation = "*"
	OpDiv Operation = "/"
	OpMin Operation = "min"
	OpMax Operation = "max"
)

// Operations lists the supported operators.
var Operations = []Operation{OpAdd, OpSub, OpMul, OpDiv, OpMin, OpMax}

// Valid reports whether op is a supported operator.
func (op Operation) Valid() bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

var (
	ErrInvalidCalculus = errors.New("invalid calculus configuration")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrUnsupportedOp   = errors.New("unsupported operation")
)

// Calculus folds Values left to right, starting from the first element and
// consuming at most Steps-1 further elements.
type Calculus[T Number] struct {
	Steps  int
	Values []T
	Op     Operation
}

func NewCalculus[T Number](steps int, values []T, op Operation) *Calculus[T] {
	return &Calculus[T]{Steps: steps, Values: values, Op: op}
}

func (s *Calculus[T]) Kind() Kind { return KindCalculus }
func (s *Calculus[T]) sealed()    {}

func (s *Calculus[T]) Label() string {
	return fmt.Sprintf("calculus %s over %d values", s.Op, len(s.Values))
}

func (s *Calculus[T]) Execute(_ context.Context, env *Env) error {
	result, err := s.Compute()
	if err != nil {
		return &ExecutionError{Kind: KindCalculus, Err: err}
	}
	fmt.Fprintf(env.Out(), "Calculus Result: %v\n", result)
	return nil
}

// Compute returns the folded result without printing it.
func (s *Calculus[T]) Compute() (T, error) {
	var zero T
	if s.Steps <= 0 || len(s.Values) < 2 {
		return zero, fmt.Errorf("%w: steps=%d values=%d", ErrInvalidCalculus, s.Steps, len(s.Values))
	}
	if !s.Op.Valid() {
		return zero, fmt.Errorf("%w: %q", ErrUnsupportedOp, s.Op)
	}

	result := s.Values[0]
	for i := 1; i < s.Steps && i < len(s.Values); i++ {
		v := s.Values[i]
		switch s.Op {
		case OpAdd:
			result += v
		case OpSub:
			result -= v
		case OpMul:
			result *= v
		case OpDiv:
			if v == 0 {
				return zero, fmt.Errorf("%w at value %d", ErrDivisionByZero, i+1)
			}
			result /= v
		case OpMin:
			result = min(result, v)
		case OpMax:
			result = max(result, v)
		}
	}
	return result, nil
}
