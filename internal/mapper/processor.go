package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/config"
)

// ErrNoEvaluator is returned when a value needs an expression but the
// mapper was built without an evaluator.
var ErrNoEvaluator = errors.New("no expression evaluator configured")

// Evaluator evaluates an expression with value bound to a string.
type Evaluator interface {
	EvaluateString(ctx context.Context, expression string, input string) (string, error)
}

// Processor applies the processing steps of a value.
type Processor struct {
	escaper backend.Escaper
	eval    Evaluator
}

// NewProcessor creates a processor. eval may be nil when no value uses
// expressions.
func NewProcessor(escaper backend.Escaper, eval Evaluator) *Processor {
	if escaper == nil {
		escaper = backend.Identity
	}
	return &Processor{escaper: escaper, eval: eval}
}

// Process runs preprocess, escapes exactly once, then runs postprocess.
func (p *Processor) Process(ctx context.Context, raw string, v config.Value) (string, error) {
	value := raw

	if v.Preprocess != "" {
		out, err := p.evaluate(ctx, v.Preprocess, value)
		if err != nil {
			return "", fmt.Errorf("preprocess: %w", err)
		}
		value = out
	}

	value = p.escaper.Escape(value)

	if v.Postprocess != "" {
		out, err := p.evaluate(ctx, v.Postprocess, value)
		if err != nil {
			return "", fmt.Errorf("postprocess: %w", err)
		}
		value = out
	}
	return value, nil
}

func (p *Processor) evaluate(ctx context.Context, expression, value string) (string, error) {
	if p.eval == nil {
		return "", ErrNoEvaluator
	}
	return p.eval.EvaluateString(ctx, expression, value)
}
