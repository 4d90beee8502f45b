package script

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// Evaluator runs expressions against a single input value.
type Evaluator struct {
	config Config
	pool   *pool

	mu       sync.RWMutex
	programs map[string]*goja.Program
}

// New creates an evaluator with cfg, filling unset fields from
// DefaultConfig.
func New(cfg Config) *Evaluator {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = def.AcquireTimeout
	}

	return &Evaluator{
		config:   cfg,
		pool:     newPool(cfg),
		programs: make(map[string]*goja.Program),
	}
}

// Compile parses expression and caches the program. It is used at startup
// so broken expressions are configuration errors instead of runtime ones.
func (e *Evaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *Evaluator) program(expression string) (*goja.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	if _, err := goja.Compile("expression", expression, false); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, expression, err)
	}
	program, err := goja.Compile("expression", scoped(expression), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, expression, err)
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()
	return program, nil
}

// scoped wraps expression in a function that evaluates it with direct
// eval. Declarations stay local to the call while the completion value of
// the expression is still the result.
func scoped(expression string) string {
	source, _ := json.Marshal(expression)
	return "(function() { return eval(" + string(source) + "); })()"
}

// Evaluate runs expression with value bound to input and returns the result
// exported to Go. undefined and null become nil.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, input any) (any, error) {
	return e.evaluate(ctx, expression, input, func(v goja.Value) (any, error) {
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, nil
		}
		return v.Export(), nil
	})
}

// EvaluateString runs expression and converts the result to its JS string
// form. A result of undefined or null is an error.
func (e *Evaluator) EvaluateString(ctx context.Context, expression string, input string) (string, error) {
	out, err := e.evaluate(ctx, expression, input, func(v goja.Value) (any, error) {
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, fmt.Errorf("%w: %q", ErrNoValue, expression)
		}
		return v.String(), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// EvaluateBool runs expression and applies JS truthiness to the result.
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, input any) (bool, error) {
	out, err := e.evaluate(ctx, expression, input, func(v goja.Value) (any, error) {
		if v == nil {
			return false, nil
		}
		return v.ToBoolean(), nil
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

func (e *Evaluator) evaluate(ctx context.Context, expression string, input any, convert func(goja.Value) (any, error)) (any, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	r, err := e.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}

	out, err := r.run(ctx, program, input, convert)
	e.pool.release(r, err != nil)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	return out, nil
}

// Stats reports pool usage and the number of cached programs.
func (e *Evaluator) Stats() map[string]any {
	stats := e.pool.stats()

	e.mu.RLock()
	stats["programs"] = len(e.programs)
	e.mu.RUnlock()

	return stats
}

// Close releases the pooled runtimes.
func (e *Evaluator) Close() error {
	e.pool.close()
	return nil
}
