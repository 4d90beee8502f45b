package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dop251/goja"
)

// removed lists the host globals hidden from expressions.
var removed = []string{"require", "process", "module", "exports", "setTimeout", "setInterval"}

// runtime wraps one goja VM. It is used by one evaluation at a time.
type runtime struct {
	vm      *goja.Runtime
	timeout time.Duration
	globals map[string]struct{}
}

func newRuntime(timeout time.Duration) *runtime {
	r := &runtime{timeout: timeout}
	r.reset()
	return r
}

// reset replaces the VM with a clean one.
func (r *runtime) reset() {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	for _, name := range removed {
		vm.Set(name, goja.Undefined())
	}
	vm.Set("value", goja.Undefined())

	keys := vm.GlobalObject().Keys()
	r.globals = make(map[string]struct{}, len(keys))
	for _, key := range keys {
		r.globals[key] = struct{}{}
	}
	r.vm = vm
}

// polluted reports whether a run left globals behind, either new ones or a
// hidden host global that was assigned.
func (r *runtime) polluted() bool {
	keys := r.vm.GlobalObject().Keys()
	if len(keys) != len(r.globals) {
		return true
	}
	for _, key := range keys {
		if _, ok := r.globals[key]; !ok {
			return true
		}
	}
	for _, name := range removed {
		if v := r.vm.Get(name); v != nil && !goja.IsUndefined(v) {
			return true
		}
	}
	return false
}

// run executes program with value bound to input and hands the result to
// convert while the VM is still owned by the caller.
func (r *runtime) run(ctx context.Context, program *goja.Program, input any, convert func(goja.Value) (any, error)) (any, error) {
	if err := r.vm.Set("value", exportable(input)); err != nil {
		return nil, fmt.Errorf("bind value: %w", err)
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := r.vm.RunProgram(program)

	// An interrupt can land after the program finished; clear it so the
	// next run on this VM starts clean.
	close(done)
	<-stopped
	r.vm.ClearInterrupt()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
		}
		return nil, err
	}
	return convert(val)
}

// exportable converts a Document into values goja maps onto plain JS
// types. JSON numbers become float64 or int64.
func exportable(input any) any {
	switch v := input.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = exportable(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = exportable(child)
		}
		return out
	default:
		return v
	}
}
