package script

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateString(t *testing.T) {
	eval := New(DefaultConfig())
	defer eval.Close()

	tests := []struct {
		name       string
		expression string
		input      string
		want       string
	}{
		{"arithmetic coerces text", "value * 1000", "42", "42000"},
		{"string methods", "value.toUpperCase()", "on", "ON"},
		{"quoting", "\"'\" + value + \"'\"", "x", "'x'"},
		{"division", "value / 10", "215", "21.5"},
		{"ternary", "value === 'true' ? 1 : 0", "true", "1"},
		{"date", "new Date(value * 1000).toISOString()", "0", "1970-01-01T00:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateString(context.Background(), tt.expression, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateStringNoValue(t *testing.T) {
	eval := New(DefaultConfig())
	defer eval.Close()

	_, err := eval.EvaluateString(context.Background(), "undefined", "x")
	assert.ErrorIs(t, err, ErrNoValue)

	_, err = eval.EvaluateString(context.Background(), "null", "x")
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestEvaluateBool(t *testing.T) {
	eval := New(DefaultConfig())
	defer eval.Close()

	doc := map[string]any{
		"total": json.Number("5"),
		"state": "on",
		"list":  []any{json.Number("1.5")},
	}

	tests := []struct {
		expression string
		want       bool
	}{
		{"value.total > 0", true},
		{"value.total > 10", false},
		{"value.state === 'on'", true},
		{"value.list[0] === 1.5", true},
		{"value.missing", false},
		{"''", false},
		{"'text'", true},
		{"0", false},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			got, err := eval.EvaluateBool(context.Background(), tt.expression, doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateExports(t *testing.T) {
	eval := New(DefaultConfig())
	defer eval.Close()

	got, err := eval.Evaluate(context.Background(), "value + 1", json.Number("41"))
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)

	got, err = eval.Evaluate(context.Background(), "null", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompileErrors(t *testing.T) {
	eval := New(DefaultConfig())
	defer eval.Close()

	err := eval.Compile("value +")
	assert.ErrorIs(t, err, ErrCompile)

	_, err = eval.EvaluateString(context.Background(), "value +", "1")
	assert.ErrorIs(t, err, ErrCompile)
}

func TestProgramCache(t *testing.T) {
	eval := New(DefaultConfig())
	defer eval.Close()

	for i := 0; i < 3; i++ {
		_, err := eval.EvaluateString(context.Background(), "value + '!'", "x")
		require.NoError(t, err)
	}
	require.NoError(t, eval.Compile("value"))

	assert.Equal(t, 2, eval.Stats()["programs"])
}

func TestTimeoutInterrupts(t *testing.T) {
	eval := New(Config{Timeout: 50 * time.Millisecond, PoolSize: 1})
	defer eval.Close()

	start := time.Now()
	_, err := eval.EvaluateString(context.Background(), "while (true) {}", "")
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Less(t, time.Since(start), 5*time.Second)

	// the runtime is usable again afterwards
	got, err := eval.EvaluateString(context.Background(), "value", "ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestContextCancelInterrupts(t *testing.T) {
	eval := New(Config{Timeout: time.Minute, PoolSize: 1})
	defer eval.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := eval.EvaluateBool(ctx, "for (;;) {}", nil)
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestSandboxGlobals(t *testing.T) {
	eval := New(DefaultConfig())
	defer eval.Close()

	got, err := eval.EvaluateString(context.Background(), "typeof require + ',' + typeof process", "")
	require.NoError(t, err)
	assert.Equal(t, "undefined,undefined", got)
}

func TestFailedRunResetsGlobals(t *testing.T) {
	eval := New(Config{PoolSize: 1})
	defer eval.Close()

	_, err := eval.Evaluate(context.Background(), "leaked = 1; throw new Error('boom')", nil)
	require.Error(t, err)

	got, err := eval.EvaluateString(context.Background(), "typeof leaked", "")
	require.NoError(t, err)
	assert.Equal(t, "undefined", got)
}

func TestGlobalsDoNotLeakBetweenEvaluations(t *testing.T) {
	eval := New(Config{PoolSize: 1})
	defer eval.Close()
	ctx := context.Background()

	tests := []struct {
		name    string
		set     string
		want    string
		check   string
		cleared string
	}{
		{"var declaration", "var x = 'a'; x + value", "ab", "typeof x", "undefined"},
		{"function declaration", "function f() { return value } f()", "b", "typeof f", "undefined"},
		{"let declaration", "let y = value; y", "b", "typeof y", "undefined"},
		{"implicit global", "leaked = 2; value", "b", "typeof leaked", "undefined"},
		{"global object property", "globalThis.g = 1; value", "b", "typeof g", "undefined"},
		{"hidden host global", "require = 1; value", "b", "typeof require", "undefined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateString(ctx, tt.set, "b")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			got, err = eval.EvaluateString(ctx, tt.check, "")
			require.NoError(t, err)
			assert.Equal(t, tt.cleared, got)
		})
	}

	// repeated declarations of the same name do not collide
	for i := 0; i < 2; i++ {
		got, err := eval.EvaluateString(ctx, "let n = 1; const m = 2; n + m", "")
		require.NoError(t, err)
		assert.Equal(t, "3", got)
	}
}

func TestConcurrentEvaluations(t *testing.T) {
	eval := New(Config{PoolSize: 2})
	defer eval.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := eval.EvaluateString(context.Background(), "value * 2", "21")
			if err == nil && got != "42" {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestClosedPool(t *testing.T) {
	eval := New(DefaultConfig())
	require.NoError(t, eval.Close())

	_, err := eval.EvaluateString(context.Background(), "value", "x")
	assert.ErrorIs(t, err, ErrPoolClosed)
}
