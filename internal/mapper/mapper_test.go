package mapper

import (
	"context"
	"testing"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"github.com/iot2db/iot2db/internal/record"
	"github.com/iot2db/iot2db/internal/script"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var quote = backend.EscaperFunc(func(v string) string { return "'" + v + "'" })

func named(name string, v config.Value) config.NamedValue {
	return config.NamedValue{Name: name, Value: v}
}

func decode(t *testing.T, s string) document.Document {
	t.Helper()
	doc, err := document.Decode([]byte(s))
	require.NoError(t, err)
	return doc
}

func newEvaluator(t *testing.T) *script.Evaluator {
	t.Helper()
	eval := script.New(script.DefaultConfig())
	t.Cleanup(func() { _ = eval.Close() })
	return eval
}

func TestProcessorOrder(t *testing.T) {
	p := NewProcessor(quote, newEvaluator(t))

	v := config.PointerValue("/x")
	v.Preprocess = "value + 'a'"
	v.Postprocess = "value + '!'"

	got, err := p.Process(context.Background(), "v", v)
	require.NoError(t, err)
	assert.Equal(t, "'va'!", got)
}

func TestProcessorEscapesOnce(t *testing.T) {
	p := NewProcessor(quote, nil)

	got, err := p.Process(context.Background(), "v", config.ConstantValue("v"))
	require.NoError(t, err)
	assert.Equal(t, "'v'", got)
}

func TestProcessorWithoutEvaluator(t *testing.T) {
	p := NewProcessor(nil, nil)

	v := config.ConstantValue("1")
	v.Preprocess = "value"
	_, err := p.Process(context.Background(), "1", v)
	assert.ErrorIs(t, err, ErrNoEvaluator)
}

func TestWideToWide(t *testing.T) {
	ts := config.PointerValue("/time")
	ts.Preprocess = "new Date(value * 1000).toISOString()"

	mapping := config.Mapping{Values: []config.NamedValue{
		named("timestamp", ts),
		named("power", config.PointerValue("/meter/power")),
		named("missing", config.PointerValue("/nope")),
		named("site", config.ConstantValue("home")),
	}}

	m, err := NewWideToWide(mapping, NewProcessor(quote, newEvaluator(t)))
	require.NoError(t, err)

	rec, err := m.Map(context.Background(), decode(t, `{"time":0,"meter":{"power":1.50,"other":7}}`))
	require.NoError(t, err)

	assert.Equal(t, []record.Column{
		{Name: "timestamp", Value: "'1970-01-01T00:00:00.000Z'"},
		{Name: "power", Value: "'1.50'"},
		{Name: "site", Value: "'home'"},
	}, rec.Columns())
}

func TestWideToWideIsDeterministic(t *testing.T) {
	mapping := config.Mapping{
		DirectValues: &config.DirectValues{All: true},
		Values: []config.NamedValue{
			named("a", config.PointerValue("/a")),
		},
	}
	m, err := NewWideToWide(mapping, NewProcessor(nil, nil))
	require.NoError(t, err)

	doc := decode(t, `{"a":1,"z":{"y":2,"x":[3,4]},"b":"c"}`)
	first, err := m.Map(context.Background(), doc)
	require.NoError(t, err)
	second, err := m.Map(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, first.Columns(), second.Columns())
}

func TestWideToWideSubset(t *testing.T) {
	mapping := config.Mapping{Values: []config.NamedValue{
		named("a", config.PointerValue("/a")),
		named("b", config.PointerValue("/b")),
		named("c", config.ConstantValue("k")),
	}}
	m, err := NewWideToWide(mapping, NewProcessor(nil, nil))
	require.NoError(t, err)

	for _, input := range []string{`{}`, `{"a":1}`, `{"b":2,"extra":3}`, `[1,2]`, `"text"`} {
		rec, err := m.Map(context.Background(), decode(t, input))
		require.NoError(t, err)
		for _, name := range rec.Names() {
			assert.Contains(t, []string{"a", "b", "c"}, name, input)
		}
		assert.True(t, rec.Has("c"))
	}
}

func TestDirectValues(t *testing.T) {
	doc := `{"temp":21.5,"a/b":{"c~d":true},"list":[1,{"n":null}],"claimed":5,"obj":{}}`

	tests := []struct {
		name   string
		direct config.DirectValues
		want   []record.Column
	}{
		{
			name:   "all",
			direct: config.DirectValues{All: true},
			want: []record.Column{
				{Name: "claimed_value", Value: "5"},
				{Name: "a/b_c~d", Value: "true"},
				{Name: "list_0", Value: "1"},
				{Name: "list_1_n", Value: "null"},
				{Name: "temp", Value: "21.5"},
			},
		},
		{
			name:   "listed prefix",
			direct: config.DirectValues{Pointers: []string{"/list", "/temp"}},
			want: []record.Column{
				{Name: "claimed_value", Value: "5"},
				{Name: "list_0", Value: "1"},
				{Name: "list_1_n", Value: "null"},
				{Name: "temp", Value: "21.5"},
			},
		},
		{
			name:   "listed escaped key",
			direct: config.DirectValues{Pointers: []string{"/a~1b"}},
			want: []record.Column{
				{Name: "claimed_value", Value: "5"},
				{Name: "a/b_c~d", Value: "true"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			direct := tt.direct
			mapping := config.Mapping{
				DirectValues: &direct,
				Values: []config.NamedValue{
					named("claimed_value", config.PointerValue("/claimed")),
				},
			}
			m, err := NewWideToWide(mapping, NewProcessor(nil, nil))
			require.NoError(t, err)

			rec, err := m.Map(context.Background(), decode(t, doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Columns())
		})
	}
}

func TestDirectValuesKeepExplicitNames(t *testing.T) {
	mapping := config.Mapping{
		DirectValues: &config.DirectValues{All: true},
		Values: []config.NamedValue{
			named("temp", config.PointerValue("/other")),
		},
	}
	m, err := NewWideToWide(mapping, NewProcessor(nil, nil))
	require.NoError(t, err)

	rec, err := m.Map(context.Background(), decode(t, `{"temp":1,"other":2}`))
	require.NoError(t, err)
	assert.Equal(t, []record.Column{{Name: "temp", Value: "2"}}, rec.Columns())
}

func TestDirectName(t *testing.T) {
	assert.Equal(t, "a_b", DirectName("/a/b"))
	assert.Equal(t, "x/y_0", DirectName("/x~1y/0"))
	assert.Equal(t, "t~", DirectName("/t~0"))
}

func narrowMapper(t *testing.T, opts Options) *NarrowToWide {
	t.Helper()
	mapping := config.Mapping{Values: []config.NamedValue{
		named("x", config.PointerValue("/x")),
		named("y", config.PointerValue("/y")),
		named("site", config.ConstantValue("home")),
	}}
	m, err := NewNarrowToWide("d", mapping, NewProcessor(nil, nil), opts)
	require.NoError(t, err)
	return m
}

func TestNarrowToWideFlushesOnRepeat(t *testing.T) {
	m := narrowMapper(t, Options{})
	ctx := context.Background()

	rec, err := m.Map(ctx, decode(t, `{"x":1}`))
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = m.Map(ctx, decode(t, `{"y":2}`))
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = m.Map(ctx, decode(t, `{"x":3}`))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "x=1, y=2, site=home", rec.String())
	assert.Equal(t, "x=3", m.Pending().String())
}

func TestNarrowToWideIgnoresUnmatched(t *testing.T) {
	m := narrowMapper(t, Options{})

	rec, err := m.Map(context.Background(), decode(t, `{"z":1}`))
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Zero(t, m.Pending().Len())
}

func TestNarrowToWideMultipleMatches(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	m := narrowMapper(t, Options{Logger: zap.New(core), Metrics: metrics})

	rec, err := m.Map(context.Background(), decode(t, `{"x":1,"y":2}`))
	require.NoError(t, err)
	assert.Nil(t, rec)

	assert.Equal(t, "x=1", m.Pending().String())
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.NarrowViolations.WithLabelValues("d")))
}

func TestNewSelectsShape(t *testing.T) {
	values := []config.NamedValue{named("v", config.PointerValue("/v"))}

	wide, err := New(config.DataConfig{
		Name:     "w",
		Frontend: config.FrontendRef{DataType: config.Wide},
		Mapping:  config.Mapping{Values: values},
	}, NewProcessor(nil, nil), Options{})
	require.NoError(t, err)
	assert.IsType(t, &WideToWide{}, wide)

	narrow, err := New(config.DataConfig{
		Name:     "n",
		Frontend: config.FrontendRef{DataType: config.Narrow},
		Mapping:  config.Mapping{Values: values},
	}, NewProcessor(nil, nil), Options{})
	require.NoError(t, err)
	assert.IsType(t, &NarrowToWide{}, narrow)

	_, err = New(config.DataConfig{
		Frontend: config.FrontendRef{DataType: config.Narrow},
		Mapping:  config.Mapping{Values: values, DirectValues: &config.DirectValues{All: true}},
	}, NewProcessor(nil, nil), Options{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestCompileRejectsBadPointer(t *testing.T) {
	_, err := NewWideToWide(config.Mapping{Values: []config.NamedValue{
		named("bad", config.PointerValue("no-slash")),
	}}, NewProcessor(nil, nil))
	assert.Error(t, err)
}
