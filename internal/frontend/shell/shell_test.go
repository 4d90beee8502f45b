package shell

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newFrontend(t *testing.T, cfg *config.ShellConfig) *Frontend {
	t.Helper()
	f, err := New("cmd", cfg, frontend.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return f
}

func TestRunParsesJSON(t *testing.T) {
	f := newFrontend(t, &config.ShellConfig{Cmd: `echo '{"load": 0.5, "ok": true}'`})

	doc, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"load": json.Number("0.5"), "ok": true}, doc)
}

func TestRunExtractsRegexCaptures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f, err := New("cmd", &config.ShellConfig{
		Cmd: `echo "0.52 0.58 0.59 1/467 12345"`,
		Regex: map[string]string{
			"load1":   `^(\S+)`,
			"load5":   `^\S+ (\S+)`,
			"missing": `temperature=(\d+)`,
			"nogroup": `\d+`,
		},
	}, frontend.Options{Logger: zap.New(core)})
	require.NoError(t, err)

	doc, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"load1": "0.52", "load5": "0.58"}, doc)
	assert.Equal(t, 2, logs.Len())
}

func TestRunIgnoresExitStatus(t *testing.T) {
	f := newFrontend(t, &config.ShellConfig{Cmd: `sh -c 'echo "{\"a\": 1}"; exit 3'`})

	doc, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": json.Number("1")}, doc)
}

func TestRunRejectsInvalidUTF8(t *testing.T) {
	f := newFrontend(t, &config.ShellConfig{Cmd: `printf '\377'`})

	_, err := f.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestRunInvalidJSON(t *testing.T) {
	f := newFrontend(t, &config.ShellConfig{Cmd: `echo not-json`})

	_, err := f.Run(context.Background())
	assert.Error(t, err)
}

func TestRunMissingProgram(t *testing.T) {
	f := newFrontend(t, &config.ShellConfig{Cmd: `/nonexistent/iot2db-missing`})

	_, err := f.Run(context.Background())
	assert.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New("cmd", &config.ShellConfig{Cmd: "   "}, frontend.Options{})
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = New("cmd", &config.ShellConfig{Cmd: `echo "unterminated`}, frontend.Options{})
	assert.Error(t, err)

	_, err = New("cmd", &config.ShellConfig{Cmd: "echo", Regex: map[string]string{"x": "("}}, frontend.Options{})
	assert.Error(t, err)
}

func TestStream(t *testing.T) {
	f := newFrontend(t, &config.ShellConfig{Cmd: `echo '[1]'`, FrequencySecs: 60})
	s, err := f.Stream(context.Background(), config.FrontendRef{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	doc, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{json.Number("1")}, doc)
}
