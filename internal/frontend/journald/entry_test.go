package journald

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMatcher struct {
	steps []string
}

func (r *recordingMatcher) AddMatch(match string) error {
	r.steps = append(r.steps, match)
	return nil
}

func (r *recordingMatcher) AddDisjunction() error {
	r.steps = append(r.steps, "OR")
	return nil
}

func TestAddUnitMatches(t *testing.T) {
	var m recordingMatcher
	require.NoError(t, addUnitMatches(&m, []string{"sshd.service"}))

	assert.Equal(t, []string{
		"_SYSTEMD_UNIT=sshd.service", "OR",
		"_PID=1", "UNIT=sshd.service", "OR",
		"_UID=0", "OBJECT_SYSTEMD_UNIT=sshd.service", "OR",
	}, m.steps)
}

func TestTargetUnit(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
		found  bool
	}{
		{"own unit", map[string]string{"_SYSTEMD_UNIT": "a.service"}, "a.service", true},
		{"pid 1 about unit", map[string]string{"_PID": "1", "UNIT": "b.service", "_SYSTEMD_UNIT": "init.scope"}, "b.service", true},
		{"root about unit", map[string]string{"_UID": "0", "OBJECT_SYSTEMD_UNIT": "c.service", "_SYSTEMD_UNIT": "x"}, "c.service", true},
		{"unit field ignored for other pids", map[string]string{"_PID": "42", "UNIT": "b.service"}, "", false},
		{"none", map[string]string{"MESSAGE": "hi"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := targetUnit(tt.fields)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToDocument(t *testing.T) {
	doc := toDocument(map[string]string{
		"MESSAGE":       "Accepted publickey",
		"_SYSTEMD_UNIT": "sshd.service",
	}, 1_700_000_000_123_456)

	assert.Equal(t, map[string]any{
		"MESSAGE":       "Accepted publickey",
		"_SYSTEMD_UNIT": "sshd.service",
		TargetUnitField: "sshd.service",
		TimestampField:  "1700000000",
	}, doc)
}
