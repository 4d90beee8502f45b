package id

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	assert.True(t, strings.HasPrefix(a.String(), RunPrefix+"_"))
	assert.NotEqual(t, a, b)
	assert.Less(t, a.String(), b.String())
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	runID := NewRunID()

	ts, err := Timestamp(runID.String())
	require.NoError(t, err)
	assert.False(t, ts.Before(before))
	assert.WithinDuration(t, time.Now(), ts, time.Second)

	_, err = Timestamp("run_not-a-ulid")
	assert.Error(t, err)
}

func TestDeterministicEntropy(t *testing.T) {
	g := NewGeneratorWithEntropy(bytes.NewReader(make([]byte, 64)))
	id := g.Generate()
	assert.Equal(t, make([]byte, 10), id.Entropy())
}
