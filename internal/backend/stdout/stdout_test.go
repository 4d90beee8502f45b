package stdout

import (
	"bytes"
	"context"
	"testing"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertRendersRecord(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	ins, err := b.Inserter(config.BackendRef{Name: config.StdoutBackend, Data: "inverter"})
	require.NoError(t, err)

	rec := record.Of("timestamp", "2024-01-01T00:00:00Z", "power", "1.5")
	require.NoError(t, ins.Insert(context.Background(), backend.InsertDirective{Record: rec}))
	require.NoError(t, ins.Insert(context.Background(), backend.InsertDirective{Record: record.Of("a", "b")}))

	assert.Equal(t, "inverter: timestamp=2024-01-01T00:00:00Z, power=1.5\ninverter: a=b\n", buf.String())
}

func TestInserterPrefersTable(t *testing.T) {
	var buf bytes.Buffer
	ins, err := New(&buf).Inserter(config.BackendRef{Name: config.StdoutBackend, Table: "metrics", Data: "d"})
	require.NoError(t, err)

	require.NoError(t, ins.Insert(context.Background(), backend.InsertDirective{Record: record.Of("x", "1")}))
	assert.Equal(t, "metrics: x=1\n", buf.String())
}

func TestEscaperIsIdentity(t *testing.T) {
	assert.Equal(t, "it's", New(nil).Escaper().Escape("it's"))
}

func TestSweepIsNoop(t *testing.T) {
	var buf bytes.Buffer
	ins, err := New(&buf).Inserter(config.BackendRef{Data: "d"})
	require.NoError(t, err)

	assert.NoError(t, ins.DeleteOldNonPersistent(context.Background(), 7))
	assert.Empty(t, buf.String())
}

func TestInsertCanceled(t *testing.T) {
	var buf bytes.Buffer
	ins, err := New(&buf).Inserter(config.BackendRef{Data: "d"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ins.Insert(ctx, backend.InsertDirective{Record: record.Of("x", "1")}), context.Canceled)
	assert.Empty(t, buf.String())
}
