package mapper

import (
	"context"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"github.com/iot2db/iot2db/internal/record"
	"go.uber.org/zap"
)

// NarrowToWide assembles single-reading documents into records. A record
// is emitted when a column arrives that is already buffered. State is per
// instance and not safe for concurrent use.
type NarrowToWide struct {
	data      string
	columns   columns
	processor *Processor
	buffer    *record.Record
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// NewNarrowToWide compiles a narrow mapping.
func NewNarrowToWide(data string, mapping config.Mapping, processor *Processor, opts Options) (*NarrowToWide, error) {
	cols, err := compile(mapping.Values)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NarrowToWide{
		data:      data,
		columns:   cols,
		processor: processor,
		buffer:    record.New(len(cols.pointers) + len(cols.constants)),
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// Map consumes one reading. It returns the completed record when the
// reading repeats a buffered column, nil otherwise.
func (n *NarrowToWide) Map(ctx context.Context, doc document.Document) (*record.Record, error) {
	var (
		match *pointerColumn
		value string
	)

	for i := range n.columns.pointers {
		col := &n.columns.pointers[i]
		if match != nil {
			if _, ok := col.pointer.Lookup(doc); ok {
				n.logger.Warn("Narrow document matched more than one value, using the first",
					zap.String("used", match.name),
					zap.String("ignored", col.name))
				n.metrics.RecordNarrowViolation(n.data)
				break
			}
			continue
		}

		v, ok, err := extract(ctx, n.processor, *col, doc)
		if err != nil {
			return nil, err
		}
		if ok {
			match, value = col, v
		}
	}

	if match == nil {
		return nil, nil
	}

	if !n.buffer.Has(match.name) {
		n.buffer.Set(match.name, value)
		return nil, nil
	}

	out := n.buffer
	if err := processConstants(ctx, n.processor, n.columns.constants, out); err != nil {
		return nil, err
	}
	n.buffer = record.New(out.Len())
	n.buffer.Set(match.name, value)
	return out, nil
}

// Pending returns a copy of the buffered, not yet emitted columns.
func (n *NarrowToWide) Pending() *record.Record {
	pending := record.New(n.buffer.Len())
	for _, c := range n.buffer.Columns() {
		pending.Set(c.Name, c.Value)
	}
	return pending
}
