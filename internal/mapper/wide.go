package mapper

import (
	"context"
	"fmt"
	"strings"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/record"
)

// WideToWide maps each document to exactly one record.
type WideToWide struct {
	columns   columns
	direct    *config.DirectValues
	allowed   []string
	processor *Processor
}

// NewWideToWide compiles a wide mapping.
func NewWideToWide(mapping config.Mapping, processor *Processor) (*WideToWide, error) {
	cols, err := compile(mapping.Values)
	if err != nil {
		return nil, err
	}

	w := &WideToWide{columns: cols, direct: mapping.DirectValues, processor: processor}
	if w.direct != nil && !w.direct.All {
		for _, raw := range w.direct.Pointers {
			p, err := document.ParsePointer(raw)
			if err != nil {
				return nil, fmt.Errorf("direct_values: %w", err)
			}
			w.allowed = append(w.allowed, canonical(p))
		}
	}
	return w, nil
}

// Map extracts pointer columns in declared order, then direct values, then
// constants. Pointer misses are skipped.
func (w *WideToWide) Map(ctx context.Context, doc document.Document) (*record.Record, error) {
	rec := record.New(len(w.columns.pointers) + len(w.columns.constants))

	for _, col := range w.columns.pointers {
		value, ok, err := extract(ctx, w.processor, col, doc)
		if err != nil {
			return nil, err
		}
		if ok {
			rec.Set(col.name, value)
		}
	}

	if w.direct != nil {
		if err := w.directValues(ctx, doc, rec); err != nil {
			return nil, err
		}
	}

	if err := processConstants(ctx, w.processor, w.columns.constants, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (w *WideToWide) directValues(ctx context.Context, doc document.Document, rec *record.Record) error {
	for pointer, node := range document.Walk(doc) {
		if pointer == "" || !document.IsLeaf(node) {
			continue
		}
		if w.columns.claimed[pointer] || !w.permits(pointer) {
			continue
		}

		name := DirectName(pointer)
		if rec.Has(name) {
			continue
		}

		raw, err := document.Text(node)
		if err != nil {
			return fmt.Errorf("direct value %q: %w", pointer, err)
		}
		value, err := w.processor.Process(ctx, raw, config.Value{})
		if err != nil {
			return fmt.Errorf("direct value %q: %w", pointer, err)
		}
		rec.Set(name, value)
	}
	return nil
}

// permits reports whether the policy allows the leaf at pointer. A listed
// pointer allows itself and everything below it.
func (w *WideToWide) permits(pointer string) bool {
	if w.direct.All {
		return true
	}
	for _, prefix := range w.allowed {
		if pointer == prefix || prefix == "" || strings.HasPrefix(pointer, prefix+"/") {
			return true
		}
	}
	return false
}

// DirectName derives the column name of a discovered leaf: the unescaped
// pointer segments joined with "_".
func DirectName(pointer string) string {
	return strings.Join(document.Segments(pointer), "_")
}
