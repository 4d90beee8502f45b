package mapper

import (
	"context"
	"fmt"
	"strings"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"github.com/iot2db/iot2db/internal/record"
	"go.uber.org/zap"
)

// Mapper turns a document into at most one record. A nil record with a nil
// error means nothing is emitted for this document.
type Mapper interface {
	Map(ctx context.Context, doc document.Document) (*record.Record, error)
}

// Options carries optional collaborators.
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

type pointerColumn struct {
	name    string
	pointer document.Pointer
	spec    config.Value
}

type constantColumn struct {
	name  string
	value string
	spec  config.Value
}

// columns is the compiled form of a mapping.
type columns struct {
	pointers  []pointerColumn
	constants []constantColumn
	claimed   map[string]bool
}

func compile(values []config.NamedValue) (columns, error) {
	c := columns{claimed: make(map[string]bool)}
	for _, v := range values {
		switch {
		case v.Pointer != nil:
			p, err := document.ParsePointer(*v.Pointer)
			if err != nil {
				return c, fmt.Errorf("value %q: %w", v.Name, err)
			}
			c.pointers = append(c.pointers, pointerColumn{name: v.Name, pointer: p, spec: v.Value})
			c.claimed[canonical(p)] = true
		case v.ConstantValue != nil:
			c.constants = append(c.constants, constantColumn{name: v.Name, value: *v.ConstantValue, spec: v.Value})
		default:
			return c, fmt.Errorf("value %q: needs pointer or constant_value", v.Name)
		}
	}
	return c, nil
}

// canonical re-escapes p so equal pointers compare equal as strings.
func canonical(p document.Pointer) string {
	var b strings.Builder
	for _, token := range p.Tokens() {
		b.WriteByte('/')
		b.WriteString(document.EscapeToken(token))
	}
	return b.String()
}

// New builds the mapper matching the data entry's shape.
func New(data config.DataConfig, processor *Processor, opts Options) (Mapper, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch data.Frontend.DataType {
	case config.Wide:
		return NewWideToWide(data.Mapping, processor)
	case config.Narrow:
		if data.DirectValues != nil {
			return nil, fmt.Errorf("%w: direct_values cannot be used with narrow data", config.ErrInvalid)
		}
		return NewNarrowToWide(data.Name, data.Mapping, processor, opts)
	}
	return nil, fmt.Errorf("%w: unknown data type %q", config.ErrInvalid, data.Frontend.DataType)
}

// processConstants adds every constant column to rec.
func processConstants(ctx context.Context, p *Processor, constants []constantColumn, rec *record.Record) error {
	for _, c := range constants {
		value, err := p.Process(ctx, c.value, c.spec)
		if err != nil {
			return fmt.Errorf("value %q: %w", c.name, err)
		}
		rec.Set(c.name, value)
	}
	return nil
}

// extract resolves a pointer column and processes its text. ok is false on
// a pointer miss.
func extract(ctx context.Context, p *Processor, col pointerColumn, doc document.Document) (string, bool, error) {
	node, ok := col.pointer.Lookup(doc)
	if !ok {
		return "", false, nil
	}
	raw, err := document.Text(node)
	if err != nil {
		return "", false, fmt.Errorf("value %q: %w", col.name, err)
	}
	value, err := p.Process(ctx, raw, col.spec)
	if err != nil {
		return "", false, fmt.Errorf("value %q: %w", col.name, err)
	}
	return value, true, nil
}
