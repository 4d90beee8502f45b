// Package stdout implements the built-in debug backend. Records are printed
// one per line instead of being stored.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/config"
)

// Backend writes records to an io.Writer.
type Backend struct {
	mu sync.Mutex
	w  io.Writer
}

// New creates a backend writing to w, or to os.Stdout when w is nil.
func New(w io.Writer) *Backend {
	if w == nil {
		w = os.Stdout
	}
	return &Backend{w: w}
}

// Escaper leaves values untouched.
func (b *Backend) Escaper() backend.Escaper {
	return backend.Identity
}

// Inserter returns an inserter labelled with the table, or with the data
// entry name when no table is configured.
func (b *Backend) Inserter(ref config.BackendRef) (backend.Inserter, error) {
	label := ref.TableName()
	if label == "" {
		label = ref.Data
	}
	return &inserter{backend: b, label: label}, nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

type inserter struct {
	backend *Backend
	label   string
}

func (i *inserter) Insert(ctx context.Context, directive backend.InsertDirective) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.backend.mu.Lock()
	defer i.backend.mu.Unlock()

	_, err := fmt.Fprintf(i.backend.w, "%s: %s\n", i.label, directive.Record)
	return err
}

func (i *inserter) DeleteOldNonPersistent(context.Context, uint32) error {
	return nil
}
