// Package backend defines the storage side of a pipeline.
//
// A Backend is opened once per configured backend and hands out one
// Inserter per data entry. Relational backends live in the sqldb subpackage;
// the stdout subpackage implements the built-in debug sink.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/record"
)

var (
	ErrMissingTimestamp  = errors.New("record has no timestamp column")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrClosed            = errors.New("backend is closed")
)

// TimestampColumn is the reserved column persistence decisions read.
const TimestampColumn = "timestamp"

// PersistentColumn is the flag column maintained when persistence is used.
const PersistentColumn = "persistent"

// Escaper turns a raw value into the literal syntax of a backend.
type Escaper interface {
	Escape(value string) string
}

// EscaperFunc adapts a function to Escaper.
type EscaperFunc func(value string) string

// Escape calls f.
func (f EscaperFunc) Escape(value string) string { return f(value) }

// Identity leaves values untouched.
var Identity Escaper = EscaperFunc(func(value string) string { return value })

// InsertDirective is one record to store. A positive PersistentEvery asks
// the backend to flag the row persistent when at least that much time
// passed since the last persistent row.
type InsertDirective struct {
	Record          *record.Record
	PersistentEvery time.Duration
}

// Inserter writes the records of one data entry.
type Inserter interface {
	Insert(ctx context.Context, directive InsertDirective) error
	DeleteOldNonPersistent(ctx context.Context, days uint32) error
}

// Backend is an opened storage target.
type Backend interface {
	Escaper() Escaper
	Inserter(ref config.BackendRef) (Inserter, error)
	Close() error
}
