// Package record holds the ordered column set produced by a mapping.
package record

import (
	"strings"
)

// Column is one named, already escaped value.
type Column struct {
	Name  string
	Value string
}

// Record is an ordered column-name to value mapping. Setting an existing
// column replaces its value in place.
type Record struct {
	columns []Column
	index   map[string]int
}

// New returns an empty record with room for n columns.
func New(n int) *Record {
	return &Record{
		columns: make([]Column, 0, n),
		index:   make(map[string]int, n),
	}
}

// Of builds a record from alternating name, value arguments.
func Of(pairs ...string) *Record {
	r := New(len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

// Set stores value under name.
func (r *Record) Set(name, value string) {
	if i, ok := r.index[name]; ok {
		r.columns[i].Value = value
		return
	}
	r.index[name] = len(r.columns)
	r.columns = append(r.columns, Column{Name: name, Value: value})
}

// Get returns the value stored under name.
func (r *Record) Get(name string) (string, bool) {
	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.columns[i].Value, true
}

// Has reports whether name is set.
func (r *Record) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Len returns the number of columns.
func (r *Record) Len() int {
	return len(r.columns)
}

// Columns returns the columns in insertion order. The slice must not be
// modified.
func (r *Record) Columns() []Column {
	return r.columns
}

// Names returns the column names in insertion order.
func (r *Record) Names() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Name
	}
	return names
}

// Map returns the columns as a plain map.
func (r *Record) Map() map[string]string {
	m := make(map[string]string, len(r.columns))
	for _, c := range r.columns {
		m[c.Name] = c.Value
	}
	return m
}

// String renders the record as "name=value, name=value".
func (r *Record) String() string {
	var b strings.Builder
	for i, c := range r.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
	}
	return b.String()
}
