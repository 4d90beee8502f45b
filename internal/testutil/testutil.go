// Package testutil provides testing utilities and helpers for pipeline tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/iot2db/iot2db/internal/record"
	"github.com/stretchr/testify/mock"
)

// MockInserter is a mock implementation of backend.Inserter for testing.
type MockInserter struct {
	mock.Mock

	mu      sync.Mutex
	records []*record.Record
}

// Insert mocks the Insert method and keeps the record.
func (m *MockInserter) Insert(ctx context.Context, directive backend.InsertDirective) error {
	m.mu.Lock()
	m.records = append(m.records, directive.Record)
	m.mu.Unlock()

	args := m.Called(ctx, directive)
	return args.Error(0)
}

// DeleteOldNonPersistent mocks the DeleteOldNonPersistent method.
func (m *MockInserter) DeleteOldNonPersistent(ctx context.Context, days uint32) error {
	args := m.Called(ctx, days)
	return args.Error(0)
}

// Records returns the records passed to Insert so far.
func (m *MockInserter) Records() []*record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*record.Record(nil), m.records...)
}

// NewMockInserter creates a new mock inserter whose calls succeed.
func NewMockInserter(t *testing.T) *MockInserter {
	t.Helper()
	m := new(MockInserter)

	m.On("Insert", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("DeleteOldNonPersistent", mock.Anything, mock.Anything).Return(nil).Maybe()

	return m
}

// MockBackend is a mock implementation of backend.Backend for testing.
type MockBackend struct {
	mock.Mock
}

// Escaper mocks the Escaper method.
func (m *MockBackend) Escaper() backend.Escaper {
	args := m.Called()
	if args.Get(0) == nil {
		return backend.Identity
	}
	return args.Get(0).(backend.Escaper)
}

// Inserter mocks the Inserter method.
func (m *MockBackend) Inserter(ref config.BackendRef) (backend.Inserter, error) {
	args := m.Called(ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(backend.Inserter), args.Error(1)
}

// Close mocks the Close method.
func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// NewMockBackend creates a mock backend handing out inserter for every ref.
func NewMockBackend(t *testing.T, inserter backend.Inserter) *MockBackend {
	t.Helper()
	m := new(MockBackend)

	m.On("Escaper").Return(backend.Identity).Maybe()
	m.On("Inserter", mock.Anything).Return(inserter, nil).Maybe()
	m.On("Close").Return(nil).Maybe()

	return m
}

// MockFrontend is a mock implementation of frontend.Frontend for testing.
type MockFrontend struct {
	mock.Mock
}

// Stream mocks the Stream method.
func (m *MockFrontend) Stream(ctx context.Context, ref config.FrontendRef, values []config.NamedValue) (frontend.Stream, error) {
	args := m.Called(ctx, ref, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(frontend.Stream), args.Error(1)
}

// Close mocks the Close method.
func (m *MockFrontend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// NewMockFrontend creates a mock frontend returning stream for every ref.
func NewMockFrontend(t *testing.T, stream frontend.Stream) *MockFrontend {
	t.Helper()
	m := new(MockFrontend)

	m.On("Stream", mock.Anything, mock.Anything, mock.Anything).Return(stream, nil).Maybe()
	m.On("Close").Return(nil).Maybe()

	return m
}

// SliceStream yields fixed documents, then Err, or blocks until the
// context ends when Err is nil.
type SliceStream struct {
	mu   sync.Mutex
	docs []document.Document
	Err  error
}

// NewSliceStream decodes each JSON text into a document.
func NewSliceStream(t *testing.T, docs ...string) *SliceStream {
	t.Helper()
	s := &SliceStream{}
	for _, text := range docs {
		doc, err := document.Decode([]byte(text))
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		s.docs = append(s.docs, doc)
	}
	return s
}

// Next returns the next document.
func (s *SliceStream) Next(ctx context.Context) (document.Document, error) {
	s.mu.Lock()
	if len(s.docs) > 0 {
		doc := s.docs[0]
		s.docs = s.docs[1:]
		s.mu.Unlock()
		return doc, nil
	}
	err := s.Err
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

// Remaining returns the number of documents not yet read.
func (s *SliceStream) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// CreateTestData creates a wide data entry reading frontend and writing
// backend with the given values.
func CreateTestData(t *testing.T, name, frontendName, backendName string, values ...config.NamedValue) config.DataConfig {
	t.Helper()

	return config.DataConfig{
		Name:     name,
		Frontend: config.FrontendRef{Name: frontendName, DataType: config.Wide},
		Backend:  config.BackendRef{Name: backendName, Table: name, Data: name},
		Mapping:  config.Mapping{Values: values},
	}
}
