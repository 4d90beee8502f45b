// Package frontend defines the data sources of a pipeline.
//
// A Frontend is created once per configured frontend and hands out one
// Stream per data entry. Polling sources (http-rest, homematic-ccu3, shell)
// wrap a fetch function in a Poller; pub/sub sources (mqtt, nats) share a
// topic multiplexer and read through SubscriptionStream; journald tails the
// journal directly.
package frontend

import (
	"context"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Stream yields documents. Next returns only with a document, on context
// end, or on a failure the stream cannot recover from.
type Stream interface {
	Next(ctx context.Context) (document.Document, error)
}

// StreamFunc adapts a function to Stream.
type StreamFunc func(ctx context.Context) (document.Document, error)

// Next calls f.
func (f StreamFunc) Next(ctx context.Context) (document.Document, error) { return f(ctx) }

// Frontend is a configured source.
type Frontend interface {
	// Stream binds a stream to a data entry. values are the entry's value
	// specs, used by sources that only load what is referenced.
	Stream(ctx context.Context, ref config.FrontendRef, values []config.NamedValue) (Stream, error)
	Close() error
}

// Options carries the collaborators shared by all frontends.
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
