// Package httprest polls a JSON endpoint.
package httprest

import (
	"context"
	"time"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/iot2db/iot2db/internal/frontend/httpclient"
)

// Frontend polls cfg.URL every FrequencySecs.
type Frontend struct {
	name   string
	cfg    *config.HTTPRestConfig
	client *httpclient.Client
	opts   frontend.Options
}

// New creates the frontend. Streams share one client.
func New(name string, cfg *config.HTTPRestConfig, opts frontend.Options) *Frontend {
	opts = opts.WithDefaults()

	clientOpts := httpclient.DefaultOptions(name)
	clientOpts.BasicAuth = cfg.BasicAuth
	clientOpts.Logger = opts.Logger
	clientOpts.Metrics = opts.Metrics

	return &Frontend{
		name:   name,
		cfg:    cfg,
		client: httpclient.New(clientOpts),
		opts:   opts,
	}
}

// NewWithClient creates the frontend over an existing client.
func NewWithClient(name string, cfg *config.HTTPRestConfig, client *httpclient.Client, opts frontend.Options) *Frontend {
	return &Frontend{name: name, cfg: cfg, client: client, opts: opts.WithDefaults()}
}

// Stream returns a poller of the endpoint.
func (f *Frontend) Stream(_ context.Context, _ config.FrontendRef, _ []config.NamedValue) (frontend.Stream, error) {
	interval := time.Duration(f.cfg.FrequencySecs) * time.Second
	return frontend.NewPoller(f.name, interval, f.fetch, f.opts), nil
}

func (f *Frontend) fetch(ctx context.Context) (document.Document, error) {
	return f.client.GetDocument(ctx, f.cfg.URL)
}

// Close releases idle connections.
func (f *Frontend) Close() error {
	f.client.Resty.GetClient().CloseIdleConnections()
	return nil
}
