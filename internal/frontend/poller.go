package frontend

import (
	"context"
	"time"

	"github.com/iot2db/iot2db/internal/document"
	"go.uber.org/zap"
)

// FetchFunc performs one polling cycle.
type FetchFunc func(ctx context.Context) (document.Document, error)

// Poller turns a fetch function into a Stream. The first cycle runs
// immediately; later cycles wait interval after the previous one. A failed
// cycle is logged and skipped.
type Poller struct {
	name     string
	interval time.Duration
	fetch    FetchFunc
	logger   *zap.Logger
	opts     Options
	started  bool
}

// NewPoller creates a poller for the frontend called name.
func NewPoller(name string, interval time.Duration, fetch FetchFunc, opts Options) *Poller {
	opts = opts.WithDefaults()
	return &Poller{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   opts.Logger.With(zap.String("frontend", name)),
		opts:     opts,
	}
}

// Next waits for the next successful cycle.
func (p *Poller) Next(ctx context.Context) (document.Document, error) {
	for {
		if p.started {
			if err := sleep(ctx, p.interval); err != nil {
				return nil, err
			}
		}
		p.started = true

		doc, err := p.fetch(ctx)
		if err == nil {
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		p.logger.Warn("Polling failed, skipping cycle", zap.Error(err))
		p.opts.Metrics.RecordPollError(p.name)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
