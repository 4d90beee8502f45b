package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"github.com/iot2db/iot2db/internal/mapper"
	"github.com/iot2db/iot2db/internal/shared/id"
	"go.uber.org/zap"
)

// DefaultSweepInterval separates retention sweeps.
const DefaultSweepInterval = 24 * time.Hour

// Filter decides whether a document is processed.
type Filter interface {
	EvaluateBool(ctx context.Context, expression string, input any) (bool, error)
}

// Pipeline moves the documents of one data entry into its backend.
type Pipeline struct {
	data          config.DataConfig
	runID         id.RunID
	stream        frontend.Stream
	mapper        mapper.Mapper
	inserter      backend.Inserter
	filter        Filter
	sweepInterval time.Duration
	logger        *zap.Logger
	metrics       *monitoring.Metrics
}

// Params holds the parts of a pipeline.
type Params struct {
	Data          config.DataConfig
	RunID         id.RunID
	Stream        frontend.Stream
	Mapper        mapper.Mapper
	Inserter      backend.Inserter
	Filter        Filter
	SweepInterval time.Duration
	Logger        *zap.Logger
	Metrics       *monitoring.Metrics
}

// New creates a pipeline.
func New(p Params) *Pipeline {
	if p.SweepInterval <= 0 {
		p.SweepInterval = DefaultSweepInterval
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.RunID == "" {
		p.RunID = id.NewRunID()
	}
	return &Pipeline{
		data:          p.Data,
		runID:         p.RunID,
		stream:        p.Stream,
		mapper:        p.Mapper,
		inserter:      p.Inserter,
		filter:        p.Filter,
		sweepInterval: p.SweepInterval,
		logger:        p.Logger,
		metrics:       p.Metrics,
	}
}

// Name returns the data entry name.
func (p *Pipeline) Name() string { return p.data.Name }

// RunID returns the id included in the pipeline's log lines.
func (p *Pipeline) RunID() id.RunID { return p.runID }

// Run processes documents until ctx ends, returning nil, or until the
// stream or an expression fails. Backend write errors are logged and the
// record dropped.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if days := p.data.CleanNonPersistentAfterDays; days != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.sweep(ctx, *days)
		}()
	}

	p.logger.Info("Pipeline started",
		zap.String("frontend", p.data.Frontend.Name),
		zap.String("backend", p.data.Backend.Name))

	for {
		doc, err := p.stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", p.data.Frontend.Name, err)
		}
		p.metrics.RecordDocument(p.data.Name)

		if err := p.process(ctx, doc); err != nil {
			return err
		}
	}
}

func (p *Pipeline) process(ctx context.Context, doc document.Document) error {
	if p.data.Filter != "" && p.filter != nil {
		keep, err := p.filter.EvaluateBool(ctx, p.data.Filter, doc)
		if err != nil {
			return fmt.Errorf("filter: %w", err)
		}
		if !keep {
			p.metrics.RecordFiltered(p.data.Name)
			return nil
		}
	}

	rec, err := p.mapper.Map(ctx, doc)
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	if rec == nil {
		return nil
	}
	p.metrics.RecordRecord(p.data.Name)

	timer := monitoring.NewTimer(p.metrics, p.data.Name)
	err = p.inserter.Insert(ctx, backend.InsertDirective{
		Record:          rec,
		PersistentEvery: p.data.PersistentEvery(),
	})
	timer.Stop(err)
	if err != nil && ctx.Err() == nil {
		p.logger.Warn("Insert failed, record dropped",
			zap.String("table", p.data.Backend.TableName()),
			zap.Stringer("record", rec),
			zap.Error(err))
	}
	return nil
}

// sweep deletes expired non-persistent rows now and then every interval.
func (p *Pipeline) sweep(ctx context.Context, days uint32) {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		err := p.sweepOnce(ctx, days)
		if ctx.Err() != nil {
			return
		}
		p.metrics.RecordSweep(p.data.Name, err)
		if err != nil {
			p.logger.Warn("Retention sweep failed", zap.Uint32("days", days), zap.Error(err))
		} else {
			p.logger.Debug("Retention sweep done", zap.Uint32("days", days))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweepOnce runs one retention sweep. A panicking backend fails the sweep
// and leaves the pipeline running.
func (p *Pipeline) sweepOnce(ctx context.Context, days uint32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.logger.Error("Retention sweep panicked",
				zap.String("data", p.data.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	return p.inserter.DeleteOldNonPersistent(ctx, days)
}
