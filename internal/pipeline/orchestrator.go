package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrAllFailed is returned by Run when no pipeline stopped cleanly.
var ErrAllFailed = errors.New("all pipelines failed")

// State is the lifecycle state of a pipeline.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

// Status describes one pipeline for health reporting.
type Status struct {
	State   State     `json:"state"`
	RunID   string    `json:"run_id"`
	Started time.Time `json:"started,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Orchestrator runs the pipelines of a configuration and owns the
// frontends and backends they share.
type Orchestrator struct {
	pipelines []*Pipeline
	frontends []frontend.Frontend
	backends  []backend.Backend
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	mu     sync.RWMutex
	status map[string]*Status
}

// NewOrchestrator creates an orchestrator over built pipelines. It takes
// ownership of frontends and backends and closes them after Run.
func NewOrchestrator(pipelines []*Pipeline, frontends []frontend.Frontend, backends []backend.Backend, logger *zap.Logger, metrics *monitoring.Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		pipelines: pipelines,
		frontends: frontends,
		backends:  backends,
		logger:    logger,
		metrics:   metrics,
		status:    make(map[string]*Status, len(pipelines)),
	}
	for _, p := range pipelines {
		o.status[p.Name()] = &Status{State: StatePending, RunID: p.RunID().String()}
	}
	return o
}

// Run starts every pipeline in configuration order and waits for all of
// them. Resources are closed afterwards.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer func() {
		if err := o.Close(); err != nil {
			o.logger.Warn("Closing resources failed", zap.Error(err))
		}
	}()

	// one pipeline failing leaves the others running
	var wg sync.WaitGroup
	errs := make([]error, len(o.pipelines))
	for i, p := range o.pipelines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.run(ctx, p); err != nil {
				errs[i] = fmt.Errorf("%s: %w", p.Name(), err)
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			return nil
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, multierr.Combine(errs...))
}

func (o *Orchestrator) run(ctx context.Context, p *Pipeline) (err error) {
	logger := p.logger

	o.setStatus(p.Name(), func(s *Status) {
		s.State = StateRunning
		s.Started = time.Now()
	})
	o.metrics.PipelineStarted()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Error("Pipeline panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}

		o.metrics.PipelineStopped(p.Name(), err)
		o.setStatus(p.Name(), func(s *Status) {
			if err != nil {
				s.State = StateFailed
				s.Error = err.Error()
				return
			}
			s.State = StateStopped
		})
		if err != nil {
			logger.Error("Pipeline failed", zap.Error(err))
		} else {
			logger.Info("Pipeline stopped")
		}
	}()

	return p.Run(ctx)
}

func (o *Orchestrator) setStatus(name string, update func(*Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.status[name]; ok {
		update(s)
	}
}

// Statuses returns a copy of the pipeline states.
func (o *Orchestrator) Statuses() map[string]Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]Status, len(o.status))
	for name, s := range o.status {
		out[name] = *s
	}
	return out
}

// Health reports the pipelines for the health endpoint. The process is
// unhealthy once any pipeline failed.
func (o *Orchestrator) Health() (map[string]any, bool) {
	healthy := true
	body := make(map[string]any, len(o.pipelines))
	for name, s := range o.Statuses() {
		body[name] = s
		if s.State == StateFailed {
			healthy = false
		}
	}
	return body, healthy
}

// Close closes all frontends and backends.
func (o *Orchestrator) Close() error {
	var err error
	for _, f := range o.frontends {
		err = multierr.Append(err, f.Close())
	}
	for _, b := range o.backends {
		err = multierr.Append(err, b.Close())
	}
	o.frontends, o.backends = nil, nil
	return err
}
