package script

import (
	"context"
	"sync"
	"time"
)

// pool manages a fixed set of reusable runtimes
type pool struct {
	runtimes       chan *runtime
	acquireTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func newPool(cfg Config) *pool {
	size := cfg.PoolSize
	if size <= 0 {
		size = 4
	}

	p := &pool{
		runtimes:       make(chan *runtime, size),
		acquireTimeout: cfg.AcquireTimeout,
	}
	for i := 0; i < size; i++ {
		p.runtimes <- newRuntime(cfg.Timeout)
	}
	return p
}

// acquire takes a runtime, waiting for one to become free
func (p *pool) acquire(ctx context.Context) (*runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case r := <-p.runtimes:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrPoolBusy
	}
}

// release hands a runtime back. A runtime whose last run failed or left
// globals behind is reset so they do not leak into later evaluations.
func (p *pool) release(r *runtime, failed bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	if failed || r.polluted() {
		r.reset()
	}

	select {
	case p.runtimes <- r:
	default:
	}
}

func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.runtimes)
	for range p.runtimes {
	}
}

// stats returns pool statistics
func (p *pool) stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]any{
		"size":      cap(p.runtimes),
		"available": len(p.runtimes),
		"closed":    p.closed,
	}
}
