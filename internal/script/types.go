package script

import (
	"errors"
	"time"
)

var (
	ErrCompile     = errors.New("expression does not compile")
	ErrInterrupted = errors.New("expression interrupted")
	ErrNoValue     = errors.New("expression produced no value")
	ErrPoolClosed  = errors.New("runtime pool is closed")
	ErrPoolBusy    = errors.New("no runtime available")
)

// Config defines evaluator configuration
type Config struct {
	Timeout        time.Duration // Per-evaluation limit
	PoolSize       int           // Number of pooled runtimes
	AcquireTimeout time.Duration // How long to wait for a free runtime
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Timeout:        time.Second,
		PoolSize:       4,
		AcquireTimeout: 5 * time.Second,
	}
}
