//go:build !linux || !cgo

package journald

import (
	"context"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/frontend"
)

// Frontend is unavailable off Linux.
type Frontend struct{}

// New always fails with ErrUnsupported.
func New(string, *config.JournaldConfig, frontend.Options) (*Frontend, error) {
	return nil, ErrUnsupported
}

func (f *Frontend) Stream(context.Context, config.FrontendRef, []config.NamedValue) (frontend.Stream, error) {
	return nil, ErrUnsupported
}

func (f *Frontend) Close() error {
	return nil
}
