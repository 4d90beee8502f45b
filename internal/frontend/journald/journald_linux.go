//go:build linux && cgo

package journald

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/frontend"
	"go.uber.org/zap"
)

const (
	bufferedEntries = 100
	waitTimeout     = time.Second
)

// Frontend is a configured journal source.
type Frontend struct {
	name   string
	cfg    *config.JournaldConfig
	logger *zap.Logger
}

// New creates the frontend. The journal is opened per stream.
func New(name string, cfg *config.JournaldConfig, opts frontend.Options) (*Frontend, error) {
	opts = opts.WithDefaults()
	logger := opts.Logger.With(zap.String("frontend", name))
	if cfg.System || cfg.CurrentUser {
		logger.Debug("system and current_user are not selectable, reading the local journal")
	}
	return &Frontend{name: name, cfg: cfg, logger: logger}, nil
}

// Stream opens the journal at its tail and follows new entries.
func (f *Frontend) Stream(ctx context.Context, _ config.FrontendRef, _ []config.NamedValue) (frontend.Stream, error) {
	j, err := f.open()
	if err != nil {
		return nil, err
	}

	s := &stream{
		entries: make(chan document.Document, bufferedEntries),
		errs:    make(chan error, 1),
	}
	go s.read(ctx, j, f.logger)
	return s, nil
}

// Close is a no-op; readers stop with their stream context.
func (f *Frontend) Close() error {
	return nil
}

func (f *Frontend) open() (*sdjournal.Journal, error) {
	var (
		j   *sdjournal.Journal
		err error
	)
	if f.cfg.Directory != "" {
		j, err = sdjournal.NewJournalFromDir(f.cfg.Directory)
	} else {
		j, err = sdjournal.NewJournal()
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := addUnitMatches(j, f.cfg.Unit); err != nil {
		j.Close()
		return nil, fmt.Errorf("add unit matches: %w", err)
	}

	// SeekTail positions after the last entry; step back so Next yields
	// only entries written from now on.
	if err := j.SeekTail(); err != nil {
		j.Close()
		return nil, fmt.Errorf("seek journal tail: %w", err)
	}
	if _, err := j.Previous(); err != nil {
		j.Close()
		return nil, fmt.Errorf("seek journal tail: %w", err)
	}
	return j, nil
}

type stream struct {
	entries chan document.Document
	errs    chan error
}

func (s *stream) read(ctx context.Context, j *sdjournal.Journal, logger *zap.Logger) {
	defer j.Close()

	for ctx.Err() == nil {
		n, err := j.Next()
		if err != nil {
			s.errs <- fmt.Errorf("read journal: %w", err)
			return
		}
		if n == 0 {
			j.Wait(waitTimeout)
			continue
		}

		entry, err := j.GetEntry()
		if err != nil {
			logger.Warn("Skipping unreadable journal entry", zap.Error(err))
			continue
		}

		select {
		case s.entries <- toDocument(entry.Fields, entry.RealtimeTimestamp):
		case <-ctx.Done():
			return
		}
	}
}

func (s *stream) Next(ctx context.Context) (document.Document, error) {
	select {
	case doc := <-s.entries:
		return doc, nil
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
