// Package nats subscribes to a NATS server.
//
// Subjects are multiplexed like MQTT topics with NATS wildcard syntax. The
// client library restores subscriptions after reconnects; each delivery is
// tagged with its subscription so overlapping subjects do not duplicate.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/iot2db/iot2db/internal/mux"
	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Frontend is a server connection.
type Frontend struct {
	name   string
	conn   *natsgo.Conn
	mux    *mux.Mux
	cancel context.CancelFunc
	logger *zap.Logger
	opts   frontend.Options
}

// Options renders the connection options for cfg.
func Options(name string, cfg *config.NATSConfig, logger *zap.Logger) []natsgo.Option {
	options := []natsgo.Option{
		natsgo.Name("iot2db-" + name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrlRedacted()))
		}),
	}
	if cfg.Username != "" {
		options = append(options, natsgo.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, natsgo.Token(cfg.Token))
	}
	return options
}

// New connects and starts the multiplexer. An unreachable server is
// retried in the background.
func New(ctx context.Context, name string, cfg *config.NATSConfig, opts frontend.Options) (*Frontend, error) {
	f := newFrontend(ctx, name, cfg.BufferedMessages, opts)

	conn, err := natsgo.Connect(cfg.URL, Options(name, cfg, f.logger)...)
	if err != nil {
		f.cancel()
		return nil, fmt.Errorf("nats frontend %q: %w", name, err)
	}
	f.conn = conn
	return f, nil
}

func newFrontend(ctx context.Context, name string, capacity int, opts frontend.Options) *Frontend {
	opts = opts.WithDefaults()
	logger := opts.Logger.With(zap.String("frontend", name))

	f := &Frontend{name: name, logger: logger, opts: opts}
	f.mux = mux.New(f, mux.Options{
		Name:     name,
		Syntax:   mux.NATS,
		Capacity: capacity,
		Logger:   logger,
		Metrics:  opts.Metrics,
	})

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	go f.mux.Run(runCtx)
	return f
}

// Stream subscribes to ref.NATSSubject.
func (f *Frontend) Stream(ctx context.Context, ref config.FrontendRef, _ []config.NamedValue) (frontend.Stream, error) {
	if ref.NATSSubject == "" {
		return nil, fmt.Errorf("%w: nats frontend %q needs nats_subject", config.ErrInvalid, f.name)
	}
	return frontend.Subscribe(ctx, f.mux, f.name, ref.NATSSubject, ref.DataType, f.opts)
}

// Subscribe creates an asynchronous subscription for subject.
func (f *Frontend) Subscribe(subject string) error {
	_, err := f.conn.Subscribe(subject, f.handler(subject))
	return err
}

func (f *Frontend) handler(subject string) natsgo.MsgHandler {
	return func(msg *natsgo.Msg) {
		f.mux.Deliver(mux.Message{Topic: msg.Subject, Payload: msg.Data, Filter: subject})
	}
}

// Close stops the multiplexer and drains the connection.
func (f *Frontend) Close() error {
	f.cancel()
	<-f.mux.Done()
	if f.conn == nil {
		return nil
	}
	if err := f.conn.Drain(); err != nil {
		f.conn.Close()
		return err
	}
	return nil
}
