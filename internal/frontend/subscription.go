package frontend

import (
	"context"
	"errors"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/mux"
	"go.uber.org/zap"
)

// SubscriptionStream reads one multiplexer receiver. Narrow streams wrap
// each payload as {"<topic>": payload} so value pointers select by topic.
type SubscriptionStream struct {
	name     string
	receiver *mux.Receiver
	narrow   bool
	logger   *zap.Logger
	opts     Options
}

// Subscribe registers pattern on m and returns the stream for shape.
func Subscribe(ctx context.Context, m *mux.Mux, name, pattern string, shape config.DataType, opts Options) (*SubscriptionStream, error) {
	opts = opts.WithDefaults()
	receiver, err := m.Subscribe(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStream{
		name:     name,
		receiver: receiver,
		narrow:   shape == config.Narrow,
		logger:   opts.Logger.With(zap.String("frontend", name), zap.String("topic", pattern)),
		opts:     opts,
	}, nil
}

// Next returns the next message. Lag is logged and counted, then reading
// continues with the oldest retained message.
func (s *SubscriptionStream) Next(ctx context.Context) (document.Document, error) {
	for {
		e, err := s.receiver.Recv(ctx)

		var lagged *mux.LaggedError
		if errors.As(err, &lagged) {
			s.logger.Warn("Subscriber fell behind, messages dropped", zap.Uint64("missed", lagged.Missed))
			s.opts.Metrics.RecordLag(s.name, s.receiver.Pattern(), lagged.Missed)
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.narrow {
			return map[string]any{e.Topic: e.Document}, nil
		}
		return e.Document, nil
	}
}
