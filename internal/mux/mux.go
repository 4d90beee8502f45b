// Package mux fans pub/sub messages out to subscribers.
//
// A Mux owns the subscription table of one transport connection. Patterns
// that compile to the same expression share one entry and one upstream
// subscription. All table changes, transport writes and deliveries happen
// on the goroutine running Run; transports and subscribers talk to it over
// channels.
package mux

import (
	"context"
	"regexp"

	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// DefaultCapacity is the per-receiver buffer used when none is configured.
const DefaultCapacity = 100

// Transport issues upstream subscriptions. Subscribe must not block on the
// broker round-trip; messages are handed back through Mux.Deliver.
type Transport interface {
	Subscribe(filter string) error
}

// Message is a raw inbound message. Filter is set by transports that
// deliver per subscription and restricts delivery to the entry with that
// filter.
type Message struct {
	Topic   string
	Payload []byte
	Filter  string
}

// Options configures a Mux.
type Options struct {
	// Name labels logs and metrics, usually the frontend name.
	Name     string
	Syntax   Syntax
	Capacity int
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
}

type entry struct {
	filter    string
	re        *regexp.Regexp
	receivers []*Receiver
}

type subscribeRequest struct {
	pattern string
	re      *regexp.Regexp
	reply   chan *Receiver
}

// Mux is a topic multiplexer.
type Mux struct {
	name      string
	syntax    Syntax
	capacity  int
	transport Transport
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	requests  chan subscribeRequest
	inbound   chan Message
	reconnect chan struct{}
	done      chan struct{}

	// owned by Run
	entries []*entry
}

// New creates a multiplexer over transport. Run must be started for
// subscriptions and deliveries to make progress.
func New(transport Transport, opts Options) *Mux {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Syntax == (Syntax{}) {
		opts.Syntax = MQTT
	}
	return &Mux{
		name:      opts.Name,
		syntax:    opts.Syntax,
		capacity:  opts.Capacity,
		transport: transport,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		requests:  make(chan subscribeRequest),
		inbound:   make(chan Message, opts.Capacity),
		reconnect: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Subscribe registers pattern and returns its receiver.
func (m *Mux) Subscribe(ctx context.Context, pattern string) (*Receiver, error) {
	re, err := m.syntax.Compile(pattern)
	if err != nil {
		return nil, err
	}

	req := subscribeRequest{pattern: pattern, re: re, reply: make(chan *Receiver, 1)}
	select {
	case m.requests <- req:
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r, nil
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver hands an inbound message to the owner. It blocks while the
// inbound queue is full and drops the message once the mux stopped.
func (m *Mux) Deliver(msg Message) {
	select {
	case m.inbound <- msg:
	case <-m.done:
	}
}

// Reconnected asks the owner to re-issue every upstream subscription.
func (m *Mux) Reconnected() {
	select {
	case m.reconnect <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (m *Mux) Done() <-chan struct{} {
	return m.done
}

// Run serves the table until ctx ends.
func (m *Mux) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.requests:
			req.reply <- m.subscribe(req)
		case msg := <-m.inbound:
			m.dispatch(msg)
		case <-m.reconnect:
			m.resubscribe()
		}
	}
}

func (m *Mux) subscribe(req subscribeRequest) *Receiver {
	r := newReceiver(req.pattern, m.capacity, m.done)

	source := req.re.String()
	for _, e := range m.entries {
		if e.re.String() == source {
			e.receivers = append(e.receivers, r)
			return r
		}
	}

	e := &entry{filter: req.pattern, re: req.re, receivers: []*Receiver{r}}
	m.entries = append(m.entries, e)
	if err := m.transport.Subscribe(e.filter); err != nil {
		m.logger.Warn("Upstream subscription failed, retrying on reconnect",
			zap.String("topic", e.filter),
			zap.Error(err))
	} else {
		m.logger.Debug("Subscribed", zap.String("topic", e.filter))
	}
	return r
}

func (m *Mux) resubscribe() {
	for _, e := range m.entries {
		if err := m.transport.Subscribe(e.filter); err != nil {
			m.logger.Warn("Resubscription failed",
				zap.String("topic", e.filter),
				zap.Error(err))
		}
	}
	m.logger.Info("Resubscribed after reconnect", zap.Int("subscriptions", len(m.entries)))
}

func (m *Mux) dispatch(msg Message) {
	var (
		doc     document.Document
		decoded bool
	)

	for _, e := range m.entries {
		if msg.Filter != "" && msg.Filter != e.filter {
			continue
		}
		if !e.re.MatchString(msg.Topic) {
			continue
		}
		if !decoded {
			doc = m.decode(msg)
			decoded = true
		}
		for _, r := range e.receivers {
			r.push(Event{Topic: msg.Topic, Document: doc})
		}
	}
}

func (m *Mux) decode(msg Message) document.Document {
	doc, err := document.Decode(msg.Payload)
	if err == nil {
		return doc
	}
	m.logger.Warn("Payload is not JSON, delivering raw text",
		zap.String("topic", msg.Topic),
		zap.Error(err))
	m.metrics.RecordDecodeError(m.name)
	return map[string]any{"payload": string(msg.Payload)}
}
