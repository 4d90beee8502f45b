// Package mqtt subscribes to an MQTT broker.
//
// One client connection is shared by every data entry using the frontend;
// topic filters are multiplexed by a mux.Mux. Messages are received with
// QoS 0 through the default publish handler so overlapping filters deliver
// each message once.
package mqtt

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/iot2db/iot2db/internal/mux"
	"go.uber.org/zap"
)

const (
	qos               = 0
	reconnectInterval = 5 * time.Second
)

// ClientIDPrefix starts generated client ids.
const ClientIDPrefix = "iot2db-"

// Frontend is a broker connection.
type Frontend struct {
	name   string
	client paho.Client
	mux    *mux.Mux
	cancel context.CancelFunc
	logger *zap.Logger
	opts   frontend.Options
}

// ClientOptions renders the paho options for cfg.
func ClientOptions(cfg *config.MQTTConfig) *paho.ClientOptions {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = ClientIDPrefix + uuid.NewString()
	}

	opts := paho.NewClientOptions().
		AddBroker("tcp://" + net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))).
		SetClientID(clientID).
		SetKeepAlive(time.Duration(cfg.KeepAliveSecs) * time.Second).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectInterval)
	if cfg.Auth != nil {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	return opts
}

// New connects to the broker in the background and starts the multiplexer.
// Subscriptions made before the connection is up are issued once it is.
func New(ctx context.Context, name string, cfg *config.MQTTConfig, opts frontend.Options) *Frontend {
	f := newFrontend(ctx, name, cfg.BufferedMessages, opts)

	clientOpts := ClientOptions(cfg).
		SetDefaultPublishHandler(f.onMessage).
		SetOnConnectHandler(f.onConnect).
		SetConnectionLostHandler(f.onConnectionLost)
	f.client = paho.NewClient(clientOpts)

	token := f.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			f.logger.Error("MQTT connect failed", zap.Error(err))
		}
	}()
	return f
}

func newFrontend(ctx context.Context, name string, capacity int, opts frontend.Options) *Frontend {
	opts = opts.WithDefaults()
	logger := opts.Logger.With(zap.String("frontend", name))

	f := &Frontend{name: name, logger: logger, opts: opts}
	f.mux = mux.New(f, mux.Options{
		Name:     name,
		Syntax:   mux.MQTT,
		Capacity: capacity,
		Logger:   logger,
		Metrics:  opts.Metrics,
	})

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	go f.mux.Run(runCtx)
	return f
}

// Stream subscribes to ref.MQTTTopic.
func (f *Frontend) Stream(ctx context.Context, ref config.FrontendRef, _ []config.NamedValue) (frontend.Stream, error) {
	if ref.MQTTTopic == "" {
		return nil, fmt.Errorf("%w: mqtt frontend %q needs mqtt_topic", config.ErrInvalid, f.name)
	}
	return frontend.Subscribe(ctx, f.mux, f.name, ref.MQTTTopic, ref.DataType, f.opts)
}

// Subscribe issues an upstream subscription without waiting for the
// broker's acknowledgement.
func (f *Frontend) Subscribe(filter string) error {
	token := f.client.Subscribe(filter, qos, nil)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			f.logger.Warn("MQTT subscribe failed", zap.String("topic", filter), zap.Error(err))
		}
	}()
	return nil
}

// Close stops the multiplexer and disconnects.
func (f *Frontend) Close() error {
	f.cancel()
	<-f.mux.Done()
	if f.client != nil {
		f.client.Disconnect(250)
	}
	return nil
}

func (f *Frontend) onMessage(_ paho.Client, msg paho.Message) {
	f.mux.Deliver(mux.Message{Topic: msg.Topic(), Payload: msg.Payload()})
}

func (f *Frontend) onConnect(paho.Client) {
	f.logger.Info("MQTT connected")
	f.mux.Reconnected()
}

func (f *Frontend) onConnectionLost(_ paho.Client, err error) {
	f.logger.Warn("MQTT connection lost", zap.Error(err))
}
