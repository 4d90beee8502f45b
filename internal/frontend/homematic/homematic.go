// Package homematic polls a Homematic CCU3 through its JSON-RPC API.
//
// Every cycle logs in, lists all devices, loads the VALUES and MASTER
// paramsets of the channels the data entry references, and logs out. The
// document maps device names to device objects; paramsets that were not
// loaded are replaced by a NOT_LOADED marker.
package homematic

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/document"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/iot2db/iot2db/internal/frontend/httpclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	paramsetValues = "VALUES"
	paramsetMaster = "MASTER"

	// RPCPath is appended to the configured URL.
	RPCPath = "/api/homematic.cgi"

	maxConcurrentFetches = 8
)

var notLoaded = map[string]any{"NOT_LOADED": "this object hasn't been loaded - access it to load it"}

type channelKey struct {
	device  string
	channel int
}

type paramsets struct {
	values bool
	master bool
}

// Frontend is a configured CCU.
type Frontend struct {
	name string
	cfg  *config.HomematicCCU3Config
	rpc  *rpc
	opts frontend.Options
}

// New creates the frontend.
func New(name string, cfg *config.HomematicCCU3Config, opts frontend.Options) *Frontend {
	opts = opts.WithDefaults()

	clientOpts := httpclient.DefaultOptions(name)
	clientOpts.Timeout = time.Minute
	clientOpts.BasicAuth = cfg.BasicAuth
	clientOpts.Logger = opts.Logger
	clientOpts.Metrics = opts.Metrics

	return &Frontend{
		name: name,
		cfg:  cfg,
		rpc:  &rpc{client: httpclient.New(clientOpts), url: strings.TrimSuffix(cfg.URL, "/") + RPCPath},
		opts: opts,
	}
}

// Stream polls the CCU, loading only the paramsets values refer to.
func (f *Frontend) Stream(_ context.Context, _ config.FrontendRef, values []config.NamedValue) (frontend.Stream, error) {
	s := &stream{
		frontend: f,
		load:     referencedParamsets(values),
		logger:   f.opts.Logger.With(zap.String("frontend", f.name)),
	}
	interval := time.Duration(f.cfg.FrequencySecs) * time.Second
	return frontend.NewPoller(f.name, interval, s.poll, f.opts), nil
}

// Close releases idle connections.
func (f *Frontend) Close() error {
	f.rpc.client.Resty.GetClient().CloseIdleConnections()
	return nil
}

// referencedParamsets collects the channels addressed by pointers of the
// form /<device>/channels/<n>/values|master/...
func referencedParamsets(values []config.NamedValue) map[channelKey]paramsets {
	load := make(map[channelKey]paramsets)
	for _, v := range values {
		if v.Pointer == nil {
			continue
		}
		segments := document.Segments(*v.Pointer)
		if len(segments) < 4 || segments[1] != "channels" {
			continue
		}
		channel, err := strconv.Atoi(segments[2])
		if err != nil {
			continue
		}

		key := channelKey{device: segments[0], channel: channel}
		p := load[key]
		switch segments[3] {
		case "values":
			p.values = true
		case "master":
			p.master = true
		default:
			continue
		}
		load[key] = p
	}
	return load
}

type stream struct {
	frontend *Frontend
	load     map[channelKey]paramsets
	logger   *zap.Logger
}

type fetch struct {
	channel  map[string]any
	field    string
	address  any
	iface    any
	paramset string
	result   document.Document
}

func (s *stream) poll(ctx context.Context) (document.Document, error) {
	rpc := s.frontend.rpc

	session, err := rpc.call(ctx, "Session.login", map[string]any{
		"username": s.frontend.cfg.Username,
		"password": s.frontend.cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	sessionID, ok := session.(string)
	if !ok {
		return nil, fmt.Errorf("%w: Session.login returned %T, want string", ErrRPC, session)
	}
	defer func() {
		_, logoutErr := rpc.call(context.WithoutCancel(ctx), "Session.logout", map[string]any{"_session_id_": sessionID})
		if logoutErr != nil {
			s.logger.Warn("Logout failed", zap.Error(logoutErr))
		}
	}()

	listed, err := rpc.call(ctx, "Device.listAllDetail", map[string]any{"_session_id_": sessionID})
	if err != nil {
		return nil, err
	}
	devices, ok := listed.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: Device.listAllDetail returned %T, want array", ErrRPC, listed)
	}

	result := make(map[string]any, len(devices))
	var fetches []*fetch
	for _, d := range devices {
		device, ok := d.(map[string]any)
		if !ok {
			continue
		}
		name, _ := device["name"].(string)
		channels, _ := device["channels"].([]any)

		for i, c := range channels {
			channel, ok := c.(map[string]any)
			if !ok {
				continue
			}
			channel["values"] = notLoaded
			channel["master"] = notLoaded

			want := s.load[channelKey{device: name, channel: i}]
			if want.values {
				fetches = append(fetches, &fetch{channel: channel, field: "values", address: channel["address"], iface: device["interface"], paramset: paramsetValues})
			}
			if want.master {
				fetches = append(fetches, &fetch{channel: channel, field: "master", address: channel["address"], iface: device["interface"], paramset: paramsetMaster})
			}
		}
		result[name] = device
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, f := range fetches {
		g.Go(func() error {
			res, err := rpc.call(gctx, "Interface.getParamset", map[string]any{
				"_session_id_": sessionID,
				"address":      f.address,
				"interface":    f.iface,
				"paramsetKey":  f.paramset,
			})
			if err != nil {
				return fmt.Errorf("%s paramset of %v: %w", f.paramset, f.address, err)
			}
			f.result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, f := range fetches {
		f.channel[f.field] = f.result
	}
	return result, nil
}
