package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/iot2db/iot2db/internal/backend"
	"github.com/iot2db/iot2db/internal/backend/sqldb"
	"github.com/iot2db/iot2db/internal/backend/stdout"
	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/frontend"
	"github.com/iot2db/iot2db/internal/frontend/homematic"
	"github.com/iot2db/iot2db/internal/frontend/httprest"
	"github.com/iot2db/iot2db/internal/frontend/journald"
	"github.com/iot2db/iot2db/internal/frontend/mqtt"
	"github.com/iot2db/iot2db/internal/frontend/nats"
	"github.com/iot2db/iot2db/internal/frontend/shell"
	"github.com/iot2db/iot2db/internal/infrastructure/logging"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"github.com/iot2db/iot2db/internal/mapper"
	"github.com/iot2db/iot2db/internal/mux"
	"github.com/iot2db/iot2db/internal/shared/id"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Evaluator compiles and runs the expressions of a configuration.
type Evaluator interface {
	Compile(expression string) error
	EvaluateString(ctx context.Context, expression string, input string) (string, error)
	EvaluateBool(ctx context.Context, expression string, input any) (bool, error)
}

// FrontendOpener opens a configured frontend.
type FrontendOpener func(ctx context.Context, cfg config.FrontendConfig, opts frontend.Options) (frontend.Frontend, error)

// BackendOpener opens a configured backend.
type BackendOpener func(ctx context.Context, cfg config.BackendConfig, opts sqldb.Options) (backend.Backend, error)

// Deps carries what Build needs besides the configuration.
type Deps struct {
	Evaluator     Evaluator
	Logger        *logging.Logger
	Metrics       *monitoring.Metrics
	SweepInterval time.Duration
	// Stdout receives the records of the stdout backend.
	Stdout io.Writer
	// Now is the clock of retention sweeps.
	Now func() time.Time

	OpenFrontend FrontendOpener
	OpenBackend  BackendOpener
}

// OpenFrontend constructs the frontend matching cfg.Type.
func OpenFrontend(ctx context.Context, cfg config.FrontendConfig, opts frontend.Options) (frontend.Frontend, error) {
	switch cfg.Type {
	case config.FrontendHTTPRest:
		return httprest.New(cfg.Name, cfg.HTTPRest, opts), nil
	case config.FrontendHomematicCCU3:
		return homematic.New(cfg.Name, cfg.HomematicCCU3, opts), nil
	case config.FrontendMQTT:
		return mqtt.New(ctx, cfg.Name, cfg.MQTT, opts), nil
	case config.FrontendNATS:
		return nats.New(ctx, cfg.Name, cfg.NATS, opts)
	case config.FrontendShell:
		return shell.New(cfg.Name, cfg.Shell, opts)
	case config.FrontendJournald:
		return journald.New(cfg.Name, cfg.Journald, opts)
	}
	return nil, fmt.Errorf("%w: frontend %q has unknown type %q", config.ErrUnknownFrontend, cfg.Name, cfg.Type)
}

// OpenBackend connects the backend matching cfg.Type.
func OpenBackend(ctx context.Context, cfg config.BackendConfig, opts sqldb.Options) (backend.Backend, error) {
	switch cfg.Type {
	case config.BackendPostgres:
		return sqldb.OpenPostgres(ctx, cfg.Name, cfg.Postgres, opts)
	case config.BackendSQLite:
		return sqldb.OpenSQLite(ctx, cfg.Name, cfg.SQLite, opts)
	}
	return nil, fmt.Errorf("%w: backend %q has unknown type %q", config.ErrUnknownBackend, cfg.Name, cfg.Type)
}

// builder tracks what Build opened so a failure can release it.
type builder struct {
	deps      Deps
	frontends map[string]frontend.Frontend
	backends  map[string]backend.Backend
	openedF   []frontend.Frontend
	openedB   []backend.Backend
}

// Build validates expressions and topic patterns, opens every referenced
// frontend and backend once and creates one pipeline per data entry. All
// configuration problems are reported together; nothing stays open when
// Build fails.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.OpenFrontend == nil {
		deps.OpenFrontend = OpenFrontend
	}
	if deps.OpenBackend == nil {
		deps.OpenBackend = OpenBackend
	}

	if err := check(cfg, deps.Evaluator); err != nil {
		return nil, err
	}

	b := &builder{
		deps:      deps,
		frontends: make(map[string]frontend.Frontend),
		backends:  make(map[string]backend.Backend),
	}

	var pipelines []*Pipeline
	for _, data := range cfg.Data {
		p, err := b.pipeline(ctx, cfg, data)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("data %q: %w", data.Name, err)
		}
		pipelines = append(pipelines, p)
	}

	return NewOrchestrator(pipelines, b.openedF, b.openedB, deps.Logger.Logger, deps.Metrics), nil
}

// check compiles every expression and topic pattern.
func check(cfg *config.Config, eval Evaluator) error {
	var errs error
	compile := func(data, what, expression string) {
		if expression == "" {
			return
		}
		if eval == nil {
			errs = multierr.Append(errs, fmt.Errorf("data %q: %s: %w", data, what, mapper.ErrNoEvaluator))
			return
		}
		if err := eval.Compile(expression); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("data %q: %s: %w", data, what, err))
		}
	}

	for _, data := range cfg.Data {
		compile(data.Name, "filter", data.Filter)
		for _, v := range data.Values {
			compile(data.Name, fmt.Sprintf("value %q preprocess", v.Name), v.Preprocess)
			compile(data.Name, fmt.Sprintf("value %q postprocess", v.Name), v.Postprocess)
		}

		if data.Frontend.MQTTTopic != "" {
			if _, err := mux.MQTT.Compile(data.Frontend.MQTTTopic); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("data %q: mqtt_topic: %w", data.Name, err))
			}
		}
		if data.Frontend.NATSSubject != "" {
			if _, err := mux.NATS.Compile(data.Frontend.NATSSubject); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("data %q: nats_subject: %w", data.Name, err))
			}
		}
	}
	return errs
}

func (b *builder) pipeline(ctx context.Context, cfg *config.Config, data config.DataConfig) (*Pipeline, error) {
	runID := id.NewRunID()
	logger := b.deps.Logger.Pipeline(data.Name, runID.String())

	f, err := b.frontend(ctx, cfg, data.Frontend.Name)
	if err != nil {
		return nil, err
	}
	be, err := b.backend(ctx, cfg, data.Backend.Name)
	if err != nil {
		return nil, err
	}

	inserter, err := be.Inserter(data.Backend)
	if err != nil {
		return nil, err
	}

	var eval mapper.Evaluator
	if b.deps.Evaluator != nil {
		eval = b.deps.Evaluator
	}
	m, err := mapper.New(data, mapper.NewProcessor(be.Escaper(), eval), mapper.Options{
		Logger:  logger,
		Metrics: b.deps.Metrics,
	})
	if err != nil {
		return nil, err
	}

	stream, err := f.Stream(ctx, data.Frontend, data.Values)
	if err != nil {
		return nil, fmt.Errorf("frontend %q: %w", data.Frontend.Name, err)
	}

	var filter Filter
	if b.deps.Evaluator != nil {
		filter = b.deps.Evaluator
	}

	return New(Params{
		Data:          data,
		RunID:         runID,
		Stream:        stream,
		Mapper:        m,
		Inserter:      inserter,
		Filter:        filter,
		SweepInterval: b.deps.SweepInterval,
		Logger:        logger,
		Metrics:       b.deps.Metrics,
	}), nil
}

func (b *builder) frontend(ctx context.Context, cfg *config.Config, name string) (frontend.Frontend, error) {
	if f, ok := b.frontends[name]; ok {
		return f, nil
	}
	fc, ok := cfg.Frontend(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownFrontend, name)
	}

	f, err := b.deps.OpenFrontend(ctx, fc, frontend.Options{Logger: b.deps.Logger.Logger, Metrics: b.deps.Metrics})
	if err != nil {
		return nil, fmt.Errorf("open frontend %q: %w", name, err)
	}
	b.frontends[name] = f
	b.openedF = append(b.openedF, f)
	return f, nil
}

func (b *builder) backend(ctx context.Context, cfg *config.Config, name string) (backend.Backend, error) {
	if be, ok := b.backends[name]; ok {
		return be, nil
	}

	var be backend.Backend
	if name == config.StdoutBackend {
		be = stdout.New(b.deps.Stdout)
	} else {
		bc, ok := cfg.Backend(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, name)
		}
		opened, err := b.deps.OpenBackend(ctx, bc, sqldb.Options{Logger: b.deps.Logger.Logger, Now: b.deps.Now})
		if err != nil {
			return nil, fmt.Errorf("open backend %q: %w", name, err)
		}
		be = opened
	}
	b.backends[name] = be
	b.openedB = append(b.openedB, be)
	return be, nil
}

func (b *builder) close() {
	for _, f := range b.openedF {
		if err := f.Close(); err != nil {
			b.deps.Logger.Warn("Closing frontend failed", zap.Error(err))
		}
	}
	for _, be := range b.openedB {
		if err := be.Close(); err != nil {
			b.deps.Logger.Warn("Closing backend failed", zap.Error(err))
		}
	}
}
