package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iot2db/iot2db/internal/config"
	infraconfig "github.com/iot2db/iot2db/internal/infrastructure/config"
	"github.com/iot2db/iot2db/internal/infrastructure/logging"
	"github.com/iot2db/iot2db/internal/infrastructure/monitoring"
	"github.com/iot2db/iot2db/internal/infrastructure/server"
	"github.com/iot2db/iot2db/internal/pipeline"
	"github.com/iot2db/iot2db/internal/script"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := infraconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.Logging.Level

	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("iot2db stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("iot2db stopped")
}

func run(cfg *infraconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipelineCfg, err := config.Load(cfg.Pipeline.ConfigFile)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.Pipeline.ConfigFile, err)
	}
	logger.Info("Configuration loaded",
		zap.String("path", cfg.Pipeline.ConfigFile),
		zap.Int("frontends", len(pipelineCfg.Frontends)),
		zap.Int("backends", len(pipelineCfg.Backends)),
		zap.Int("data", len(pipelineCfg.Data)))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	eval := script.New(script.Config{
		Timeout:  cfg.Script.Timeout,
		PoolSize: cfg.Script.PoolSize,
	})
	defer eval.Close()

	orchestrator, err := pipeline.Build(ctx, pipelineCfg, pipeline.Deps{
		Evaluator:     eval,
		Logger:        logger,
		Metrics:       metrics,
		SweepInterval: cfg.Pipeline.SweepInterval,
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Address != "" {
		srv := server.New(server.Config{
			Address:  cfg.Metrics.Address,
			Gatherer: registry,
			Metrics:  metrics,
			Health:   orchestrator.Health,
			Logger:   logger.Logger,
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("Metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	logger.Info("Starting pipelines")
	return orchestrator.Run(ctx)
}
