package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/codec"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/config"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/session"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
)

// #region runtime

// runtime is everything a subcommand needs, built once from config.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    state.Persistence
	registry *prometheus.Registry
	engine   *orchestrator.Engine
	closers  []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	_ = r.logger.Sync()
	return errors.Join(errs...)
}

// shutdown closes the runtime and logs what failed to close.
func (r *runtime) shutdown() {
	if err := r.Close(); err != nil {
		r.logger.Warn("runtime close failed", zap.String("component", "controller"), zap.Error(err))
	}
}

func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		return nil, err
	}
	return buildRuntime(cfg)
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics.New(rt.registry)),
	}
	sessionOpts := []session.Option{session.WithLogger(logger)}

	switch cfg.Storage.Driver {
	case "sqlite":
		s, err := state.NewStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		rt.store = s
		rt.closers = append(rt.closers, s.Close)
		opts = append(opts, orchestrator.WithProvenance(s.DB()))
	case "redis":
		s := state.NewRedisStore(cfg.Storage.RedisAddr, cfg.Storage.RedisPass, cfg.Storage.RedisDB,
			state.WithPrefix(cfg.Storage.RedisPrefix), state.WithTTL(cfg.Storage.RedisTTL()))
		rt.store = s
		rt.closers = append(rt.closers, s.Close)
		if cfg.Storage.DistLock {
			sessionOpts = append(sessionOpts, session.WithLocker(session.NewRedisLocker(s.Client(), cfg.Storage.RedisPrefix)))
		}
	default:
		rt.store = state.NewMemoryStore()
	}
	opts = append(opts, orchestrator.WithSessions(session.NewManager(sessionOpts...)))

	gen := cfg.Generation
	switch gen.Backend {
	case "grpc":
		c, err := codec.NewCodecClient(gen.Addr)
		if err != nil {
			rt.shutdown()
			return nil, fmt.Errorf("connect codec service at %s: %w", gen.Addr, err)
		}
		rt.closers = append(rt.closers, c.Close)
		opts = append(opts, orchestrator.WithGenerator(codec.WithTimeout(c, gen.Timeout())))
		if cfg.Embeddings.Enabled {
			opts = append(opts, orchestrator.WithEmbedder(c))
		}
	case "openai":
		c := codec.NewOpenAIClient(codec.OpenAIConfig{
			APIKey:         gen.APIKey,
			BaseURL:        gen.BaseURL,
			Model:          gen.Model,
			EmbeddingModel: cfg.Embeddings.Model,
		})
		opts = append(opts, orchestrator.WithGenerator(codec.WithTimeout(c, gen.Timeout())))
		if cfg.Embeddings.Enabled {
			opts = append(opts, orchestrator.WithEmbedder(c))
		}
	}

	rt.engine, err = orchestrator.NewEngine(rt.store, cfg.Engine(), opts...)
	if err != nil {
		rt.shutdown()
		return nil, err
	}
	logger.Info("engine ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("generation", gen.Backend),
		zap.String("strategy", cfg.Lane.Strategy),
	)
	return rt, nil
}

// #endregion runtime
