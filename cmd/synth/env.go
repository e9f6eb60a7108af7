package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/bridge"
	"github.com/CedricPei/MAS-RAG/internal/cache/redis"
	"github.com/CedricPei/MAS-RAG/internal/catalog"
	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/generator"
	"github.com/CedricPei/MAS-RAG/internal/introspect"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/internal/oracle"
	"github.com/CedricPei/MAS-RAG/internal/pipeline"
	"github.com/CedricPei/MAS-RAG/internal/storage/sqlite"
	"github.com/CedricPei/MAS-RAG/pkg/config"
	appLogger "github.com/CedricPei/MAS-RAG/pkg/logger"
)

// env holds what every command needs. Optional services are opened on demand
// and released by close.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	catalog *catalog.Catalog
	cache   *redis.Client
	closers []func()
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configFile, config.WithFlags(cmd.Flags(), flagKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	metrics.Init()

	return &env{
		cfg:     cfg,
		logger:  appLogger.GetLogger(),
		catalog: catalog.New(cfg.Databases),
	}, nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *env) mode() (generator.Mode, error) {
	return generator.ParseMode(e.cfg.Pipeline.Mode)
}

func (e *env) dbIDs() ([]string, error) {
	if len(e.cfg.Pipeline.DBIDs) == 0 {
		return nil, fmt.Errorf("no database selected: pass --db or set pipeline.dbIds")
	}
	return e.cfg.Pipeline.DBIDs, nil
}

// stages parses pipeline.stages; an empty list selects every stage.
func (e *env) stages() ([]pipeline.Stage, error) {
	return pipeline.ParseStages(e.cfg.Pipeline.Stages)
}

func (e *env) layout() (dataset.Layout, error) {
	mode, err := e.mode()
	if err != nil {
		return dataset.Layout{}, err
	}
	return dataset.Layout{Root: e.cfg.Pipeline.OutputDir, Prefix: string(mode)}, nil
}

func (e *env) introspector() *introspect.Introspector {
	return introspect.New(e.catalog, e.logger)
}

func (e *env) executor() *bridge.Executor {
	return bridge.NewExecutor(e.catalog, e.logger)
}

func (e *env) ledgerPath() string {
	if e.cfg.Ledger.Path != "" {
		return e.cfg.Ledger.Path
	}
	return filepath.Join(e.cfg.Pipeline.OutputDir, "runs.db")
}

func (e *env) openLedger() (*sqlite.Client, error) {
	path := e.ledgerPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	ledger, err := sqlite.NewClient(path)
	if err != nil {
		return nil, err
	}
	if err := ledger.InitSchema(); err != nil {
		ledger.Close()
		return nil, err
	}
	e.closers = append(e.closers, func() { ledger.Close() })
	return ledger, nil
}

// openCache connects to redis when enabled. An unreachable cache is logged
// and the command proceeds without it.
func (e *env) openCache(ctx context.Context) *redis.Client {
	if !e.cfg.Redis.Enabled || e.cache != nil {
		return e.cache
	}
	cache, err := redis.NewClient(ctx, e.cfg.Redis)
	if err != nil {
		e.logger.Warn("Proceeding without cache", zap.Error(err))
		return nil
	}
	e.cache = cache
	e.closers = append(e.closers, func() { cache.Close() })
	return cache
}

// openOracle returns the configured provider and the oracle the pipeline
// should call, which serves temperature-0 replies from the cache if enabled.
func (e *env) openOracle(ctx context.Context) (oracle.Provider, oracle.Oracle, error) {
	provider, err := oracle.New(ctx, e.cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create oracle: %w", err)
	}

	if cache := e.openCache(ctx); cache != nil {
		return provider, oracle.NewCached(provider, cache, provider.Name(), e.logger), nil
	}
	return provider, provider, nil
}
