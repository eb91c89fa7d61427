package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/embedding"
	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/history"
	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/llm"
	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/config"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/logger"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/tracer"
)

const shutdownTimeout = 5 * time.Second

// runtime holds the components shared by every command.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *llm.Client
	history *history.SQLiteStore // opened on demand

	closers []func() error
}

// newRuntime loads config and wires the logger, tracer and service client.
// The --model flag, when the command defines it, overrides ollama.model.
func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}
	if m := c.String(modelFlag.Name); m != "" {
		cfg.Ollama.Model = m
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: log}
	rt.closers = append(rt.closers, closeLog)

	shutdown, err := tracer.Setup(c.Context, cfg.Tracer)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("setup tracer: %w", err)
	}
	rt.closers = append(rt.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdown(ctx)
	})

	rt.client = llm.NewFromConfig(cfg, log)
	log.Debug("runtime ready",
		"base_url", rt.client.BaseURL(),
		"model", rt.client.Model(),
		"history", cfg.History.Enabled,
	)
	return rt, nil
}

// openHistory opens the history store. It returns nil when history is
// disabled in config.
func (rt *runtime) openHistory() (*history.SQLiteStore, error) {
	if !rt.cfg.History.Enabled {
		return nil, nil
	}
	if rt.history != nil {
		return rt.history, nil
	}
	store, err := history.NewSQLiteStore(rt.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	rt.history = store
	rt.closers = append(rt.closers, store.Close)
	return store, nil
}

// embedder builds the configured embedding provider with its cache.
func (rt *runtime) embedder() domain.EmbeddingProvider {
	ec := rt.cfg.Embedding
	inner := embedding.NewOllamaProvider(rt.client,
		embedding.WithOllamaModel(ec.Model),
		embedding.WithOllamaDimensions(ec.Dimensions),
	)
	return embedding.NewCachedEmbedder(inner, ec.CacheSize)
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && rt.logger != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
	rt.closers = nil
}
