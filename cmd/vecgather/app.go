package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgather/internal/config"
	dbValkey "github.com/kailas-cloud/vecgather/internal/db/valkey"
	"github.com/kailas-cloud/vecgather/internal/domain"
	"github.com/kailas-cloud/vecgather/internal/metrics"
	shardrepo "github.com/kailas-cloud/vecgather/internal/repository/shard"
	openaiEmb "github.com/kailas-cloud/vecgather/internal/transport/openai"
	"github.com/kailas-cloud/vecgather/internal/usecase/gather"
	healthuc "github.com/kailas-cloud/vecgather/internal/usecase/health"
	searchuc "github.com/kailas-cloud/vecgather/internal/usecase/search"
)

// app is the composition root shared by serve and search.
type app struct {
	search *searchuc.Service
	health *healthuc.Service
	stores []*dbValkey.Store
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.RegisterGatherMetrics()
	metrics.RegisterEmbeddingMetrics()

	strategy, err := gather.StrategyByName[string](cfg.Gather.Strategy)
	if err != nil {
		return nil, err
	}

	a := &app{}
	shards := make([]searchuc.ShardSearcher, 0, len(cfg.Shards))
	pingers := make(map[string]healthuc.ShardPinger, len(cfg.Shards))

	for _, sc := range cfg.Shards {
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    sc.Addrs,
			Username: sc.Username,
			Password: sc.Password,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("shard %s: %w", sc.ID, err)
		}
		a.stores = append(a.stores, store)

		// A shard that is down at startup is reported by /health and skipped per search.
		if err := store.WaitForReady(ctx, time.Duration(sc.ReadinessTimeout)*time.Second); err != nil {
			logger.Warn("Shard not ready", zap.String("shard", sc.ID), zap.Error(err))
		} else {
			logger.Info("Connected to shard", zap.String("shard", sc.ID), zap.Strings("addrs", sc.Addrs))
		}

		shards = append(shards, shardrepo.New(sc.ID, store, sc.Index, sc.KeyPrefix))
		pingers[sc.ID] = store
	}

	var (
		embedder searchuc.Embedder
		checker  healthuc.EmbeddingChecker
	)
	if cfg.Embedding.Enabled() {
		e := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		embedder, checker = e, e
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Info("Embedding not configured, semantic mode disabled")
	}

	a.search = searchuc.New(shards, embedder, searchuc.Config{
		Name:           cfg.Gather.Name,
		Timeout:        cfg.Gather.Timeout(),
		MaxConcurrency: cfg.Gather.MaxConcurrency,
		Strategy:       strategy,
	}, logger)
	a.health = healthuc.New(pingers, checker)
	return a, nil
}

// Close releases every shard connection.
func (a *app) Close() {
	for _, s := range a.stores {
		s.Close()
	}
}

// exitCodeFor maps the errors a one-shot search can return to process exit codes.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrSemanticSearchDisabled):
		return 2
	default:
		return 1
	}
}
