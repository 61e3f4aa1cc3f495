package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reclaimhub/wastex/internal/ai"
	"github.com/reclaimhub/wastex/internal/config"
	"github.com/reclaimhub/wastex/internal/ledger"
	"github.com/reclaimhub/wastex/internal/lifecycle"
	"github.com/reclaimhub/wastex/internal/match"
	"github.com/reclaimhub/wastex/internal/storage"
)

// initStore opens the configured storage backend and runs migrations. An
// empty database path selects the in-memory backend.
func initStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Path == "" {
		slog.Warn("No database path configured, using in-memory storage")
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func initAI(cfg *config.Config) (ai.Classifier, ai.Embedder) {
	aiCfg := ai.Config{
		ClassifierURL: cfg.AI.ClassifierURL,
		EmbedderURL:   cfg.AI.EmbedderURL,
		APIKey:        cfg.AI.APIKey,
		Dimensions:    cfg.AI.Dimensions,
		Timeout:       cfg.AI.Timeout,
	}
	return ai.NewClassifier(aiCfg), ai.NewEmbedder(aiCfg)
}

func initMatcher(cfg *config.Config, classifier ai.Classifier, embedder ai.Embedder) *match.Engine {
	return match.NewWithConfig(classifier, embedder, match.Config{
		Threshold: cfg.Match.Threshold,
		Boost:     cfg.Match.Boost,
		Ceiling:   cfg.Match.Ceiling,
	})
}

func initLedger(cfg *config.Config) (ledger.Client, *lifecycle.Manager) {
	client := ledger.NewClient(ledger.Config{
		Endpoint: cfg.Ledger.Endpoint,
		Contract: cfg.Ledger.Contract,
		Timeout:  cfg.Ledger.Timeout,
	})

	manager := lifecycle.NewManager(client, lifecycle.Config{
		Operator: ledger.Signer{
			Address:    cfg.Ledger.OperatorAddress,
			Credential: cfg.Ledger.OperatorCredential,
		},
		Timeout: cfg.Ledger.Timeout,
	})

	return client, manager
}
