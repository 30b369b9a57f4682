package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/clientdesk/internal/audit"
	"github.com/Veraticus/clientdesk/internal/config"
	"github.com/Veraticus/clientdesk/internal/letters"
	"github.com/Veraticus/clientdesk/internal/library"
	"github.com/Veraticus/clientdesk/internal/llm"
	"github.com/Veraticus/clientdesk/internal/storage"
	"github.com/Veraticus/clientdesk/internal/vault"
	"github.com/spf13/viper"
)

// app holds the components a command needs. Optional ones are built lazily.
type app struct {
	cfg    *config.Config
	store  *storage.SQLiteStorage
	bridge *storage.RedisBridge
	logger *slog.Logger
}

// openApp loads configuration and opens the migrated document store.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	store, err := storage.NewSQLiteStorage(cfg.Database.Path, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &app{cfg: cfg, store: store, logger: logger}

	if cfg.Redis.URL != "" {
		bridge, err := storage.NewRedisBridge(cfg.Redis.URL)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect change bridge: %w", err)
		}
		if err := store.AttachBridge(ctx, bridge); err != nil {
			_ = bridge.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to attach change bridge: %w", err)
		}
		a.bridge = bridge
	}

	return a, nil
}

func (a *app) Close() {
	// The store goes first so no commit reaches a closing bridge.
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			a.logger.Warn("failed to close change bridge", "error", err)
		}
	}
}

func (a *app) llmClient(ctx context.Context) (llm.Client, error) {
	client, err := llm.NewClient(ctx, a.cfg.LLMClientConfig(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}
	return client, nil
}

// library returns the legal library, with the Meilisearch index when configured.
func (a *app) library() *library.Service {
	var index library.Index
	if a.cfg.Library.MeiliURL != "" {
		index = library.NewMeiliIndex(a.cfg.Library.MeiliURL, a.cfg.Library.MeiliAPIKey, a.cfg.Library.Index, a.logger)
	}
	return library.NewService(a.store, index, a.logger)
}

func (a *app) orchestrator(ctx context.Context) (*audit.Orchestrator, error) {
	client, err := a.llmClient(ctx)
	if err != nil {
		return nil, err
	}
	inference, err := audit.NewLLMInference(client)
	if err != nil {
		return nil, err
	}
	return audit.NewOrchestrator(audit.Deps{
		Store:         a.store,
		Inference:     inference,
		References:    a.library(),
		Logger:        a.logger,
		MaxReferences: a.cfg.Audit.MaxReferences,
	})
}

func (a *app) drafter(ctx context.Context) (*letters.Drafter, error) {
	client, err := a.llmClient(ctx)
	if err != nil {
		return nil, err
	}
	return letters.NewDrafter(client, a.store, a.logger)
}

func (a *app) vault(ctx context.Context) (*vault.Service, error) {
	blobs, err := vault.NewMinioBlobs(ctx, a.cfg.MinioConfig())
	if err != nil {
		return nil, err
	}
	return vault.NewService(a.store, blobs, a.logger), nil
}
