package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/ai"
	"github.com/mockpanel/mockpanel/internal/ai/gemini"
	"github.com/mockpanel/mockpanel/internal/interview"
	"github.com/mockpanel/mockpanel/internal/secrets"
	"github.com/mockpanel/mockpanel/internal/store"
)

// newCapabilities builds the capability port over the configured provider.
func newCapabilities(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (interview.Capabilities, string, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, "", fmt.Errorf("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, "", fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, "", err
	}

	return ai.NewToolkit(generator, logger, cfg.Gemini.MaxLogLength), generator.Model(), nil
}

// newStore connects to PostgreSQL when a DSN is configured and falls back to
// the in-memory no-op store otherwise.
func newStore(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) store.Store {
	if cfg == nil || strings.TrimSpace(cfg.DSN) == "" {
		logger.Info("no database configured, session history disabled")
		return store.NewNoop()
	}

	pg, err := store.NewPostgres(ctx, cfg.DSN)
	if err != nil {
		logger.Warn("database unavailable, continuing without persistence", zap.Error(err))
		return store.NewNoop()
	}

	logger.Info("session persistence enabled")
	return pg
}

// loadBrief reads the research brief JSON from the configured file. A missing
// path yields an empty brief, which just means less personalized questions.
func loadBrief(path string) (interview.Brief, error) {
	if strings.TrimSpace(path) == "" {
		return interview.Brief{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read brief file: %w", err)
	}

	var brief interview.Brief
	if err := json.Unmarshal(data, &brief); err != nil {
		return nil, fmt.Errorf("parse brief file %s: %w", path, err)
	}
	return brief, nil
}
