package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/stackpilot/config"
	"github.com/mohammad-safakhou/stackpilot/models"
	gemini_provider "github.com/mohammad-safakhou/stackpilot/provider/gemini"
	openai_provider "github.com/mohammad-safakhou/stackpilot/provider/openai"
)

// Provider is the interface that all LLM implementations must satisfy.
// Generate returns the raw model text; it never interprets it.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error)
}

// NewProvider creates the LLM client selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		return gemini_provider.NewClient(ctx, gemini_provider.Options{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, logger.Named("gemini"))
	case config.ProviderOpenAI:
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
			logger.Named("openai"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
