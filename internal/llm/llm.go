package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smartTodo/internal/config"
	"smartTodo/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderDeepseek = "deepseek"

	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// ErrMissingCredential means no API key was configured, the parser runs unavailable.
var ErrMissingCredential = errors.New("llm api key is not configured")

// New builds the chat model for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderGemini, ProviderGoogleAI:
		model := cfg.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		client, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		logger.Info("LLM: using Gemini", zap.String("model", model))
		return client, nil

	case ProviderOpenAI, ProviderDeepseek:
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(model),
			openai.WithResponseFormat(&openai.ResponseFormat{Type: "json_object"}),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		logger.Info("LLM: using OpenAI-compatible endpoint", zap.String("model", model), zap.String("base_url", cfg.BaseURL))
		return client, nil
	}

	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
