// Package llm provides the completion models that write answers.
package llm

import (
	"context"
	"fmt"
	"time"

	"medisync-rag/internal/config"
	apperrors "medisync-rag/internal/errors"
)

// Generator produces one completion for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Provider defaults.
const (
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	DefaultGroqModel = config.DefaultGroqModel
	OpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultOllamaURL = config.DefaultOllamaURL
)

// New creates the process-wide generator. A provider that needs a credential
// fails with a configuration error when none is set.
func New(ctx context.Context, cfg config.GeneratorConfig) (Generator, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	modelName := withDefault(cfg.Model, config.DefaultGeneratorModel(cfg.Provider))

	if cfg.RequiresCredential() && cfg.APIKey == "" {
		return nil, apperrors.ErrConfiguration.WithCause(
			fmt.Errorf("%s is required for the %s generator", cfg.CredentialEnv(), cfg.Provider))
	}

	var (
		g   Generator
		err error
	)
	switch cfg.Provider {
	case "groq":
		g, err = NewOpenAICompatible(ctx, withDefault(cfg.BaseURL, GroqBaseURL), cfg.APIKey, modelName, timeout)
	case "openai":
		g, err = NewOpenAICompatible(ctx, withDefault(cfg.BaseURL, OpenAIBaseURL), cfg.APIKey, modelName, timeout)
	case "gemini":
		g, err = NewGemini(ctx, cfg.APIKey, modelName, timeout)
	case "ollama":
		g = NewOllamaClient(withDefault(cfg.BaseURL, DefaultOllamaURL), modelName, timeout)
	default:
		err = fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithCause(err)
	}
	return g, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
