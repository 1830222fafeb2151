package embeddings

import (
	"context"
	"fmt"
	"time"

	"medisync-rag/internal/config"
	apperrors "medisync-rag/internal/errors"
)

// New builds the process-wide embedder from configuration.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second

	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, timeout), nil
	case "openai":
		e, err := NewOpenAIEmbedder(ctx, cfg.BaseURL, cfg.APIKey, cfg.Model, timeout)
		if err != nil {
			return nil, apperrors.ErrConfiguration.WithCause(err)
		}
		return e, nil
	default:
		return nil, apperrors.ErrConfiguration.WithCause(fmt.Errorf("unknown embedding provider %q", cfg.Provider))
	}
}
