package embeddings

import (
	"context"
	"fmt"
	"time"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"

	"medisync-rag/internal/config"
)

// DefaultOpenAIModel is the multilingual sentence-transformers model, served
// through any OpenAI-compatible /embeddings endpoint.
const DefaultOpenAIModel = config.DefaultOpenAIEmbeddingModel

// EinoEmbedder adapts an eino embedding component to Embedder.
type EinoEmbedder struct {
	embedder einoEmbedding.Embedder
	model    string
	timeout  time.Duration
}

// NewEinoEmbedder wraps embedder. A positive timeout bounds every call.
func NewEinoEmbedder(embedder einoEmbedding.Embedder, model string, timeout time.Duration) *EinoEmbedder {
	return &EinoEmbedder{embedder: embedder, model: model, timeout: timeout}
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API.
func NewOpenAIEmbedder(ctx context.Context, baseURL, apiKey, model string, timeout time.Duration) (*EinoEmbedder, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	e, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return NewEinoEmbedder(e, model, timeout), nil
}

func (e *EinoEmbedder) Model() string {
	return e.model
}

func (e *EinoEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	vectors, err := e.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	result := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		result[i] = float32(v)
	}
	return result, nil
}
