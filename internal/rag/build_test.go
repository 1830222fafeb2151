package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisync-rag/internal/config"
	apperrors "medisync-rag/internal/errors"
)

func localConfig() *config.Config {
	return &config.Config{
		Services: config.ServicesConfig{
			Embedding: config.EmbeddingConfig{Provider: "ollama", Model: "paraphrase-multilingual", Timeout: 5},
			Generator: config.GeneratorConfig{Provider: "ollama", Model: "llama3", Timeout: 5},
		},
		Retrieval: config.RetrievalConfig{TopK: 3, ChunkSize: 512, ChunkOverlap: 64},
		Index:     config.IndexConfig{Backend: "memory"},
		Prompts:   config.PromptsConfig{Language: "pt-BR"},
	}
}

func TestFromConfig(t *testing.T) {
	a, err := FromConfig(context.Background(), localConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, "paraphrase-multilingual", a.EmbeddingModel())
	assert.Equal(t, "llama3", a.GeneratorModel())
	assert.Equal(t, 3, a.topK)
	assert.Equal(t, StateIdle, a.NewSession().State())
}

func TestFromConfigRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing credential", func(c *config.Config) { c.Services.Generator.Provider = "groq" }},
		{"unknown embedding provider", func(c *config.Config) { c.Services.Embedding.Provider = "bert" }},
		{"unknown language", func(c *config.Config) { c.Prompts.Language = "fr" }},
		{"template without slots", func(c *config.Config) { c.Prompts.Clinician = "Answer briefly." }},
		{"overlap too large", func(c *config.Config) { c.Retrieval.ChunkOverlap = 400 }},
		{"unknown backend", func(c *config.Config) { c.Index.Backend = "qdrant" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig()
			tt.mutate(cfg)

			_, err := FromConfig(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfiguration), "got %v", err)
		})
	}
}
