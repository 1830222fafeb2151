package rag

import (
	"context"
	"log/slog"

	"medisync-rag/internal/chunker"
	"medisync-rag/internal/config"
	"medisync-rag/internal/embeddings"
	apperrors "medisync-rag/internal/errors"
	"medisync-rag/internal/llm"
	"medisync-rag/internal/loader"
	"medisync-rag/internal/prompt"
	"medisync-rag/internal/storage"
)

// FromConfig creates the model clients and pipeline stages described by cfg.
// Every failure is a configuration error.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Assistant, error) {
	embedder, err := embeddings.New(ctx, cfg.Services.Embedding)
	if err != nil {
		return nil, err
	}
	generator, err := llm.New(ctx, cfg.Services.Generator)
	if err != nil {
		return nil, err
	}

	templates, err := prompt.Templates(cfg.Prompts.Language, cfg.Prompts.Clinician, cfg.Prompts.Patient)
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithCause(err)
	}
	composer, err := prompt.NewComposer(templates)
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithCause(err)
	}

	split, err := chunker.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithCause(err)
	}
	indexes, err := storage.NewFactory(cfg.Index.Backend)
	if err != nil {
		return nil, err
	}

	return New(Dependencies{
		Loader:    loader.New(cfg.Loader.MaxFileBytes),
		Splitter:  split,
		Embedder:  embedder,
		Composer:  composer,
		Generator: generator,
		NewIndex:  indexes,
		TopK:      cfg.Retrieval.TopK,
		Logger:    logger,
	})
}
