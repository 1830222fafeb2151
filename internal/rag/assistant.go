// Package rag wires loading, indexing, retrieval and generation into
// per-user question answering sessions.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"medisync-rag/internal/embeddings"
	apperrors "medisync-rag/internal/errors"
	"medisync-rag/internal/llm"
	"medisync-rag/internal/loader"
	"medisync-rag/internal/logging"
	"medisync-rag/internal/models"
	"medisync-rag/internal/storage"
)

// DocumentLoader converts uploads into documents, reporting the files it skipped.
type DocumentLoader interface {
	Load(ctx context.Context, files []loader.File) ([]models.Document, []models.FileFailure)
}

// Splitter cuts documents into segments.
type Splitter interface {
	SplitAll(docs []models.Document) []models.Segment
}

// PromptComposer renders the prompt for a role.
type PromptComposer interface {
	Compose(role models.Role, segments []models.ScoredSegment, question string) (string, error)
}

// Dependencies are the process-wide collaborators shared by all sessions.
type Dependencies struct {
	Loader    DocumentLoader
	Splitter  Splitter
	Embedder  embeddings.Embedder
	Composer  PromptComposer
	Generator llm.Generator
	NewIndex  storage.Factory
	TopK      int
	Logger    *slog.Logger
}

// Assistant holds the shared clients. It keeps no per-user state.
type Assistant struct {
	loader    DocumentLoader
	splitter  Splitter
	embedder  embeddings.Embedder
	composer  PromptComposer
	generator llm.Generator
	newIndex  storage.Factory
	topK      int
	logger    *slog.Logger
}

// New checks that every dependency is present.
func New(deps Dependencies) (*Assistant, error) {
	missing := func(name string) error {
		return apperrors.ErrConfiguration.WithCause(fmt.Errorf("%s is required", name))
	}
	switch {
	case deps.Loader == nil:
		return nil, missing("document loader")
	case deps.Splitter == nil:
		return nil, missing("splitter")
	case deps.Embedder == nil:
		return nil, missing("embedder")
	case deps.Composer == nil:
		return nil, missing("prompt composer")
	case deps.Generator == nil:
		return nil, missing("generator")
	case deps.NewIndex == nil:
		return nil, missing("index factory")
	}

	topK := deps.TopK
	if topK <= 0 {
		topK = storage.DefaultK
	}

	return &Assistant{
		loader:    deps.Loader,
		splitter:  deps.Splitter,
		embedder:  deps.Embedder,
		composer:  deps.Composer,
		generator: deps.Generator,
		newIndex:  deps.NewIndex,
		topK:      topK,
		logger:    logging.OrDiscard(deps.Logger),
	}, nil
}

// NewSession starts an idle session for the clinician role.
func (a *Assistant) NewSession() *Session {
	return newSession(a)
}

func (a *Assistant) EmbeddingModel() string {
	return a.embedder.Model()
}

func (a *Assistant) GeneratorModel() string {
	return a.generator.Model()
}
