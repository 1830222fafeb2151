package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "medisync-rag/internal/errors"
	"medisync-rag/internal/loader"
	"medisync-rag/internal/models"
	"medisync-rag/internal/storage"
)

// State is the lifecycle position of a session.
type State string

const (
	StateIdle      State = "IDLE"
	StateIndexed   State = "INDEXED"
	StateAnswering State = "ANSWERING"
)

// Session is one user's conversation over one indexed document batch.
// A Session is not safe for concurrent use; callers serialize access.
type Session struct {
	id        uuid.UUID
	assistant *Assistant
	logger    *slog.Logger

	role       models.Role
	state      State
	index      storage.VectorIndex
	indexModel string
	records    []models.QueryRecord
}

func newSession(a *Assistant) *Session {
	id := uuid.New()
	return &Session{
		id:        id,
		assistant: a,
		logger:    a.logger.With("session_id", id.String()),
		role:      models.RoleClinician,
		state:     StateIdle,
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Role() models.Role { return s.role }

func (s *Session) State() State { return s.state }

// Segments returns the number of segments in the current index.
func (s *Session) Segments() int {
	if s.index == nil {
		return 0
	}
	return s.index.Len()
}

// LoadAndIndex builds a new index from files and replaces the current one.
// On error the previous index, state and history are left as they were.
func (s *Session) LoadAndIndex(ctx context.Context, files []loader.File) (models.IndexReadyEvent, error) {
	a := s.assistant
	var event models.IndexReadyEvent

	docs, failures := a.loader.Load(ctx, files)
	event.Failures = failures
	if len(docs) == 0 {
		err := apperrors.ErrLoad.WithCause(fmt.Errorf("none of %d files could be loaded", len(files)))
		s.logLoad(event, err)
		return event, err
	}
	event.Documents = len(docs)

	segments := a.splitter.SplitAll(docs)
	if len(segments) == 0 {
		err := apperrors.ErrLoad.WithCause(errors.New("documents produced no segments"))
		s.logLoad(event, err)
		return event, err
	}

	embedded, skipped, err := s.embedSegments(ctx, segments)
	event.SkippedSegments = skipped
	if err != nil {
		s.logLoad(event, err)
		return event, err
	}

	idx, err := a.newIndex()
	if err != nil {
		err = apperrors.ErrLoad.WithCause(fmt.Errorf("create index: %w", err))
		s.logLoad(event, err)
		return event, err
	}
	if err := idx.Build(ctx, embedded); err != nil {
		_ = idx.Close()
		err = apperrors.ErrLoad.WithCause(fmt.Errorf("build index: %w", err))
		s.logLoad(event, err)
		return event, err
	}

	old := s.index
	s.index = idx
	s.indexModel = a.embedder.Model()
	s.state = StateIndexed
	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn("closing replaced index failed", "error", err)
		}
	}

	event.Segments = idx.Len()
	event.Dimension = idx.Dimension()
	event.EmbeddingModel = s.indexModel
	event.BuiltAt = time.Now().UTC()
	s.logLoad(event, nil)
	return event, nil
}

// embedSegments embeds every segment. Segments that fail, or whose vector
// dimension differs from the first one, are skipped.
func (s *Session) embedSegments(ctx context.Context, segments []models.Segment) ([]models.EmbeddedSegment, int, error) {
	embedder := s.assistant.embedder
	out := make([]models.EmbeddedSegment, 0, len(segments))
	skipped := 0
	var lastErr error

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, skipped, apperrors.ErrEmbedding.WithCause(err)
		}

		vec, err := embedder.Embed(ctx, seg.Text)
		if err != nil {
			skipped++
			lastErr = err
			s.logger.Warn("segment embedding failed", "document", seg.DocumentName, "position", seg.Position, "error", err)
			continue
		}
		if len(out) > 0 && len(vec) != len(out[0].Vector) {
			skipped++
			lastErr = fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vec), len(out[0].Vector))
			s.logger.Warn("segment embedding dropped", "document", seg.DocumentName, "position", seg.Position, "error", lastErr)
			continue
		}
		out = append(out, models.EmbeddedSegment{Segment: seg, Vector: vec})
	}

	if len(out) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no segments to embed")
		}
		return nil, skipped, apperrors.ErrEmbedding.WithCause(lastErr)
	}
	return out, skipped, nil
}

// SetRole changes the audience of future answers.
func (s *Session) SetRole(role models.Role) error {
	if !role.Valid() {
		return apperrors.ErrValidation.WithCause(fmt.Errorf("unknown role %q", role))
	}
	s.role = role
	return nil
}

// Ask answers question from the current index. Nothing is recorded unless
// an answer is produced.
func (s *Session) Ask(ctx context.Context, question string) (event models.AnswerEvent, err error) {
	a := s.assistant
	role := s.role
	start := time.Now()
	sources := 0

	defer func() {
		s.logQuery(role, sources, time.Since(start), err)
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return event, apperrors.ErrValidation.WithMessage("Question must not be empty")
	}
	if s.index == nil {
		return event, apperrors.ErrNoIndex
	}
	if model := a.embedder.Model(); model != s.indexModel {
		return event, apperrors.ErrEmbedding.WithCause(
			fmt.Errorf("index was built with %q but the embedder is %q", s.indexModel, model))
	}

	s.state = StateAnswering
	defer func() { s.state = StateIndexed }()

	vec, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return event, apperrors.ErrEmbedding.WithCause(err)
	}

	hits, err := s.index.Search(ctx, vec, a.topK)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptyIndex) {
			return event, err
		}
		if errors.Is(err, storage.ErrDimensionMismatch) {
			return event, apperrors.ErrEmbedding.WithCause(err)
		}
		return event, fmt.Errorf("search index: %w", err)
	}
	sources = len(hits)

	prompt, err := a.composer.Compose(role, hits, question)
	if err != nil {
		return event, apperrors.ErrValidation.WithCause(err)
	}

	answer, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return event, apperrors.ErrGeneration.WithCause(err)
	}

	record := models.QueryRecord{
		ID:       uuid.New(),
		Question: question,
		Role:     role,
		Segments: append([]models.ScoredSegment(nil), hits...),
		Answer:   answer,
		AskedAt:  start.UTC(),
		Duration: time.Since(start),
	}
	s.records = append(s.records, record)

	return models.AnswerEvent{
		RecordID: record.ID,
		Answer:   answer,
		Role:     role,
		Sources:  hits,
	}, nil
}

// ResetConversation clears the history. The index and role are kept.
func (s *Session) ResetConversation() {
	s.records = nil
}

// History returns the conversation as display turns, oldest first.
func (s *Session) History() []models.Turn {
	turns := make([]models.Turn, 0, 2*len(s.records))
	for _, r := range s.records {
		turns = append(turns, r.Turns()...)
	}
	return turns
}

// Records returns a copy of the answered questions.
func (s *Session) Records() []models.QueryRecord {
	out := make([]models.QueryRecord, len(s.records))
	for i, r := range s.records {
		r.Segments = append([]models.ScoredSegment(nil), r.Segments...)
		out[i] = r
	}
	return out
}

// Close releases the index. The session returns to IDLE.
func (s *Session) Close() error {
	var err error
	if s.index != nil {
		err = s.index.Close()
		s.index = nil
	}
	s.indexModel = ""
	s.state = StateIdle
	return err
}

func (s *Session) logLoad(event models.IndexReadyEvent, err error) {
	attrs := []any{
		"documents", event.Documents,
		"segments", event.Segments,
		"skipped", event.SkippedSegments,
		"failures", len(event.Failures),
	}
	if err != nil {
		s.logger.Warn("document batch rejected", append(attrs, "error", err)...)
		return
	}
	s.logger.Info("document batch indexed", attrs...)
}

func (s *Session) logQuery(role models.Role, sources int, d time.Duration, err error) {
	outcome := "answered"
	level := slog.LevelInfo
	if err != nil {
		outcome = strings.ToLower(apperrors.TypeOf(err))
		if outcome == "" {
			outcome = "failed"
		}
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "question handled",
		"role", role,
		"outcome", outcome,
		"sources", sources,
		"duration", d,
	)
}
