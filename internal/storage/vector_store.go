// Package storage provides the per-session vector indexes searched at query time.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	apperrors "medisync-rag/internal/errors"
	"medisync-rag/internal/models"
)

// DefaultK is the number of segments returned when a search asks for k <= 0.
const DefaultK = 5

var (
	ErrEmptyBatch        = errors.New("no segments to index")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// VectorIndex holds the embedded segments of one document batch.
//
// Build replaces the whole content. Search returns the k segments most
// cosine-similar to query, most similar first, with ties kept in insertion
// order. Searching before a successful Build yields apperrors.ErrEmptyIndex.
type VectorIndex interface {
	Build(ctx context.Context, segments []models.EmbeddedSegment) error
	Search(ctx context.Context, query []float32, k int) ([]models.ScoredSegment, error)
	Len() int
	Dimension() int
	Close() error
}

// Factory creates an empty index. Sessions call it once per document batch.
type Factory func() (VectorIndex, error)

// NewFactory returns the factory for the named backend.
func NewFactory(backend string) (Factory, error) {
	switch backend {
	case "", "memory":
		return func() (VectorIndex, error) { return NewMemoryIndex(), nil }, nil
	case "sqlite":
		return func() (VectorIndex, error) { return NewSQLiteIndex() }, nil
	default:
		return nil, apperrors.ErrConfiguration.WithCause(fmt.Errorf("unknown index backend %q", backend))
	}
}

// checkBatch validates a build batch and returns its dimension.
func checkBatch(segments []models.EmbeddedSegment) (int, error) {
	if len(segments) == 0 {
		return 0, ErrEmptyBatch
	}
	dim := len(segments[0].Vector)
	if dim == 0 {
		return 0, fmt.Errorf("segment %s has an empty vector", segments[0].ID)
	}
	for _, s := range segments[1:] {
		if len(s.Vector) != dim {
			return 0, fmt.Errorf("%w: segment %s has %d dimensions, want %d", ErrDimensionMismatch, s.ID, len(s.Vector), dim)
		}
	}
	return dim, nil
}

func normalizeK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	return k
}

// MemoryIndex is a brute-force cosine index.
type MemoryIndex struct {
	segments  []models.EmbeddedSegment
	dimension int
	built     bool
	mu        sync.RWMutex
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Build(ctx context.Context, segments []models.EmbeddedSegment) error {
	dim, err := checkBatch(segments)
	if err != nil {
		return err
	}

	stored := make([]models.EmbeddedSegment, len(segments))
	copy(stored, segments)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = stored
	m.dimension = dim
	m.built = true
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]models.ScoredSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.built {
		return nil, apperrors.ErrEmptyIndex
	}
	if len(query) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), m.dimension)
	}

	scores := make([]models.ScoredSegment, len(m.segments))
	for i, s := range m.segments {
		scores[i] = models.ScoredSegment{Segment: s.Segment, Score: cosineSimilarity(query, s.Vector)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	k = normalizeK(k)
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.segments)
}

func (m *MemoryIndex) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

// Close drops the stored segments. The index behaves as never built afterwards.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = nil
	m.dimension = 0
	m.built = false
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
