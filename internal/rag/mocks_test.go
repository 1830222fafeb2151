package rag

import (
	"context"
	"errors"
	"strings"
	"sync"

	"medisync-rag/internal/storage"
)

// vocabulary gives the mock embedder a tiny, predictable semantic space.
var vocabulary = []string{"glucose", "fasting", "pressure", "blood", "heart", "insulin", "allergy"}

// MockEmbedder maps text to keyword counts plus a bias term.
type MockEmbedder struct {
	mu         sync.Mutex
	model      string
	shouldFail bool
	failOn     string
	dims       map[string]int
	calls      int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{model: "mock-embed", dims: make(map[string]int)}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.shouldFail {
		return nil, errors.New("mock embedding error")
	}
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, errors.New("mock embedding error for segment")
	}

	lower := strings.ToLower(text)
	vec := make([]float32, len(vocabulary)+1)
	for i, w := range vocabulary {
		vec[i] = float32(strings.Count(lower, w))
	}
	vec[len(vocabulary)] = 1

	for marker, dim := range m.dims {
		if strings.Contains(text, marker) {
			return make([]float32, dim), nil
		}
	}
	return vec, nil
}

func (m *MockEmbedder) Model() string { return m.model }

func (m *MockEmbedder) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
}

func (m *MockEmbedder) FailOn(substr string) { m.failOn = substr }

// ReturnDimension makes texts containing marker embed with dim dimensions.
func (m *MockEmbedder) ReturnDimension(marker string, dim int) { m.dims[marker] = dim }

func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockGenerator records prompts and echoes a canned answer.
type MockGenerator struct {
	answer     string
	shouldFail bool
	prompts    []string
}

func NewMockGenerator(answer string) *MockGenerator {
	return &MockGenerator{answer: answer}
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.shouldFail {
		return "", errors.New("mock generation error")
	}
	return m.answer, nil
}

func (m *MockGenerator) Model() string { return "mock-llm" }

func (m *MockGenerator) SetShouldFail(fail bool) { m.shouldFail = fail }

func (m *MockGenerator) LastPrompt() string {
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// trackingFactory records every index it creates so tests can check closes.
type trackingFactory struct {
	created    []*trackedIndex
	shouldFail bool
}

type trackedIndex struct {
	storage.VectorIndex
	closed bool
}

func (t *trackedIndex) Close() error {
	t.closed = true
	return t.VectorIndex.Close()
}

func (f *trackingFactory) New() (storage.VectorIndex, error) {
	if f.shouldFail {
		return nil, errors.New("mock index creation error")
	}
	idx := &trackedIndex{VectorIndex: storage.NewMemoryIndex()}
	f.created = append(f.created, idx)
	return idx, nil
}
