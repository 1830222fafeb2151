package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"medisync-rag/internal/config"
	apperrors "medisync-rag/internal/errors"
)

func TestOllamaClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream must be false")
		}
		if !strings.Contains(req.Prompt, "glucose") {
			t.Errorf("prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "The fasting glucose is 180 mg/dL."})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2", time.Second)
	answer, err := client.Generate(context.Background(), "What is the fasting glucose?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "The fasting glucose is 180 mg/dL." {
		t.Errorf("Generate() = %q", answer)
	}
	if client.Model() != "llama3.2" {
		t.Errorf("Model() = %q", client.Model())
	}
}

func TestOllamaClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"empty answer", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"response":"  "}`))
		}},
		{"invalid json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			if _, err := NewOllamaClient(server.URL, "m", time.Second).Generate(context.Background(), "p"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type fakeChatModel struct {
	reply    *schema.Message
	err      error
	delay    time.Duration
	messages []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.messages = input
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatModelGenerator(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("Glucose is elevated.", nil)}
	g := NewChatModelGenerator(fake, "llama-3.3-70b-versatile", time.Second)

	answer, err := g.Generate(context.Background(), "composed prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "Glucose is elevated." {
		t.Errorf("Generate() = %q", answer)
	}
	if len(fake.messages) != 1 || fake.messages[0].Role != schema.User || fake.messages[0].Content != "composed prompt" {
		t.Errorf("unexpected messages sent: %+v", fake.messages)
	}
}

func TestChatModelGeneratorErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeChatModel
	}{
		{"model error", &fakeChatModel{err: errors.New("rate limited")}},
		{"nil message", &fakeChatModel{}},
		{"blank answer", &fakeChatModel{reply: schema.AssistantMessage(" \n", nil)}},
		{"timeout", &fakeChatModel{reply: schema.AssistantMessage("late", nil), delay: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewChatModelGenerator(tt.fake, "m", 20*time.Millisecond)
			if _, err := g.Generate(context.Background(), "p"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenAICompatibleEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "180 mg/dL"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer server.Close()

	g, err := NewOpenAICompatible(context.Background(), server.URL, "test-key", "llama-3.3-70b-versatile", time.Second)
	if err != nil {
		t.Fatalf("NewOpenAICompatible() error = %v", err)
	}
	answer, err := g.Generate(context.Background(), "What is the fasting glucose level?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "180 mg/dL" {
		t.Errorf("Generate() = %q", answer)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.GeneratorConfig
		wantModel string
		wantErr   bool
	}{
		{"groq", config.GeneratorConfig{Provider: "groq", APIKey: "k"}, DefaultGroqModel, false},
		{"groq without key", config.GeneratorConfig{Provider: "groq", Model: "m"}, "", true},
		{"openai without key", config.GeneratorConfig{Provider: "openai", Model: "gpt-4o-mini"}, "", true},
		{"gemini without key", config.GeneratorConfig{Provider: "gemini"}, "", true},
		{"openai default model", config.GeneratorConfig{Provider: "openai", APIKey: "k"}, config.DefaultOpenAIModel, false},
		{"ollama", config.GeneratorConfig{Provider: "ollama", Model: "llama3.2"}, "llama3.2", false},
		{"ollama default model", config.GeneratorConfig{Provider: "ollama"}, config.DefaultOllamaModel, false},
		{"unknown", config.GeneratorConfig{Provider: "bard", Model: "x"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(context.Background(), tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrConfiguration) {
					t.Errorf("New() error = %v, want ConfigurationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if g.Model() != tt.wantModel {
				t.Errorf("Model() = %q, want %q", g.Model(), tt.wantModel)
			}
		})
	}
}
