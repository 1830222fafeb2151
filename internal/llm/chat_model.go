package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"medisync-rag/internal/config"
)

const DefaultGeminiModel = config.DefaultGeminiModel

// ChatModelGenerator sends the prompt as a single user message to an eino chat model.
type ChatModelGenerator struct {
	chat    model.BaseChatModel
	model   string
	timeout time.Duration
}

// NewChatModelGenerator wraps chat. A positive timeout bounds every call.
func NewChatModelGenerator(chat model.BaseChatModel, modelName string, timeout time.Duration) *ChatModelGenerator {
	return &ChatModelGenerator{chat: chat, model: modelName, timeout: timeout}
}

// NewOpenAICompatible creates a generator for any OpenAI-compatible API, Groq included.
func NewOpenAICompatible(ctx context.Context, baseURL, apiKey, modelName string, timeout time.Duration) (*ChatModelGenerator, error) {
	if modelName == "" {
		return nil, fmt.Errorf("model is required")
	}
	chat, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewChatModelGenerator(chat, modelName, timeout), nil
}

// NewGemini creates a Google Gemini generator.
func NewGemini(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*ChatModelGenerator, error) {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	chat, err := geminiModel.NewChatModel(ctx, &geminiModel.Config{
		Client: client,
		Model:  modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model: %w", err)
	}
	return NewChatModelGenerator(chat, modelName, timeout), nil
}

func (g *ChatModelGenerator) Model() string {
	return g.model
}

func (g *ChatModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	msg, err := g.chat.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return msg.Content, nil
}
