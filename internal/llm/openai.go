package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// GeminiBaseURL is the OpenAI-compatible endpoint of the Gemini API.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// OpenAIProvider talks to the OpenAI chat completions API or any backend that
// speaks the same protocol, Gemini included.
type OpenAIProvider struct {
	name   string
	client *openai.Client
}

// NewOpenAIProvider leaves the endpoint at api.openai.com when baseURL is empty.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	return newOpenAICompatible("openai", apiKey, baseURL)
}

// NewGeminiProvider reaches Gemini models through Google's OpenAI-compatible
// endpoint, or baseURL when set.
func NewGeminiProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	return newOpenAICompatible("gemini", apiKey, baseURL)
}

func newOpenAICompatible(name, apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIProvider{name: name, client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	body := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.Messages),
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		body.Temperature = float32(req.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s chat %s: %w", p.name, resp.ID, ErrEmptyCompletion)
	}

	return finish(&ChatResponse{
		ID:           resp.ID,
		Provider:     p.Name(),
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, req, start), nil
}

func toOpenAIMessages(in []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
