package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider calls a self-hosted Ollama server. Local models are not
// priced, so CostUSD stays zero unless the model name matches a known one.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

func NewOllamaProvider(baseURL string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		// CPU inference on long prompts is slow; the chat timeout bounds the call anyway.
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

// StatusError carries a non-2xx answer from an HTTP based provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

type ollamaTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatBody struct {
	Model    string          `json:"model"`
	Messages []ollamaTurn    `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaSampling `json:"options,omitempty"`
}

type ollamaSampling struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatReply struct {
	Message         ollamaTurn `json:"message"`
	PromptEvalCount int        `json:"prompt_eval_count"`
	EvalCount       int        `json:"eval_count"`
}

func (p *OllamaProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	body := ollamaChatBody{Model: req.Model, Messages: make([]ollamaTurn, 0, len(req.Messages))}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, ollamaTurn{Role: m.Role, Content: m.Content})
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		body.Options = &ollamaSampling{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	var reply ollamaChatReply
	if err := p.post(ctx, "/api/chat", body, &reply); err != nil {
		return nil, err
	}
	if reply.Message.Content == "" {
		return nil, fmt.Errorf("ollama chat: %w", ErrEmptyCompletion)
	}

	return finish(&ChatResponse{
		Provider:     p.Name(),
		Content:      reply.Message.Content,
		InputTokens:  reply.PromptEvalCount,
		OutputTokens: reply.EvalCount,
	}, req, start), nil
}

func (p *OllamaProvider) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ollama encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Provider: p.Name(), StatusCode: resp.StatusCode, Body: string(msg)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama decode: %w", err)
	}
	return nil
}
