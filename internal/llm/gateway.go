package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/fiscalassistant/internal/config"
	"github.com/nikhilbhutani/fiscalassistant/internal/resilience"
)

// Gateway routes chat completions to a configured provider, retrying
// transient failures and falling back to a second provider.
type Gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	defaultModel     string
	maxTokens        int
	executor         *resilience.Executor
}

func NewGateway(cfg config.LLMConfig) *Gateway {
	providers := make(map[string]Provider)
	if cfg.OpenAIKey != "" {
		providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	}
	if cfg.AnthropicKey != "" {
		providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.GeminiKey != "" {
		providers["gemini"] = NewGeminiProvider(cfg.GeminiKey, cfg.GeminiBaseURL)
	}
	if cfg.OllamaURL != "" {
		providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}
	return newGateway(cfg, providers, resilience.NewExecutor(resilience.WithRetries(cfg.MaxRetries)))
}

func newGateway(cfg config.LLMConfig, providers map[string]Provider, exec *resilience.Executor) *Gateway {
	return &Gateway{
		providers:        providers,
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		defaultModel:     cfg.DefaultModel,
		maxTokens:        cfg.MaxTokens,
		executor:         exec,
	}
}

func (g *Gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// Configured reports whether at least one provider has credentials.
func (g *Gateway) Configured() bool {
	return len(g.providers) > 0
}

func (g *Gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}
	if req.Model == "" {
		req.Model = g.defaultModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = g.maxTokens
	}

	resp, err := g.chat(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName && ctx.Err() == nil {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		// the default model belongs to the primary provider
		fallbackReq := req
		fallbackReq.Model = ""
		if p, ok := g.providers[g.fallbackProvider]; ok {
			fallbackReq.Model = fallbackModel(p.Name())
		}
		return g.chat(ctx, g.fallbackProvider, fallbackReq)
	}
	return resp, err
}

func (g *Gateway) chat(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var resp *ChatResponse
	err = g.executor.Execute(ctx, "llm:"+providerName, func(ctx context.Context) error {
		r, err := p.ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, classifyError)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", providerName, err)
	}
	return resp, nil
}

func fallbackModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-3-haiku-20240307"
	case "gemini":
		return "gemini-2.5-flash"
	case "ollama":
		return "llama3"
	default:
		return "gpt-4o-mini"
	}
}

func classifyError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	if code, ok := statusCode(err); ok {
		if isRetryableStatus(code) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func statusCode(err error) (int, bool) {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) && oaiAPI.HTTPStatusCode > 0 {
		return oaiAPI.HTTPStatusCode, true
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) && oaiReq.HTTPStatusCode > 0 {
		return oaiReq.HTTPStatusCode, true
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) && antErr.StatusCode > 0 {
		return antErr.StatusCode, true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
