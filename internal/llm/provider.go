package llm

import (
	"context"
	"errors"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when a provider answers without any text
// choice. It is not retried.
var ErrEmptyCompletion = errors.New("llm: provider returned no completion")

// Provider is one completion backend reachable through the Gateway.
type Provider interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse carries the completion text plus the usage the ledger bills.
type ChatResponse struct {
	ID           string  `json:"id"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Content      string  `json:"content"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

// finish derives totals, cost and latency once the provider-specific fields
// are set. A provider-reported total wins over the sum.
func finish(resp *ChatResponse, req ChatRequest, start time.Time) *ChatResponse {
	if resp.Model == "" {
		resp.Model = req.Model
	}
	if resp.TotalTokens == 0 {
		resp.TotalTokens = resp.InputTokens + resp.OutputTokens
	}
	resp.CostUSD = CalculateCost(req.Model, resp.InputTokens, resp.OutputTokens)
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp
}
