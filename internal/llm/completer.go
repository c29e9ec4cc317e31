package llm

import (
	"context"
	"strings"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

// Completion is a single generated answer. Tokens is zero when the provider
// did not report usage.
type Completion struct {
	Text     string
	Tokens   int64
	Provider string
	Model    string
}

type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Completer adapts the gateway to a prompt-in, text-out call.
type Completer struct {
	client ChatClient
}

func NewCompleter(client ChatClient) *Completer {
	return &Completer{client: client}
}

func (c *Completer) Generate(ctx context.Context, prompt, system string) (*Completion, error) {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})

	resp, err := c.client.Chat(ctx, ChatRequest{Messages: msgs})
	if err != nil {
		return nil, models.WrapError(models.ErrCompletionService, "generate", err)
	}
	return &Completion{
		Text:     resp.Content,
		Tokens:   int64(resp.TotalTokens),
		Provider: resp.Provider,
		Model:    resp.Model,
	}, nil
}
