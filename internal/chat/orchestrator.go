// Package chat answers owner questions from their processed documents and
// meters every answer.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/llm"
	"github.com/nikhilbhutani/fiscalassistant/internal/metrics"
	"github.com/nikhilbhutani/fiscalassistant/internal/models"
	"github.com/nikhilbhutani/fiscalassistant/internal/retrieval"
	"github.com/nikhilbhutani/fiscalassistant/internal/store"
	"github.com/nikhilbhutani/fiscalassistant/pkg/tokenizer"
)

const (
	SystemInstruction = "You are a helpful fiscal assistant for Brazilian MEIs (Microentrepreneurs). " +
		"Answer the user's question accurately. If relevant document context is provided below, strictly use it to answer. " +
		"If the context doesn't contain the answer, say so but try to help with general knowledge."

	ApologyText = "I apologize, but I encountered an error processing your request. Please try again later."

	DefaultTimeout = 60 * time.Second

	// bounds the writes after the completion, which run detached from the request
	persistTimeout = 10 * time.Second
)

type Completer interface {
	Generate(ctx context.Context, prompt, system string) (*llm.Completion, error)
}

type Ranker interface {
	Rank(ctx context.Context, ownerID uuid.UUID, query string, topK int) ([]string, error)
}

type UsageRecorder interface {
	RecordUsage(ctx context.Context, ownerID uuid.UUID, tokens int64) error
}

type Options struct {
	Timeout time.Duration
	TopK    int
}

type Orchestrator struct {
	messages  store.ChatStore
	ranker    Ranker
	completer Completer
	ledger    UsageRecorder
	metrics   *metrics.HTTPServerMetrics
	timeout   time.Duration
	topK      int
	now       func() time.Time
}

func NewOrchestrator(messages store.ChatStore, ranker Ranker, completer Completer, ledger UsageRecorder, m *metrics.HTTPServerMetrics, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	return &Orchestrator{
		messages:  messages,
		ranker:    ranker,
		completer: completer,
		ledger:    ledger,
		metrics:   m,
		timeout:   opts.Timeout,
		topK:      opts.TopK,
		now:       time.Now,
	}
}

// Answer persists the question, answers it from the owner's documents and
// records the tokens spent. A blank query returns (nil, nil) and touches
// nothing. Completion failures are answered with ApologyText at zero cost.
//
// The steps are not atomic: a crash after the question is stored leaves it
// without an answer.
func (o *Orchestrator) Answer(ctx context.Context, ownerID uuid.UUID, query string) (*models.ChatMessage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	question := &models.ChatMessage{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Role:      models.RoleUser,
		Content:   query,
		CreatedAt: o.now(),
	}
	if err := o.messages.AppendMessage(ctx, question); err != nil {
		return nil, fmt.Errorf("store question: %w", err)
	}

	blocks, err := o.ranker.Rank(ctx, ownerID, query, o.topK)
	if err != nil {
		slog.Warn("context retrieval failed, answering without documents", "owner_id", ownerID, "error", err)
		blocks = nil
	}
	prompt := BuildPrompt(query, retrieval.JoinContext(blocks))

	content, tokens, outcome := o.complete(ctx, ownerID, prompt)

	// The tokens are spent once complete returns. A caller that went away in
	// the meantime must not skip storing the answer or metering it.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	answer := &models.ChatMessage{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Role:       models.RoleAssistant,
		Content:    content,
		TokensUsed: tokens,
		CreatedAt:  o.now(),
	}
	if !answer.CreatedAt.After(question.CreatedAt) {
		answer.CreatedAt = question.CreatedAt.Add(time.Microsecond)
	}
	if err := o.messages.AppendMessage(wctx, answer); err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}

	o.metrics.RecordChatAnswer(outcome, len(blocks), tokens)

	if err := o.ledger.RecordUsage(wctx, ownerID, tokens); err != nil {
		return answer, fmt.Errorf("record usage: %w", err)
	}
	return answer, nil
}

func (o *Orchestrator) complete(ctx context.Context, ownerID uuid.UUID, prompt string) (string, int64, string) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	c, err := o.completer.Generate(cctx, prompt, SystemInstruction)
	if err != nil {
		slog.Error("completion failed",
			"owner_id", ownerID,
			"duration", time.Since(start),
			"error", err,
		)
		return ApologyText, 0, "error"
	}

	tokens := c.Tokens
	if tokens <= 0 {
		tokens = tokenizer.ApproximateUsage(prompt, c.Text)
	}
	slog.Info("chat answered",
		"owner_id", ownerID,
		"provider", c.Provider,
		"model", c.Model,
		"tokens", tokens,
		"duration", time.Since(start),
	)
	return c.Text, tokens, "answered"
}

// History returns the owner's conversation oldest first.
func (o *Orchestrator) History(ctx context.Context, ownerID uuid.UUID) ([]models.ChatMessage, error) {
	msgs, err := o.messages.ListMessages(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// BuildPrompt frames the question with document context when there is any.
func BuildPrompt(query, context string) string {
	if context == "" {
		return query
	}
	return "Context from user documents:\n" + context + "\n\nUser Question: " + query
}
