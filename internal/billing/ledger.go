// Package billing meters completion tokens per owner. Plan limits are
// reported, never enforced.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/cache"
	"github.com/nikhilbhutani/fiscalassistant/internal/models"
	"github.com/nikhilbhutani/fiscalassistant/internal/store"
)

// TokenRateUSD is the display price of one token.
const TokenRateUSD = 0.00005

const summaryTTL = 5 * time.Minute

type SummaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Ledger struct {
	store store.BillingStore
	cache SummaryCache
}

// NewLedger builds a ledger. c may be nil, in which case summaries are always
// read from the store.
func NewLedger(st store.BillingStore, c SummaryCache) *Ledger {
	return &Ledger{store: st, cache: c}
}

func (l *Ledger) GetOrCreate(ctx context.Context, ownerID uuid.UUID) (*models.Billing, error) {
	b, err := l.store.GetOrCreateBilling(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get billing for %s: %w", ownerID, err)
	}
	return b, nil
}

// RecordUsage adds tokens to the owner's counters with a single atomic store
// operation. Negative amounts are logged and ignored.
func (l *Ledger) RecordUsage(ctx context.Context, ownerID uuid.UUID, tokens int64) error {
	if tokens < 0 {
		slog.Warn("ignoring negative token usage", "owner_id", ownerID, "tokens", tokens)
		return nil
	}

	b, err := l.store.IncrementUsage(ctx, ownerID, tokens)
	if err != nil {
		return fmt.Errorf("record usage for %s: %w", ownerID, err)
	}
	l.invalidate(ctx, ownerID)

	if b.CurrentPeriodTokens > b.PlanType.TokenLimit() {
		slog.Info("owner above plan limit", "owner_id", ownerID, "plan", b.PlanType, "current_period_tokens", b.CurrentPeriodTokens)
	}
	return nil
}

type Summary struct {
	PlanType            models.PlanType `json:"plan_type"`
	CurrentPeriodTokens int64           `json:"current_period_tokens"`
	LifetimeTokens      int64           `json:"lifetime_tokens"`
	TokenLimit          int64           `json:"token_limit"`
	UsagePercent        float64         `json:"usage_percent"`
	EstimatedCostUSD    float64         `json:"estimated_cost_usd"`
	LastUpdated         time.Time       `json:"last_updated"`
}

func (l *Ledger) Summary(ctx context.Context, ownerID uuid.UUID) (*Summary, error) {
	key := summaryKey(ownerID)
	if l.cache != nil {
		var cached Summary
		err := l.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("billing summary cache read failed", "owner_id", ownerID, "error", err)
		}
	}

	b, err := l.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s := Summarize(b)

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, s, summaryTTL); err != nil {
			slog.Warn("billing summary cache write failed", "owner_id", ownerID, "error", err)
		}
	}
	return s, nil
}

func Summarize(b *models.Billing) *Summary {
	limit := b.PlanType.TokenLimit()
	return &Summary{
		PlanType:            b.PlanType,
		CurrentPeriodTokens: b.CurrentPeriodTokens,
		LifetimeTokens:      b.LifetimeTokens,
		TokenLimit:          limit,
		UsagePercent:        UsagePercent(b.CurrentPeriodTokens, limit),
		EstimatedCostUSD:    float64(b.CurrentPeriodTokens) * TokenRateUSD,
		LastUpdated:         b.LastUpdated,
	}
}

// UsagePercent is current/limit as a percentage, capped at 100.
func UsagePercent(current, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return min(float64(current)/float64(limit)*100, 100)
}

func (l *Ledger) invalidate(ctx context.Context, ownerID uuid.UUID) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, summaryKey(ownerID)); err != nil {
		slog.Warn("billing summary cache invalidation failed", "owner_id", ownerID, "error", err)
	}
}

func summaryKey(ownerID uuid.UUID) string {
	return "billing:summary:" + ownerID.String()
}
