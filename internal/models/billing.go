package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanPro        PlanType = "pro"
	PlanEnterprise PlanType = "enterprise"
)

var planLimits = map[PlanType]int64{
	PlanFree:       10_000,
	PlanPro:        100_000,
	PlanEnterprise: 1_000_000,
}

// TokenLimit returns the nominal per-period token allowance of the plan.
// Unknown plans are treated as free.
func (p PlanType) TokenLimit() int64 {
	if limit, ok := planLimits[PlanType(strings.ToLower(string(p)))]; ok {
		return limit
	}
	return planLimits[PlanFree]
}

type Billing struct {
	ID                  uuid.UUID `json:"id" db:"id"`
	OwnerID             uuid.UUID `json:"owner_id" db:"owner_id"`
	CurrentPeriodTokens int64     `json:"current_period_tokens" db:"current_period_tokens"`
	LifetimeTokens      int64     `json:"lifetime_tokens" db:"lifetime_tokens"`
	PlanType            PlanType  `json:"plan_type" db:"plan_type"`
	LastUpdated         time.Time `json:"last_updated" db:"last_updated"`
}
