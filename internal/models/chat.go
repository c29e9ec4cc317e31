package models

import (
	"time"

	"github.com/google/uuid"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is append-only; history is replayed ordered by CreatedAt.
type ChatMessage struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OwnerID    uuid.UUID `json:"owner_id" db:"owner_id"`
	Role       ChatRole  `json:"role" db:"role"`
	Content    string    `json:"content" db:"content"`
	TokensUsed int64     `json:"tokens_used" db:"tokens_used"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
