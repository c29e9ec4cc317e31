// Package store declares the record store contracts used by the lifecycle,
// retrieval, chat and billing components. Implementations live in the
// postgres and memory subpackages.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	// GetDocument returns models.ErrNotFound for unknown ids.
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// ListDocuments returns the owner's documents newest first.
	ListDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error)
	// ListCompletedDocuments returns the owner's completed documents that
	// carry extracted text, oldest first with id as tie-breaker.
	ListCompletedDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error)
	// TransitionDocument moves a document from one status to another only if
	// it is currently in from. extractedText is stored when to is completed.
	// It reports whether the row changed.
	TransitionDocument(ctx context.Context, id uuid.UUID, from, to models.DocumentStatus, extractedText string) (bool, error)
	// DeleteDocument removes the row only if it belongs to ownerID.
	DeleteDocument(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
}

type ChatStore interface {
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, ownerID uuid.UUID) ([]models.ChatMessage, error)
}

type BillingStore interface {
	GetOrCreateBilling(ctx context.Context, ownerID uuid.UUID) (*models.Billing, error)
	// IncrementUsage adds tokens to both counters in one atomic step,
	// creating the record when missing.
	IncrementUsage(ctx context.Context, ownerID uuid.UUID, tokens int64) (*models.Billing, error)
}
