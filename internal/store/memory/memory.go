// Package memory is an in-process record store used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
	"github.com/nikhilbhutani/fiscalassistant/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	docs     map[uuid.UUID]models.Document
	docOrder []uuid.UUID
	messages []models.ChatMessage
	billing  map[uuid.UUID]models.Billing
	now      func() time.Time
}

func New() *Store {
	return &Store{
		docs:    make(map[uuid.UUID]models.Document),
		billing: make(map[uuid.UUID]models.Billing),
		now:     time.Now,
	}
}

var (
	_ store.DocumentStore = (*Store)(nil)
	_ store.ChatStore     = (*Store)(nil)
	_ store.BillingStore  = (*Store)(nil)
)

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	s.docs[doc.ID] = *doc
	s.docOrder = append(s.docOrder, doc.ID)
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, models.WrapError(models.ErrNotFound, "get document", nil)
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error) {
	docs, err := s.ownerDocs(ctx, ownerID, nil)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return docs, nil
}

func (s *Store) ListCompletedDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error) {
	docs, err := s.ownerDocs(ctx, ownerID, func(d models.Document) bool {
		return d.Status == models.DocStatusCompleted && d.ExtractedText != ""
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID.String() < docs[j].ID.String()
	})
	return docs, nil
}

// ownerDocs returns documents in insertion order.
func (s *Store) ownerDocs(ctx context.Context, ownerID uuid.UUID, keep func(models.Document) bool) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Document
	for _, id := range s.docOrder {
		d, ok := s.docs[id]
		if !ok || d.OwnerID != ownerID {
			continue
		}
		if keep != nil && !keep(d) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) TransitionDocument(ctx context.Context, id uuid.UUID, from, to models.DocumentStatus, extractedText string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.Status != from {
		return false, nil
	}
	doc.Status = to
	if to == models.DocStatusCompleted {
		doc.ExtractedText = extractedText
	}
	s.docs[id] = doc
	return true, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return false, nil
	}
	delete(s.docs, id)
	for i, v := range s.docOrder {
		if v == id {
			s.docOrder = append(s.docOrder[:i], s.docOrder[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, ownerID uuid.UUID) ([]models.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetOrCreateBilling(ctx context.Context, ownerID uuid.UUID) (*models.Billing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensureBilling(ownerID)
	return &b, nil
}

func (s *Store) IncrementUsage(ctx context.Context, ownerID uuid.UUID, tokens int64) (*models.Billing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ensureBilling(ownerID)
	b.CurrentPeriodTokens += tokens
	b.LifetimeTokens += tokens
	b.LastUpdated = s.now()
	s.billing[ownerID] = b
	return &b, nil
}

// ensureBilling must be called with mu held.
func (s *Store) ensureBilling(ownerID uuid.UUID) models.Billing {
	b, ok := s.billing[ownerID]
	if !ok {
		b = models.Billing{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			PlanType:    models.PlanFree,
			LastUpdated: s.now(),
		}
		s.billing[ownerID] = b
	}
	return b
}
