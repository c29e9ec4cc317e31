package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
	"github.com/nikhilbhutani/fiscalassistant/internal/queue"
	"github.com/nikhilbhutani/fiscalassistant/internal/storage"
	"github.com/nikhilbhutani/fiscalassistant/internal/store"
)

// OCRQueue is the producer side of the work queue.
type OCRQueue interface {
	EnqueueDocumentOCR(ctx context.Context, payload queue.DocumentOCRPayload) error
}

// Service owns the document lifecycle: pending -> processing -> completed|failed.
// Every transition is a compare-and-set in the record store, so replays of the
// same job are harmless.
type Service struct {
	docs    store.DocumentStore
	storage storage.Storage
	queue   OCRQueue
}

func NewService(docs store.DocumentStore, blobs storage.Storage, q OCRQueue) *Service {
	return &Service{
		docs:    docs,
		storage: blobs,
		queue:   q,
	}
}

type UploadRequest struct {
	OwnerID     uuid.UUID
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// Upload writes the blob and then registers the document.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Document, error) {
	if s.storage == nil || !s.storage.Available() {
		return nil, models.WrapError(models.ErrStorageUnavailable, "upload document", nil)
	}
	if req.OwnerID == uuid.Nil || strings.TrimSpace(req.Filename) == "" || req.Data == nil {
		return nil, models.WrapError(models.ErrValidation, "upload document: owner, filename and data are required", nil)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := storage.NewKey(req.OwnerID, req.Filename)
	counter := &countingReader{r: req.Data}
	if err := s.storage.Upload(ctx, key, counter, contentType); err != nil {
		return nil, models.WrapError(models.ErrStorageUnavailable, "upload blob "+key, err)
	}

	size := req.Size
	if size <= 0 {
		size = counter.n
	}

	doc, err := s.Create(ctx, CreateRequest{
		OwnerID:     req.OwnerID,
		Filename:    req.Filename,
		BlobKey:     key,
		Size:        size,
		ContentType: contentType,
	})
	if err != nil {
		if doc == nil {
			if delErr := s.storage.Delete(ctx, key); delErr != nil {
				slog.Warn("failed to remove orphaned blob", "blob_key", key, "error", delErr)
			}
		}
		return doc, err
	}
	return doc, nil
}

type CreateRequest struct {
	OwnerID     uuid.UUID
	Filename    string
	BlobKey     string
	Size        int64
	ContentType string
}

// Create inserts a pending document for an already stored blob and enqueues
// exactly one OCR job for it. When the enqueue fails the record stays pending
// and both the document and the error are returned.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Document, error) {
	if req.BlobKey == "" {
		return nil, models.WrapError(models.ErrValidation, "create document: blob key is required", nil)
	}
	if req.OwnerID == uuid.Nil || strings.TrimSpace(req.Filename) == "" {
		return nil, models.WrapError(models.ErrValidation, "create document: owner and filename are required", nil)
	}

	doc := &models.Document{
		ID:          uuid.New(),
		OwnerID:     req.OwnerID,
		Filename:    req.Filename,
		BlobKey:     req.BlobKey,
		Size:        req.Size,
		ContentType: req.ContentType,
		Status:      models.DocStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	if err := s.queue.EnqueueDocumentOCR(ctx, queue.DocumentOCRPayload{DocumentID: doc.ID.String()}); err != nil {
		slog.Error("failed to enqueue ocr job", "document_id", doc.ID, "error", err)
		return doc, fmt.Errorf("enqueue ocr for document %s: %w", doc.ID, err)
	}

	slog.Info("document created", "document_id", doc.ID, "owner_id", doc.OwnerID, "size", doc.Size)
	return doc, nil
}

func (s *Service) BeginProcessing(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, models.DocStatusPending, models.DocStatusProcessing, "")
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, text string) error {
	return s.transition(ctx, id, models.DocStatusProcessing, models.DocStatusCompleted, text)
}

// Fail marks a processing document as failed. The reason is only logged.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	slog.Warn("document processing failed", "document_id", id, "reason", reason)
	return s.transition(ctx, id, models.DocStatusProcessing, models.DocStatusFailed, "")
}

// transition applies from -> to. Requests against a terminal document are
// no-ops; any other mismatch is ErrInvalidTransition.
func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to models.DocumentStatus, text string) error {
	changed, err := s.docs.TransitionDocument(ctx, id, from, to, text)
	if err != nil {
		return fmt.Errorf("transition document %s to %s: %w", id, to, err)
	}
	if changed {
		slog.Info("document status changed", "document_id", id, "from", from, "to", to)
		return nil
	}

	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status.Terminal() {
		slog.Debug("ignoring transition of terminal document", "document_id", id, "status", doc.Status, "to", to)
		return nil
	}
	return models.WrapError(models.ErrInvalidTransition,
		fmt.Sprintf("document %s is %s, cannot move to %s", id, doc.Status, to), nil)
}

// Delete removes the record and then, best effort, the blob.
func (s *Service) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.OwnerID != ownerID {
		return models.WrapError(models.ErrForbidden, "delete document "+id.String(), nil)
	}

	deleted, err := s.docs.DeleteDocument(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if !deleted {
		return models.WrapError(models.ErrNotFound, "delete document "+id.String(), nil)
	}

	switch {
	case s.storage == nil || !s.storage.Available():
		slog.Warn("storage unavailable, blob left behind", "document_id", id, "blob_key", doc.BlobKey)
	default:
		if err := s.storage.Delete(ctx, doc.BlobKey); err != nil {
			slog.Warn("failed to delete blob", "document_id", id, "blob_key", doc.BlobKey, "error", err)
		}
	}

	slog.Info("document deleted", "document_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, models.WrapError(models.ErrForbidden, "get document "+id.String(), nil)
	}
	return doc, nil
}

// Open streams the original upload for preview. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id, ownerID uuid.UUID) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if s.storage == nil || !s.storage.Available() {
		return nil, nil, models.WrapError(models.ErrStorageUnavailable, "open document "+id.String(), nil)
	}
	rc, err := s.storage.Download(ctx, doc.BlobKey)
	if err != nil {
		return nil, nil, models.WrapError(models.ErrBlobUnavailable, "open document "+id.String(), err)
	}
	return doc, rc, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error) {
	docs, err := s.docs.ListDocuments(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
