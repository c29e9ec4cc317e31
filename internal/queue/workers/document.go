package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
	"github.com/nikhilbhutani/fiscalassistant/internal/queue"
)

type DocumentProcessor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// OCRWorker consumes queue.TypeDocumentOCR tasks.
type OCRWorker struct {
	processor DocumentProcessor
}

func NewOCRWorker(processor DocumentProcessor) *OCRWorker {
	return &OCRWorker{processor: processor}
}

func (w *OCRWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentOCRPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w: %w", err, asynq.SkipRetry)
	}

	slog.Info("processing document", "document_id", docID)

	if err := w.processor.Process(ctx, docID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			slog.Warn("document for ocr job not found", "document_id", docID)
			return fmt.Errorf("process document %s: %w: %w", docID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("process document %s: %w", docID, err)
	}

	slog.Info("document processed", "document_id", docID)
	return nil
}
