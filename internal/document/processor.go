package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/metrics"
	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

const failWriteTimeout = 10 * time.Second

// Processor runs one OCR job: it takes a pending document through OCR and
// records the outcome through the Service.
type Processor struct {
	svc        *Service
	recognizer Recognizer
	metrics    *metrics.WorkerMetrics
}

func NewProcessor(svc *Service, recognizer Recognizer, m *metrics.WorkerMetrics) *Processor {
	return &Processor{svc: svc, recognizer: recognizer, metrics: m}
}

// Process returns models.ErrNotFound for unknown documents. OCR failures are
// absorbed into the failed status; an error is returned only when the outcome
// could not be persisted, so the job can be redelivered.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	outcome := "error"
	p.metrics.StartDocument()
	defer func() { p.metrics.FinishDocument(outcome, time.Since(start)) }()

	doc, err := p.svc.docs.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			outcome = "skipped"
		}
		return err
	}
	if doc.Status.Terminal() {
		outcome = "skipped"
		slog.Info("document already processed", "document_id", id, "status", doc.Status)
		return nil
	}

	if doc.Status == models.DocStatusPending {
		p.metrics.ObserveQueueLag(time.Since(doc.CreatedAt))
		if err := p.svc.BeginProcessing(ctx, id); err != nil && !errors.Is(err, models.ErrInvalidTransition) {
			return err
		}
	} else {
		slog.Warn("resuming document left in processing", "document_id", id)
	}

	text, ocrErr := p.recognize(ctx, doc)
	if ocrErr != nil {
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
		defer cancel()
		if err := p.svc.Fail(failCtx, id, ocrErr.Error()); err != nil {
			return fmt.Errorf("mark document %s failed: %w", id, err)
		}
		outcome = "failed"
		return nil
	}

	if err := p.svc.Complete(ctx, id, text); err != nil {
		return err
	}
	outcome = "completed"
	slog.Info("document text extracted", "document_id", id, "chars", len(text))
	return nil
}

func (p *Processor) recognize(ctx context.Context, doc *models.Document) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ocr panic: %v", r)
		}
	}()

	blobs := p.svc.storage
	if blobs == nil || !blobs.Available() {
		return "", models.WrapError(models.ErrBlobUnavailable, "download "+doc.BlobKey, nil)
	}

	rc, err := blobs.Download(ctx, doc.BlobKey)
	if err != nil {
		return "", models.WrapError(models.ErrBlobUnavailable, "download "+doc.BlobKey, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", models.WrapError(models.ErrBlobUnavailable, "read "+doc.BlobKey, err)
	}

	return p.recognizer.Recognize(ctx, data, doc.ContentType, doc.Filename)
}
