package document

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/metrics"
	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

func TestProcessCompletesPendingDocument(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, uuid.New(), models.DocStatusPending, "raw")
	rec := &fakeRecognizer{text: "MEI limite anual 81000"}
	p := NewProcessor(f.svc, rec, metrics.NewWorkerMetrics("test"))

	if err := p.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	got := f.status(t, doc.ID)
	if got.Status != models.DocStatusCompleted || got.ExtractedText != "MEI limite anual 81000" {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestProcessUnknownDocument(t *testing.T) {
	f := newFixture(t)
	p := NewProcessor(f.svc, &fakeRecognizer{}, nil)

	if err := p.Process(context.Background(), uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessTerminalDocumentIsNoop(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, uuid.New(), models.DocStatusCompleted, "done")
	rec := &fakeRecognizer{text: "other"}
	p := NewProcessor(f.svc, rec, nil)

	if err := p.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if rec.calls != 0 {
		t.Fatalf("recognizer should not run for terminal documents")
	}
	if got := f.status(t, doc.ID).ExtractedText; got != "done" {
		t.Fatalf("extracted text changed to %q", got)
	}
}

func TestProcessResumesDocumentLeftInProcessing(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, uuid.New(), models.DocStatusProcessing, "raw")
	p := NewProcessor(f.svc, &fakeRecognizer{text: "recovered"}, nil)

	if err := p.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := f.status(t, doc.ID); got.Status != models.DocStatusCompleted || got.ExtractedText != "recovered" {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture, rec *fakeRecognizer)
	}{
		{
			name:  "storage unavailable",
			setup: func(f *fixture, _ *fakeRecognizer) { f.blobs.available = false },
		},
		{
			name:  "download error",
			setup: func(f *fixture, _ *fakeRecognizer) { f.blobs.downloadErr = errors.New("503") },
		},
		{
			name:  "ocr error",
			setup: func(_ *fixture, rec *fakeRecognizer) { rec.err = errors.New("unreadable") },
		},
		{
			name:  "ocr panic",
			setup: func(_ *fixture, rec *fakeRecognizer) { rec.panic = true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			doc := f.seed(t, uuid.New(), models.DocStatusPending, "raw")
			rec := &fakeRecognizer{text: "never stored"}
			tt.setup(f, rec)
			p := NewProcessor(f.svc, rec, nil)

			if err := p.Process(context.Background(), doc.ID); err != nil {
				t.Fatalf("failures are absorbed, got %v", err)
			}
			got := f.status(t, doc.ID)
			if got.Status != models.DocStatusFailed || got.ExtractedText != "" {
				t.Fatalf("unexpected document: %+v", got)
			}
		})
	}
}

func TestProcessRecordsFailureAfterCancellation(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, uuid.New(), models.DocStatusPending, "raw")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &fakeRecognizer{hook: cancel}
	p := NewProcessor(f.svc, rec, nil)

	if err := p.Process(ctx, doc.ID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := f.status(t, doc.ID).Status; got != models.DocStatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
}

func TestProcessReturnsErrorWhenFailureCannotBePersisted(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, uuid.New(), models.DocStatusPending, "raw")
	svc := NewService(failTransitionStore{f.store}, f.blobs, f.queue)
	p := NewProcessor(svc, &fakeRecognizer{err: errors.New("unreadable")}, nil)

	if err := p.Process(context.Background(), doc.ID); err == nil {
		t.Fatalf("expected error so the job is redelivered")
	}
	if got := f.status(t, doc.ID).Status; got != models.DocStatusProcessing {
		t.Fatalf("status = %s, want processing", got)
	}
}

func TestProcessIsIdempotentUnderRedelivery(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, uuid.New(), models.DocStatusPending, "raw")
	p := NewProcessor(f.svc, &fakeRecognizer{text: "once"}, nil)

	for i := 0; i < 3; i++ {
		if err := p.Process(context.Background(), doc.ID); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if got := f.status(t, doc.ID); got.Status != models.DocStatusCompleted || got.ExtractedText != "once" {
		t.Fatalf("unexpected document: %+v", got)
	}
}
