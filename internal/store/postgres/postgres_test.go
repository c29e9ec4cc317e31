package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := New(db)
	s.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestCreateDocumentStoresNullTextWhenEmpty(t *testing.T) {
	s, mock := newStoreWithMock(t)
	doc := &models.Document{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Filename:    "nota.pdf",
		BlobKey:     "owner/abc_nota.pdf",
		Size:        42,
		ContentType: "application/pdf",
		Status:      models.DocStatusPending,
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(doc.ID, doc.OwnerID, "nota.pdf", "owner/abc_nota.pdf", int64(42), "application/pdf", "pending", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if doc.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetDocument(context.Background(), id)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetDocumentScansNullableText(t *testing.T) {
	s, mock := newStoreWithMock(t)
	id := uuid.New()
	owner := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "filename", "blob_key", "size", "content_type", "status", "extracted_text", "created_at"}).
		AddRow(id.String(), owner.String(), "a.png", "k", int64(10), "image/png", "processing", nil, created)
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(rows)

	doc, err := s.GetDocument(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.ID != id || doc.OwnerID != owner {
		t.Fatalf("unexpected ids: %+v", doc)
	}
	if doc.Status != models.DocStatusProcessing || doc.ExtractedText != "" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if !doc.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at %v", doc.CreatedAt)
	}
}

func TestTransitionDocumentCompareAndSet(t *testing.T) {
	s, mock := newStoreWithMock(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE documents SET status = \\$3, extracted_text = \\$4").
		WithArgs(id, "processing", "completed", "total 81000").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents SET status = \\$3").
		WithArgs(id, "processing", "failed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.TransitionDocument(context.Background(), id, models.DocStatusProcessing, models.DocStatusCompleted, "total 81000")
	if err != nil || !ok {
		t.Fatalf("expected completed transition to apply, ok=%v err=%v", ok, err)
	}

	ok, err = s.TransitionDocument(context.Background(), id, models.DocStatusProcessing, models.DocStatusFailed, "")
	if err != nil {
		t.Fatalf("TransitionDocument() error = %v", err)
	}
	if ok {
		t.Fatalf("expected stale transition to report no change")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteDocumentScopedToOwner(t *testing.T) {
	s, mock := newStoreWithMock(t)
	id, owner := uuid.New(), uuid.New()

	mock.ExpectExec("DELETE FROM documents WHERE id = \\$1 AND owner_id = \\$2").
		WithArgs(id, owner).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.DeleteDocument(context.Background(), id, owner)
	if err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if ok {
		t.Fatalf("expected no rows deleted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListCompletedDocumentsFiltersText(t *testing.T) {
	s, mock := newStoreWithMock(t)
	owner := uuid.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "filename", "blob_key", "size", "content_type", "status", "extracted_text", "created_at"}).
		AddRow(uuid.New().String(), owner.String(), "a.pdf", "k1", int64(1), "application/pdf", "completed", "invoice 1", created).
		AddRow(uuid.New().String(), owner.String(), "b.pdf", "k2", int64(1), "application/pdf", "completed", "invoice 2", created.Add(time.Minute))
	mock.ExpectQuery("status = 'completed' AND extracted_text IS NOT NULL").
		WithArgs(owner).
		WillReturnRows(rows)

	docs, err := s.ListCompletedDocuments(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListCompletedDocuments() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ExtractedText != "invoice 1" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestListMessagesOrdered(t *testing.T) {
	s, mock := newStoreWithMock(t)
	owner := uuid.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "role", "content", "tokens_used", "created_at"}).
		AddRow(uuid.New().String(), owner.String(), "user", "hi", int64(0), created).
		AddRow(uuid.New().String(), owner.String(), "assistant", "hello", int64(12), created.Add(time.Second))
	mock.ExpectQuery("FROM chat_messages").
		WithArgs(owner).
		WillReturnRows(rows)

	msgs, err := s.ListMessages(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != models.RoleUser || msgs[1].TokensUsed != 12 {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestIncrementUsageUsesAtomicUpsert(t *testing.T) {
	s, mock := newStoreWithMock(t)
	owner := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "owner_id", "current_period_tokens", "lifetime_tokens", "plan_type", "last_updated"}).
		AddRow(uuid.New().String(), owner.String(), int64(150), int64(900), "pro", s.now())
	mock.ExpectQuery("ON CONFLICT \\(owner_id\\) DO UPDATE SET\\s+current_period_tokens = billing.current_period_tokens \\+ EXCLUDED.current_period_tokens").
		WithArgs(sqlmock.AnyArg(), owner, int64(50), "free", sqlmock.AnyArg()).
		WillReturnRows(rows)

	b, err := s.IncrementUsage(context.Background(), owner, 50)
	if err != nil {
		t.Fatalf("IncrementUsage() error = %v", err)
	}
	if b.CurrentPeriodTokens != 150 || b.LifetimeTokens != 900 || b.PlanType != models.PlanPro {
		t.Fatalf("unexpected billing: %+v", b)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetOrCreateBilling(t *testing.T) {
	s, mock := newStoreWithMock(t)
	owner := uuid.New()

	mock.ExpectExec("ON CONFLICT \\(owner_id\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), owner, "free", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rows := sqlmock.NewRows([]string{"id", "owner_id", "current_period_tokens", "lifetime_tokens", "plan_type", "last_updated"}).
		AddRow(uuid.New().String(), owner.String(), int64(0), int64(0), "free", s.now())
	mock.ExpectQuery("SELECT (.+) FROM billing WHERE owner_id = \\$1").
		WithArgs(owner).
		WillReturnRows(rows)

	b, err := s.GetOrCreateBilling(context.Background(), owner)
	if err != nil {
		t.Fatalf("GetOrCreateBilling() error = %v", err)
	}
	if b.PlanType != models.PlanFree || b.CurrentPeriodTokens != 0 {
		t.Fatalf("unexpected billing: %+v", b)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
