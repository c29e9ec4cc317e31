// Package postgres implements the record store on top of database/sql with
// the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
	"github.com/nikhilbhutani/fiscalassistant/internal/store"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var (
	_ store.DocumentStore = (*Store)(nil)
	_ store.ChatStore     = (*Store)(nil)
	_ store.BillingStore  = (*Store)(nil)
)

const documentColumns = `id, owner_id, filename, blob_key, size, content_type, status, extracted_text, created_at`

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.OwnerID, doc.Filename, doc.BlobKey, doc.Size, doc.ContentType,
		string(doc.Status), nullString(doc.ExtractedText), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.WrapError(models.ErrNotFound, "get document "+id.String(), nil)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error) {
	return s.queryDocuments(ctx, `
SELECT `+documentColumns+` FROM documents
WHERE owner_id = $1
ORDER BY created_at DESC, id DESC`, ownerID)
}

func (s *Store) ListCompletedDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error) {
	return s.queryDocuments(ctx, `
SELECT `+documentColumns+` FROM documents
WHERE owner_id = $1 AND status = 'completed' AND extracted_text IS NOT NULL AND extracted_text <> ''
ORDER BY created_at, id`, ownerID)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *Store) TransitionDocument(ctx context.Context, id uuid.UUID, from, to models.DocumentStatus, extractedText string) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if to == models.DocStatusCompleted {
		res, err = s.db.ExecContext(ctx, `
UPDATE documents SET status = $3, extracted_text = $4
WHERE id = $1 AND status = $2`, id, string(from), string(to), nullString(extractedText))
	} else {
		res, err = s.db.ExecContext(ctx, `
UPDATE documents SET status = $3
WHERE id = $1 AND status = $2`, id, string(from), string(to))
	}
	if err != nil {
		return false, fmt.Errorf("update document status: %w", err)
	}
	return rowsChanged(res)
}

func (s *Store) DeleteDocument(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return rowsChanged(res)
}

func (s *Store) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO chat_messages (id, owner_id, role, content, tokens_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.OwnerID, string(msg.Role), msg.Content, msg.TokensUsed, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, ownerID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, owner_id, role, content, tokens_used, created_at
FROM chat_messages
WHERE owner_id = $1
ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var role string
		if err := rows.Scan(&m.ID, &m.OwnerID, &role, &m.Content, &m.TokensUsed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Role = models.ChatRole(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return msgs, nil
}

const billingColumns = `id, owner_id, current_period_tokens, lifetime_tokens, plan_type, last_updated`

func (s *Store) GetOrCreateBilling(ctx context.Context, ownerID uuid.UUID) (*models.Billing, error) {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO billing (id, owner_id, current_period_tokens, lifetime_tokens, plan_type, last_updated)
VALUES ($1, $2, 0, 0, $3, $4)
ON CONFLICT (owner_id) DO NOTHING`, uuid.New(), ownerID, string(models.PlanFree), s.now())
	if err != nil {
		return nil, fmt.Errorf("ensure billing: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+billingColumns+` FROM billing WHERE owner_id = $1`, ownerID)
	b, err := scanBilling(row)
	if err != nil {
		return nil, fmt.Errorf("scan billing: %w", err)
	}
	return b, nil
}

// IncrementUsage relies on a single upsert so concurrent calls for the same
// owner never lose an update.
func (s *Store) IncrementUsage(ctx context.Context, ownerID uuid.UUID, tokens int64) (*models.Billing, error) {
	row := s.db.QueryRowContext(ctx, `
INSERT INTO billing (id, owner_id, current_period_tokens, lifetime_tokens, plan_type, last_updated)
VALUES ($1, $2, $3, $3, $4, $5)
ON CONFLICT (owner_id) DO UPDATE SET
	current_period_tokens = billing.current_period_tokens + EXCLUDED.current_period_tokens,
	lifetime_tokens = billing.lifetime_tokens + EXCLUDED.lifetime_tokens,
	last_updated = EXCLUDED.last_updated
RETURNING `+billingColumns, uuid.New(), ownerID, tokens, string(models.PlanFree), s.now())

	b, err := scanBilling(row)
	if err != nil {
		return nil, fmt.Errorf("increment usage: %w", err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var d models.Document
	var status string
	var text sql.NullString
	if err := row.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.BlobKey, &d.Size, &d.ContentType, &status, &text, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Status = models.DocumentStatus(status)
	d.ExtractedText = text.String
	return &d, nil
}

func scanBilling(row scanner) (*models.Billing, error) {
	var b models.Billing
	var plan string
	if err := row.Scan(&b.ID, &b.OwnerID, &b.CurrentPeriodTokens, &b.LifetimeTokens, &plan, &b.LastUpdated); err != nil {
		return nil, err
	}
	b.PlanType = models.PlanType(plan)
	return &b, nil
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
