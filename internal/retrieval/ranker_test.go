package retrieval

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
	"github.com/nikhilbhutani/fiscalassistant/internal/store/memory"
)

func seedCompleted(t *testing.T, st *memory.Store, owner uuid.UUID, texts ...string) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, text := range texts {
		doc := &models.Document{
			ID:            uuid.New(),
			OwnerID:       owner,
			Filename:      "doc.txt",
			BlobKey:       "k",
			Status:        models.DocStatusCompleted,
			ExtractedText: text,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.CreateDocument(context.Background(), doc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestRankOrdersByScore(t *testing.T) {
	st := memory.New()
	owner := uuid.New()
	seedCompleted(t, st, owner, "Invoice #1 payment due", "Invoice #2", "Receipt")

	got, err := NewRanker(st).Rank(context.Background(), owner, "invoice payment", 3)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	want := []string{"Invoice #1 payment due", "Invoice #2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rank() = %q, want %q", got, want)
	}
}

func TestRankTiesKeepStoreOrder(t *testing.T) {
	st := memory.New()
	owner := uuid.New()
	seedCompleted(t, st, owner, "das a", "das b", "das c", "das d")

	r := NewRanker(st)
	first, err := r.Rank(context.Background(), owner, "DAS", 0)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if !reflect.DeepEqual(first, []string{"das a", "das b", "das c"}) {
		t.Fatalf("unexpected ranking %q", first)
	}
	for i := 0; i < 5; i++ {
		again, _ := r.Rank(context.Background(), owner, "DAS", 0)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking not deterministic: %q vs %q", first, again)
		}
	}
}

func TestRankIgnoresOtherOwnersAndIncompleteDocuments(t *testing.T) {
	st := memory.New()
	owner, other := uuid.New(), uuid.New()
	seedCompleted(t, st, other, "invoice from someone else")
	pending := &models.Document{ID: uuid.New(), OwnerID: owner, BlobKey: "k", Status: models.DocStatusPending}
	if err := st.CreateDocument(context.Background(), pending); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := NewRanker(st).Rank(context.Background(), owner, "invoice", 3)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no context, got %q", got)
	}
}

func TestRankEmptyQuery(t *testing.T) {
	st := memory.New()
	owner := uuid.New()
	seedCompleted(t, st, owner, "anything")

	got, err := NewRanker(st).Rank(context.Background(), owner, "   ", 3)
	if err != nil || len(got) != 0 {
		t.Fatalf("Rank() = %q, %v", got, err)
	}
}

type failingSource struct{}

func (failingSource) ListCompletedDocuments(context.Context, uuid.UUID) ([]models.Document, error) {
	return nil, errors.New("db down")
}

func TestRankPropagatesStoreError(t *testing.T) {
	if _, err := NewRanker(failingSource{}).Rank(context.Background(), uuid.New(), "x", 1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestScoreCountsDistinctSubstringTerms(t *testing.T) {
	tests := []struct {
		text  string
		query string
		want  int
	}{
		{"Invoice #1 payment due", "invoice payment", 2},
		{"Invoice #2", "invoice payment", 1},
		{"Receipt", "invoice payment", 0},
		{"faturamento anual", "fatura", 1},
		{"nota nota nota", "nota nota", 1},
	}
	for _, tt := range tests {
		if got := Score(tt.text, Terms(tt.query)); got != tt.want {
			t.Fatalf("Score(%q, %q) = %d, want %d", tt.text, tt.query, got, tt.want)
		}
	}
}

func TestJoinContext(t *testing.T) {
	if got := JoinContext([]string{"a", "b"}); got != "a\n\n---\n\nb" {
		t.Fatalf("JoinContext() = %q", got)
	}
	if got := JoinContext(nil); got != "" {
		t.Fatalf("JoinContext(nil) = %q", got)
	}
}
