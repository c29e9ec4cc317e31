// Package retrieval selects the user's documents most relevant to a question
// by keyword overlap.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

const (
	DefaultTopK = 3
	Separator   = "\n\n---\n\n"
)

type DocumentSource interface {
	ListCompletedDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error)
}

type Ranker struct {
	docs DocumentSource
}

func NewRanker(docs DocumentSource) *Ranker {
	return &Ranker{docs: docs}
}

// Rank returns the extracted text of the owner's best matching completed
// documents. A document scores one point per distinct query term found as a
// substring of its lowercased text; zero-score documents are dropped and
// ties keep store order.
func (r *Ranker) Rank(ctx context.Context, ownerID uuid.UUID, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	docs, err := r.docs.ListCompletedDocuments(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list completed documents: %w", err)
	}

	type scored struct {
		text  string
		score int
	}
	var hits []scored
	for _, d := range docs {
		if d.ExtractedText == "" {
			continue
		}
		if s := Score(d.ExtractedText, terms); s > 0 {
			hits = append(hits, scored{text: d.ExtractedText, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.text
	}
	return out, nil
}

// Terms lowercases the query and splits it on whitespace, dropping repeats.
func Terms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func Score(text string, terms []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			n++
		}
	}
	return n
}

func JoinContext(blocks []string) string {
	return strings.Join(blocks, Separator)
}
