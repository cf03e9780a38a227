// Package knowledge provides the KnowledgeSource implementations backing
// answer generation: an in-memory keyword index for development and
// tests, and a pgvector-backed store for production retrieval.
package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/petrijr/resposta/pkg/api"
)

// MemorySource is a goroutine-safe in-memory KnowledgeSource scoring
// documents by query-term overlap. Scores are in [0,1]: the fraction of
// query terms present in the document.
type MemorySource struct {
	mu   sync.RWMutex
	docs []api.KnowledgeDocument
}

var (
	_ api.KnowledgeSource = (*MemorySource)(nil)
	_ api.KnowledgeWriter = (*MemorySource)(nil)
)

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// Add appends documents to the index.
func (s *MemorySource) Add(ctx context.Context, docs []api.KnowledgeDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	return nil
}

// Len returns the number of indexed documents.
func (s *MemorySource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Search returns up to topK documents with a nonzero overlap score,
// best first. Ties keep insertion order, so results are deterministic.
func (s *MemorySource) Search(ctx context.Context, query string, topK int) ([]api.SourcePassage, error) {
	if topK <= 0 {
		return nil, nil
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var passages []api.SourcePassage
	for _, doc := range s.docs {
		score := overlapScore(terms, tokenize(doc.Text))
		if score <= 0 {
			continue
		}
		passages = append(passages, api.SourcePassage{
			Text:     doc.Text,
			Score:    score,
			Metadata: doc.Metadata,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}

func tokenize(s string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) < 3 {
			continue
		}
		terms[f] = struct{}{}
	}
	return terms
}

func overlapScore(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if _, ok := doc[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
