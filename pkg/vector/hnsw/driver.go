package hnsw

import (
	"context"
	"fmt"

	"github.com/papercomputeco/chronicle/pkg/vector"
)

var _ vector.Driver = (*Index)(nil)

// Add stores documents with their embeddings. A document whose ID is
// already indexed has its embedding replaced.
func (ix *Index) Add(_ context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		if err := ix.insert(doc.ID, doc.TraceID, doc.Embedding); err != nil {
			return fmt.Errorf("indexing %q: %w", doc.ID, err)
		}
	}
	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (ix *Index) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	matches, err := ix.Search(embedding, topK)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results := make([]vector.QueryResult, 0, len(matches))
	for _, m := range matches {
		n := ix.nodes[ix.byID[m.ID]]
		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:      m.ID,
				TraceID: n.traceID,
			},
			Score: m.Similarity,
		})
	}
	return results, nil
}

// Get retrieves documents by their IDs.
func (ix *Index) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		at, ok := ix.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", vector.ErrNotFound, id)
		}
		n := ix.nodes[at]
		docs = append(docs, vector.Document{
			ID:        n.id,
			TraceID:   n.traceID,
			Embedding: append([]float32(nil), n.vec...),
		})
	}
	return docs, nil
}

// Delete is not supported: removing nodes would orphan graph edges, and the
// ledger the index mirrors is append-only. Rebuild the index instead.
func (ix *Index) Delete(_ context.Context, _ []string) error {
	return fmt.Errorf("%w: hnsw index is rebuild-only", vector.ErrUnsupported)
}

// Close releases resources held by the index. The in-memory graph holds
// none.
func (ix *Index) Close() error {
	return nil
}
