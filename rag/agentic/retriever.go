package agentic

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/docarag/rag/document"
	"github.com/sweetpotato0/docarag/vector"
)

// VectorRetriever retrieves candidates by embedding the query and running a
// similarity search against a vector store.
type VectorRetriever struct {
	embedder vector.Embedder
	store    vector.VectorStore
}

// NewVectorRetriever builds a retriever over the given embedder and store.
func NewVectorRetriever(embedder vector.Embedder, store vector.VectorStore) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, store: store}
}

// Retrieve implements Retriever.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, scope *ScopeFilter, k int) ([]Candidate, error) {
	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filter *vector.Filter
	if scope != nil {
		filter = &vector.Filter{
			DocumentID: scope.DocumentID,
			SourceType: string(scope.SourceType),
		}
	}

	matches, err := r.store.Search(ctx, queryVector, filter, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, Candidate{
			ID:         m.Embedding.ID,
			DocumentID: m.Embedding.DocumentID,
			Filename:   m.Embedding.Filename,
			SourceType: document.SourceType(m.Embedding.SourceType),
			ChunkIndex: m.Embedding.ChunkIndex,
			Content:    m.Embedding.Text,
			Similarity: m.Score,
			Vector:     m.Embedding.Vector,
		})
	}
	return candidates, nil
}
