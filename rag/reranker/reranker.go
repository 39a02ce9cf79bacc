package reranker

import (
	"context"
	"sort"

	"github.com/sweetpotato0/docarag/vector"
)

// Candidate is a retrieval hit offered for rescoring.
type Candidate struct {
	ID     string
	Text   string
	Vector []float32
	Score  float32 // similarity from the initial retrieval
}

// Result references a candidate by its input index with the refined score.
// Results are ordered by descending score.
type Result struct {
	Index int
	Score float32
}

// Reranker rescores candidates against the query. Implementations must be
// pure with respect to input order: each candidate is scored independently.
type Reranker interface {
	Rank(ctx context.Context, query string, candidates []Candidate) ([]Result, error)
}

// EmbeddingReranker scores candidates by cosine similarity between a fresh
// query embedding and the stored candidate vectors.
type EmbeddingReranker struct {
	embedder vector.Embedder
}

// NewEmbeddingReranker creates a reranker backed by the given embedder.
func NewEmbeddingReranker(embedder vector.Embedder) *EmbeddingReranker {
	return &EmbeddingReranker{embedder: embedder}
}

// Rank implements the Reranker interface.
func (r *EmbeddingReranker) Rank(ctx context.Context, query string, candidates []Candidate) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for i, cand := range candidates {
		score := cand.Score
		if len(cand.Vector) > 0 && len(queryVector) == len(cand.Vector) {
			score = vector.CosineSimilarity(queryVector, cand.Vector)
		}
		results = append(results, Result{Index: i, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}
