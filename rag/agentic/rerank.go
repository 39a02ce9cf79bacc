package agentic

import (
	"context"
	"log/slog"

	"github.com/sweetpotato0/docarag/pkg/logging"
	"github.com/sweetpotato0/docarag/rag/reranker"
)

// RerankStage adapts a reranker.Reranker to the loop. When the underlying
// reranker is unavailable the stage passes the first topN candidates through
// in retrieval order and flags the pass as degraded; the run keeps going on
// similarity ordering alone.
type RerankStage struct {
	inner  reranker.Reranker
	logger *slog.Logger
}

// NewRerankStage wraps the given reranker for use in the answering loop.
func NewRerankStage(inner reranker.Reranker) *RerankStage {
	return &RerankStage{
		inner:  inner,
		logger: logging.WithComponent("rerank"),
	}
}

// Rerank implements Reranker.
func (s *RerankStage) Rerank(ctx context.Context, query string, candidates []Candidate, topN int) (RerankOutput, error) {
	if len(candidates) == 0 {
		return RerankOutput{}, nil
	}

	input := make([]reranker.Candidate, len(candidates))
	for i, c := range candidates {
		input[i] = reranker.Candidate{
			ID:     c.ID,
			Text:   c.Content,
			Vector: c.Vector,
			Score:  c.Similarity,
		}
	}

	results, err := s.inner.Rank(ctx, query, input)
	if err != nil {
		if ctx.Err() != nil {
			return RerankOutput{}, ctx.Err()
		}
		s.logger.Warn("reranker unavailable, passing candidates through", "error", err)
		return RerankOutput{Ranked: passthrough(candidates, topN), Degraded: true}, nil
	}

	if topN > len(results) {
		topN = len(results)
	}
	ranked := make([]ScoredCandidate, 0, topN)
	for _, r := range results[:topN] {
		score := r.Score
		ranked = append(ranked, ScoredCandidate{
			Candidate: candidates[r.Index],
			Relevance: &score,
		})
	}
	return RerankOutput{Ranked: ranked}, nil
}

func passthrough(candidates []Candidate, topN int) []ScoredCandidate {
	if topN > len(candidates) {
		topN = len(candidates)
	}
	ranked := make([]ScoredCandidate, 0, topN)
	for _, c := range candidates[:topN] {
		ranked = append(ranked, ScoredCandidate{Candidate: c})
	}
	return ranked
}
