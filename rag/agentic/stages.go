package agentic

import "context"

// RewriteInput carries everything the query-understanding stage may consult.
type RewriteInput struct {
	Original  string
	Current   string
	Iteration int
	History   []HistoryEntry
}

// RewriteOutput is the refined query plus a flag recording whether the stage
// fell back to the unmodified query because its generator was unavailable.
type RewriteOutput struct {
	Query    string
	Degraded bool
}

// QueryRewriter normalizes the query for retrieval on the first pass and
// reformulates it on later passes. Implementations must degrade to the
// current query rather than fail the run.
type QueryRewriter interface {
	Rewrite(ctx context.Context, in RewriteInput) (RewriteOutput, error)
}

// Retriever fetches the initial candidate set for a query. An empty result
// is a valid outcome, not an error; errors are treated as hard failures.
type Retriever interface {
	Retrieve(ctx context.Context, query string, scope *ScopeFilter, k int) ([]Candidate, error)
}

// RerankOutput carries the surviving candidates plus a degradation flag set
// when the underlying reranker was unavailable and candidates were passed
// through in retrieval order.
type RerankOutput struct {
	Ranked   []ScoredCandidate
	Degraded bool
}

// Reranker cuts the candidate set down to the topN most relevant passages,
// descending by relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, topN int) (RerankOutput, error)
}

// Generator produces an answer grounded in the ranked candidates. With no
// candidates it must return the fixed insufficient-evidence answer; errors
// are hard failures.
type Generator interface {
	Generate(ctx context.Context, query string, ranked []ScoredCandidate) (Answer, error)
}

// Evaluator judges how well the answer addresses the query given the
// evidence, returning a confidence in [0,1].
type Evaluator interface {
	Evaluate(ctx context.Context, query, answer string, ranked []ScoredCandidate) (float64, error)
}
