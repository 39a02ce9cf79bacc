package agentic

import "github.com/sweetpotato0/docarag/rag/document"

// Status classifies how a run finished.
type Status string

const (
	// StatusCompleted means the loop produced an evidence-backed answer.
	StatusCompleted Status = "completed"
	// StatusInsufficientEvidence means retrieval never surfaced usable evidence.
	StatusInsufficientEvidence Status = "insufficient_evidence"
	// StatusCancelled means the caller cancelled the run between stages.
	StatusCancelled Status = "cancelled"
	// StatusDegraded means the run completed but at least one stage fell back
	// to a reduced-quality path.
	StatusDegraded Status = "degraded"
)

// ScopeFilter narrows retrieval to a single document and/or source type.
// Zero-value fields mean unrestricted.
type ScopeFilter struct {
	DocumentID string              `json:"document_id,omitempty"`
	SourceType document.SourceType `json:"source_type,omitempty"`
}

// Candidate is a passage returned by the retrieval stage.
type Candidate struct {
	ID         string              `json:"id"`
	DocumentID string              `json:"document_id"`
	Filename   string              `json:"filename,omitempty"`
	SourceType document.SourceType `json:"source_type,omitempty"`
	ChunkIndex int                 `json:"chunk_index"`
	Content    string              `json:"content"`
	Similarity float32             `json:"similarity"`
	Vector     []float32           `json:"-"`
}

// ScoredCandidate is a candidate that survived reranking. Relevance is nil
// when the reranker was unavailable and the stage passed candidates through
// in retrieval order.
type ScoredCandidate struct {
	Candidate
	Relevance *float32 `json:"relevance,omitempty"`
}

// Citation records a passage the generated answer draws on.
type Citation struct {
	DocumentID string              `json:"document_id"`
	Filename   string              `json:"filename,omitempty"`
	SourceType document.SourceType `json:"source_type,omitempty"`
	ChunkIndex int                 `json:"chunk_index"`
	Content    string              `json:"content"`
	Score      float32             `json:"score"`
}

// Answer bundles generated text with its citations.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}

// HistoryEntry records one completed loop pass for diagnostics and for
// detecting non-improving reformulations.
type HistoryEntry struct {
	Query      string  `json:"query"`
	Confidence float64 `json:"confidence"`
	Candidates int     `json:"candidates"`
}

// Result is what a finished run hands back to the caller.
type Result struct {
	Query          string         `json:"query"`
	RefinedQuery   string         `json:"refined_query,omitempty"`
	AnswerText     string         `json:"answer"`
	Citations      []Citation     `json:"citations,omitempty"`
	Confidence     float64        `json:"confidence"`
	IterationsUsed int            `json:"iterations_used"`
	Status         Status         `json:"status"`
	History        []HistoryEntry `json:"history,omitempty"`
}

// agentState is the unit of work threaded through one run of the loop.
// It is owned exclusively by the orchestrator and never shared.
type agentState struct {
	originalQuery string
	currentQuery  string
	scope         *ScopeFilter

	candidates []Candidate
	ranked     []ScoredCandidate
	answer     Answer
	confidence float64

	iteration     int
	maxIterations int
	history       []HistoryEntry
	degraded      bool
}

// snapshot preserves the best iteration's outcome so a regressing later
// iteration cannot displace it.
type snapshot struct {
	query      string
	answer     Answer
	confidence float64
	noEvidence bool
}

func newAgentState(query string, scope *ScopeFilter, maxIterations int) *agentState {
	return &agentState{
		originalQuery: query,
		currentQuery:  query,
		scope:         scope,
		maxIterations: maxIterations,
	}
}

// queryUsed reports whether any completed pass already searched this query.
func (s *agentState) queryUsed(query string) bool {
	for _, h := range s.history {
		if h.Query == query {
			return true
		}
	}
	return false
}
