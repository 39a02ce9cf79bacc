// Package agentic implements the iterative query-answering loop: understand
// the query, retrieve candidate passages, rerank them, generate a grounded
// answer, evaluate it, and either stop or retry with a reformulated query.
package agentic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/docarag/pkg/logging"
	"github.com/sweetpotato0/docarag/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// stage enumerates the states of the answering loop.
type stage int

const (
	stageUnderstand stage = iota
	stageRetrieve
	stageRerank
	stageGenerate
	stageEvaluate
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageUnderstand:
		return "understand"
	case stageRetrieve:
		return "retrieve"
	case stageRerank:
		return "rerank"
	case stageGenerate:
		return "generate"
	case stageEvaluate:
		return "evaluate"
	default:
		return "done"
	}
}

// Config bundles the loop tunables.
type Config struct {
	RetrievalK          int     // initial retrieval width
	RerankTopN          int     // candidates surviving reranking, must be < RetrievalK
	MaxIterations       int     // hard ceiling on full loop passes
	ConfidenceThreshold float64 // below this the loop retries while budget remains
}

// Option customises agent construction.
type Option func(*Config)

// WithRetrievalK sets how many candidates the retriever fetches per pass.
func WithRetrievalK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.RetrievalK = k
		}
	}
}

// WithRerankTopN caps how many candidates survive reranking.
func WithRerankTopN(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.RerankTopN = n
		}
	}
}

// WithMaxIterations sets the default iteration budget for runs.
func WithMaxIterations(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxIterations = n
		}
	}
}

// WithConfidenceThreshold sets the default confidence below which the loop retries.
func WithConfidenceThreshold(t float64) Option {
	return func(cfg *Config) {
		if t >= 0 && t <= 1 {
			cfg.ConfidenceThreshold = t
		}
	}
}

// Agent owns the answering state machine. Stage implementations are injected
// so tests can substitute deterministic stubs. One Agent serves concurrent
// requests; each run gets its own state and the stages are expected to be
// safe for concurrent use.
type Agent struct {
	rewriter  QueryRewriter
	retriever Retriever
	reranker  Reranker
	generator Generator
	evaluator Evaluator

	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
}

// New wires an agent from its five stages.
func New(rewriter QueryRewriter, retriever Retriever, reranker Reranker, generator Generator, evaluator Evaluator, opts ...Option) (*Agent, error) {
	if rewriter == nil {
		return nil, fmt.Errorf("query rewriter is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if reranker == nil {
		return nil, fmt.Errorf("reranker is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}

	cfg := Config{
		RetrievalK:          20,
		RerankTopN:          5,
		MaxIterations:       2,
		ConfidenceThreshold: 0.5,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RerankTopN >= cfg.RetrievalK {
		return nil, fmt.Errorf("rerank top-n (%d) must be smaller than retrieval k (%d)", cfg.RerankTopN, cfg.RetrievalK)
	}

	return &Agent{
		rewriter:  rewriter,
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		evaluator: evaluator,
		cfg:       cfg,
		logger:    logging.WithComponent("agentic"),
		tracer:    telemetry.Tracer("docarag/rag/agentic"),
	}, nil
}

// RunOption customises a single run.
type RunOption func(*runConfig)

type runConfig struct {
	scope               *ScopeFilter
	maxIterations       int
	confidenceThreshold float64
}

// WithScope restricts retrieval to a document and/or source type for this run.
func WithScope(scope ScopeFilter) RunOption {
	return func(rc *runConfig) {
		if scope.DocumentID != "" || scope.SourceType != "" {
			s := scope
			rc.scope = &s
		}
	}
}

// WithRunMaxIterations overrides the iteration budget for this run.
func WithRunMaxIterations(n int) RunOption {
	return func(rc *runConfig) {
		if n > 0 {
			rc.maxIterations = n
		}
	}
}

// WithRunConfidenceThreshold overrides the retry threshold for this run.
func WithRunConfidenceThreshold(t float64) RunOption {
	return func(rc *runConfig) {
		if t >= 0 && t <= 1 {
			rc.confidenceThreshold = t
		}
	}
}

// Answer executes the state machine for one query and returns the
// best-confidence answer observed across all executed iterations.
//
// Cancellation is honoured between stages: the context is checked at the top
// of every state and a cancelled run reports StatusCancelled without a
// partial answer. Retriever and generator errors abort the run; rewriter and
// reranker unavailability degrade it.
func (a *Agent) Answer(ctx context.Context, query string, opts ...RunOption) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	rc := runConfig{
		maxIterations:       a.cfg.MaxIterations,
		confidenceThreshold: a.cfg.ConfidenceThreshold,
	}
	for _, opt := range opts {
		opt(&rc)
	}

	ctx, span := a.tracer.Start(ctx, "agentic.answer",
		trace.WithAttributes(attribute.Int("max_iterations", rc.maxIterations)))
	result, err := a.run(ctx, query, rc)
	telemetry.End(span, err)
	return result, err
}

func (a *Agent) run(ctx context.Context, query string, rc runConfig) (*Result, error) {
	st := newAgentState(query, rc.scope, rc.maxIterations)
	a.logger.Info("run started",
		"query", trimForLog(query, 120),
		"max_iterations", st.maxIterations,
		"scoped", st.scope != nil,
	)

	var best *snapshot
	current := stageUnderstand

	for current != stageDone {
		if err := ctx.Err(); err != nil {
			a.logger.Warn("run cancelled", "stage", current.String(), "iteration", st.iteration)
			return a.cancelledResult(st), nil
		}

		switch current {
		case stageUnderstand:
			a.understand(ctx, st)
			current = stageRetrieve

		case stageRetrieve:
			candidates, err := a.retriever.Retrieve(ctx, st.currentQuery, st.scope, a.cfg.RetrievalK)
			if err != nil {
				if ctx.Err() != nil {
					a.logger.Warn("run cancelled", "stage", current.String(), "iteration", st.iteration)
					return a.cancelledResult(st), nil
				}
				return nil, fmt.Errorf("retrieve: %w", err)
			}
			st.candidates = candidates
			a.logger.Debug("candidates retrieved", "iteration", st.iteration, "count", len(candidates))
			current = stageRerank

		case stageRerank:
			out, err := a.reranker.Rerank(ctx, st.currentQuery, st.candidates, a.cfg.RerankTopN)
			if err != nil {
				return nil, fmt.Errorf("rerank: %w", err)
			}
			if out.Degraded {
				st.degraded = true
			}
			st.ranked = out.Ranked
			current = stageGenerate

		case stageGenerate:
			answer, err := a.generator.Generate(ctx, st.originalQuery, st.ranked)
			if err != nil {
				return nil, fmt.Errorf("generate: %w", err)
			}
			st.answer = answer
			current = stageEvaluate

		case stageEvaluate:
			confidence, err := a.evaluator.Evaluate(ctx, st.originalQuery, st.answer.Text, st.ranked)
			if err != nil {
				// fall back to the heuristic judgment rather than losing the pass
				confidence = HeuristicConfidence(st.answer.Text, st.ranked, a.cfg.RerankTopN)
				st.degraded = true
				a.logger.Warn("evaluator unavailable, using heuristic confidence",
					"iteration", st.iteration, "confidence", confidence, "error", err)
			}
			st.confidence = confidence
			st.history = append(st.history, HistoryEntry{
				Query:      st.currentQuery,
				Confidence: confidence,
				Candidates: len(st.candidates),
			})
			st.iteration++

			if best == nil || confidence > best.confidence {
				best = &snapshot{
					query:      st.currentQuery,
					answer:     st.answer,
					confidence: confidence,
					noEvidence: len(st.ranked) == 0,
				}
			}

			if confidence < rc.confidenceThreshold && st.iteration < st.maxIterations {
				a.logger.Info("confidence below threshold, retrying",
					"iteration", st.iteration, "confidence", confidence)
				current = stageUnderstand
			} else {
				current = stageDone
			}
		}
	}

	result := a.finalResult(st, best)
	a.logger.Info("run completed",
		"status", string(result.Status),
		"iterations", result.IterationsUsed,
		"confidence", result.Confidence,
		"citations", len(result.Citations),
	)
	return result, nil
}

// understand runs the query rewriting stage, guarding against the rewriter
// repeating the query that just failed.
func (a *Agent) understand(ctx context.Context, st *agentState) {
	out, err := a.rewriter.Rewrite(ctx, RewriteInput{
		Original:  st.originalQuery,
		Current:   st.currentQuery,
		Iteration: st.iteration,
		History:   st.history,
	})
	if err != nil || strings.TrimSpace(out.Query) == "" {
		out = RewriteOutput{Query: st.currentQuery, Degraded: true}
	}
	if out.Degraded {
		st.degraded = true
	}

	refined := strings.TrimSpace(out.Query)
	if st.queryUsed(refined) {
		refined = broadenQuery(st.originalQuery, st.iteration)
		a.logger.Debug("rewriter repeated an earlier query, broadening",
			"iteration", st.iteration, "query", trimForLog(refined, 120))
	}
	st.currentQuery = refined
}

// broadenQuery deterministically widens a query so a retry never reuses the
// exact text that just failed.
func broadenQuery(query string, iteration int) string {
	return fmt.Sprintf("%s (broader context, attempt %d)", query, iteration+1)
}

func (a *Agent) cancelledResult(st *agentState) *Result {
	return &Result{
		Query:          st.originalQuery,
		Status:         StatusCancelled,
		IterationsUsed: st.iteration,
	}
}

func (a *Agent) finalResult(st *agentState, best *snapshot) *Result {
	result := &Result{
		Query:          st.originalQuery,
		IterationsUsed: st.iteration,
		History:        st.history,
		Status:         StatusCompleted,
	}
	if best == nil {
		// no iteration ever completed; treat as missing evidence
		result.AnswerText = InsufficientEvidenceAnswer
		result.Status = StatusInsufficientEvidence
		return result
	}

	result.AnswerText = best.answer.Text
	result.Citations = best.answer.Citations
	result.Confidence = best.confidence
	if best.query != st.originalQuery {
		result.RefinedQuery = best.query
	}

	switch {
	case best.noEvidence:
		result.Status = StatusInsufficientEvidence
		result.Confidence = 0
	case st.degraded:
		result.Status = StatusDegraded
	}
	return result
}

func trimForLog(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
