package agentic

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type stubRewriter struct {
	fn    func(in RewriteInput) (RewriteOutput, error)
	calls int
}

func (s *stubRewriter) Rewrite(_ context.Context, in RewriteInput) (RewriteOutput, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(in)
	}
	return RewriteOutput{Query: in.Current}, nil
}

type stubRetriever struct {
	fn    func(query string, call int) ([]Candidate, error)
	calls int
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, _ *ScopeFilter, _ int) ([]Candidate, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(query, s.calls)
	}
	return nil, nil
}

type stubReranker struct {
	fn    func(candidates []Candidate, topN int) (RerankOutput, error)
	calls int
}

func (s *stubReranker) Rerank(_ context.Context, _ string, candidates []Candidate, topN int) (RerankOutput, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(candidates, topN)
	}
	if topN > len(candidates) {
		topN = len(candidates)
	}
	ranked := make([]ScoredCandidate, 0, topN)
	for _, c := range candidates[:topN] {
		ranked = append(ranked, ScoredCandidate{Candidate: c})
	}
	return RerankOutput{Ranked: ranked}, nil
}

type stubGenerator struct {
	fn    func(ranked []ScoredCandidate, call int) (Answer, error)
	calls int
}

func (s *stubGenerator) Generate(_ context.Context, _ string, ranked []ScoredCandidate) (Answer, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(ranked, s.calls)
	}
	if len(ranked) == 0 {
		return Answer{Text: InsufficientEvidenceAnswer}, nil
	}
	return Answer{Text: "stub answer grounded in evidence"}, nil
}

type stubEvaluator struct {
	fn    func(answer string, ranked []ScoredCandidate, call int) (float64, error)
	calls int
}

func (s *stubEvaluator) Evaluate(_ context.Context, _, answer string, ranked []ScoredCandidate) (float64, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(answer, ranked, s.calls)
	}
	if len(ranked) == 0 {
		return 0, nil
	}
	return 0.9, nil
}

func capitalCandidates() []Candidate {
	return []Candidate{
		{ID: "c1", DocumentID: "doc-1", Filename: "france.pdf", ChunkIndex: 0, Content: "Paris is the capital of France.", Similarity: 0.93},
		{ID: "c2", DocumentID: "doc-1", Filename: "france.pdf", ChunkIndex: 3, Content: "France is a country in Western Europe.", Similarity: 0.71},
	}
}

func newTestAgent(t *testing.T, rw *stubRewriter, rt *stubRetriever, rr *stubReranker, gen *stubGenerator, ev *stubEvaluator, opts ...Option) *Agent {
	t.Helper()
	agent, err := New(rw, rt, rr, gen, ev, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return agent
}

func TestAnswerHighConfidenceSinglePass(t *testing.T) {
	rt := &stubRetriever{fn: func(string, int) ([]Candidate, error) {
		return capitalCandidates(), nil
	}}
	gen := &stubGenerator{fn: func(ranked []ScoredCandidate, _ int) (Answer, error) {
		return Answer{
			Text:      "Paris.",
			Citations: []Citation{{DocumentID: "doc-1", Filename: "france.pdf", ChunkIndex: 0, Content: ranked[0].Content}},
		}, nil
	}}
	agent := newTestAgent(t, &stubRewriter{}, rt, &stubReranker{}, gen, &stubEvaluator{})

	result, err := agent.Answer(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", result.Status, StatusCompleted)
	}
	if result.IterationsUsed != 1 {
		t.Errorf("iterations = %d, want 1", result.IterationsUsed)
	}
	if result.AnswerText != "Paris." {
		t.Errorf("answer = %q, want %q", result.AnswerText, "Paris.")
	}
	if len(result.Citations) != 1 {
		t.Errorf("citations = %d, want 1", len(result.Citations))
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %g, want 0.9", result.Confidence)
	}
}

func TestAnswerNoEvidenceExhaustsBudget(t *testing.T) {
	rt := &stubRetriever{}
	gen := &stubGenerator{}
	ev := &stubEvaluator{}
	agent := newTestAgent(t, &stubRewriter{}, rt, &stubReranker{}, gen, ev)

	result, err := agent.Answer(context.Background(), "What is the airspeed of an unladen swallow?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Status != StatusInsufficientEvidence {
		t.Errorf("status = %q, want %q", result.Status, StatusInsufficientEvidence)
	}
	if result.IterationsUsed != 2 {
		t.Errorf("iterations = %d, want 2", result.IterationsUsed)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %g, want 0", result.Confidence)
	}
	if result.AnswerText != InsufficientEvidenceAnswer {
		t.Errorf("answer = %q, want insufficient-evidence text", result.AnswerText)
	}
	if rt.calls != 2 {
		t.Errorf("retriever called %d times, want 2", rt.calls)
	}
}

func TestAnswerCancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &stubRetriever{fn: func(string, int) ([]Candidate, error) {
		cancel() // cancellation lands before the rerank stage starts
		return capitalCandidates(), nil
	}}
	rr := &stubReranker{}
	gen := &stubGenerator{}
	ev := &stubEvaluator{}
	agent := newTestAgent(t, &stubRewriter{}, rt, rr, gen, ev)

	result, err := agent.Answer(ctx, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Status != StatusCancelled {
		t.Errorf("status = %q, want %q", result.Status, StatusCancelled)
	}
	if result.AnswerText != "" {
		t.Errorf("answer = %q, want empty on cancellation", result.AnswerText)
	}
	if rr.calls != 0 || gen.calls != 0 || ev.calls != 0 {
		t.Errorf("later stages ran after cancellation: rerank=%d generate=%d evaluate=%d", rr.calls, gen.calls, ev.calls)
	}
}

func TestAnswerKeepsBestIteration(t *testing.T) {
	rt := &stubRetriever{fn: func(string, int) ([]Candidate, error) {
		return capitalCandidates(), nil
	}}
	gen := &stubGenerator{fn: func(_ []ScoredCandidate, call int) (Answer, error) {
		return Answer{Text: fmt.Sprintf("answer from pass %d", call)}, nil
	}}
	ev := &stubEvaluator{fn: func(_ string, _ []ScoredCandidate, call int) (float64, error) {
		if call == 1 {
			return 0.9, nil
		}
		return 0.4, nil
	}}
	agent := newTestAgent(t, &stubRewriter{}, rt, &stubReranker{}, gen, ev)

	result, err := agent.Answer(context.Background(), "capital of France", WithRunConfidenceThreshold(0.95))
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.IterationsUsed != 2 {
		t.Errorf("iterations = %d, want 2", result.IterationsUsed)
	}
	if result.AnswerText != "answer from pass 1" {
		t.Errorf("answer = %q, want the first pass kept", result.AnswerText)
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %g, want 0.9", result.Confidence)
	}
}

func TestAnswerBoundedIterations(t *testing.T) {
	rt := &stubRetriever{fn: func(string, int) ([]Candidate, error) {
		return capitalCandidates(), nil
	}}
	ev := &stubEvaluator{fn: func(string, []ScoredCandidate, int) (float64, error) {
		return 0.1, nil
	}}
	agent := newTestAgent(t, &stubRewriter{}, rt, &stubReranker{}, &stubGenerator{}, ev)

	result, err := agent.Answer(context.Background(), "hopeless question", WithRunMaxIterations(3))
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.IterationsUsed != 3 {
		t.Errorf("iterations = %d, want 3", result.IterationsUsed)
	}
	if ev.calls != 3 {
		t.Errorf("evaluator called %d times, want 3", ev.calls)
	}
}

func TestAnswerNeverRepeatsQuery(t *testing.T) {
	rw := &stubRewriter{fn: func(in RewriteInput) (RewriteOutput, error) {
		return RewriteOutput{Query: in.Original}, nil // never improves
	}}
	rt := &stubRetriever{}
	agent := newTestAgent(t, rw, rt, &stubReranker{}, &stubGenerator{}, &stubEvaluator{})

	result, err := agent.Answer(context.Background(), "same question", WithRunMaxIterations(3))
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	seen := map[string]bool{}
	for _, h := range result.History {
		if seen[h.Query] {
			t.Fatalf("query %q reused across iterations", h.Query)
		}
		seen[h.Query] = true
	}
	if len(result.History) != 3 {
		t.Errorf("history length = %d, want 3", len(result.History))
	}
}

func TestAnswerIdempotent(t *testing.T) {
	newAgent := func() *Agent {
		rt := &stubRetriever{fn: func(string, int) ([]Candidate, error) {
			return capitalCandidates(), nil
		}}
		return newTestAgent(t, &stubRewriter{}, rt, &stubReranker{}, &stubGenerator{}, &stubEvaluator{})
	}

	first, err := newAgent().Answer(context.Background(), "capital of France")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := newAgent().Answer(context.Background(), "capital of France")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAnswerDegradedWhenRerankerFalls(t *testing.T) {
	rt := &stubRetriever{fn: func(string, int) ([]Candidate, error) {
		return capitalCandidates(), nil
	}}
	rr := &stubReranker{fn: func(candidates []Candidate, topN int) (RerankOutput, error) {
		return RerankOutput{Ranked: passthrough(candidates, topN), Degraded: true}, nil
	}}
	agent := newTestAgent(t, &stubRewriter{}, rt, rr, &stubGenerator{}, &stubEvaluator{})

	result, err := agent.Answer(context.Background(), "capital of France")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Status != StatusDegraded {
		t.Errorf("status = %q, want %q", result.Status, StatusDegraded)
	}
	if result.AnswerText == "" {
		t.Error("degraded run should still carry an answer")
	}
}

func TestAnswerEvaluatorFailureFallsBackToHeuristic(t *testing.T) {
	rt := &stubRetriever{fn: func(string, int) ([]Candidate, error) {
		return capitalCandidates(), nil
	}}
	ev := &stubEvaluator{fn: func(string, []ScoredCandidate, int) (float64, error) {
		return 0, errors.New("judge offline")
	}}
	agent := newTestAgent(t, &stubRewriter{}, rt, &stubReranker{}, &stubGenerator{}, ev)

	result, err := agent.Answer(context.Background(), "capital of France")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Status != StatusDegraded {
		t.Errorf("status = %q, want %q", result.Status, StatusDegraded)
	}
	if result.Confidence <= 0 {
		t.Errorf("confidence = %g, want heuristic fallback > 0", result.Confidence)
	}
}

func TestAnswerRetrieverErrorIsFatal(t *testing.T) {
	rt := &stubRetriever{fn: func(string, int) ([]Candidate, error) {
		return nil, errors.New("store offline")
	}}
	agent := newTestAgent(t, &stubRewriter{}, rt, &stubReranker{}, &stubGenerator{}, &stubEvaluator{})

	if _, err := agent.Answer(context.Background(), "anything"); err == nil {
		t.Fatal("expected error from failing retriever")
	}
}

func TestAnswerRejectsEmptyQuery(t *testing.T) {
	agent := newTestAgent(t, &stubRewriter{}, &stubRetriever{}, &stubReranker{}, &stubGenerator{}, &stubEvaluator{})
	if _, err := agent.Answer(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestNewRejectsNilStages(t *testing.T) {
	if _, err := New(nil, &stubRetriever{}, &stubReranker{}, &stubGenerator{}, &stubEvaluator{}); err == nil {
		t.Error("expected error for nil rewriter")
	}
	if _, err := New(&stubRewriter{}, &stubRetriever{}, &stubReranker{}, &stubGenerator{}, nil); err == nil {
		t.Error("expected error for nil evaluator")
	}
}

func TestNewRejectsTopNNotBelowK(t *testing.T) {
	_, err := New(&stubRewriter{}, &stubRetriever{}, &stubReranker{}, &stubGenerator{}, &stubEvaluator{},
		WithRetrievalK(5), WithRerankTopN(5))
	if err == nil {
		t.Fatal("expected error when top-n is not below k")
	}
}
