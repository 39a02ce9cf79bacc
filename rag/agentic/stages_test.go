package agentic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sweetpotato0/docarag/message"
	"github.com/sweetpotato0/docarag/rag/reranker"
	"github.com/sweetpotato0/docarag/vector"
)

// stubLLM returns canned replies in order, or fails when err is set.
type stubLLM struct {
	replies []string
	err     error
	calls   int
	lastMsg string
}

func (s *stubLLM) Generate(_ context.Context, messages []*message.Message) (*message.Message, error) {
	s.calls++
	if len(messages) > 0 {
		s.lastMsg = messages[len(messages)-1].Text()
	}
	if s.err != nil {
		return nil, s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return message.NewMessage(message.RoleAssistant, reply), nil
}

func (s *stubLLM) SetTemperature(float64) {}
func (s *stubLLM) SetMaxTokens(int64)     {}
func (s *stubLLM) SetModel(string)        {}

type stubInnerReranker struct {
	results []reranker.Result
	err     error
}

func (s *stubInnerReranker) Rank(_ context.Context, _ string, _ []reranker.Candidate) ([]reranker.Result, error) {
	return s.results, s.err
}

func floatPtr(f float32) *float32 { return &f }

func TestRerankStageOrdersByRelevance(t *testing.T) {
	inner := &stubInnerReranker{results: []reranker.Result{
		{Index: 1, Score: 8.2},
		{Index: 0, Score: 3.1},
	}}
	stage := NewRerankStage(inner)

	out, err := stage.Rerank(context.Background(), "capital", capitalCandidates(), 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if out.Degraded {
		t.Error("unexpected degraded flag")
	}
	if len(out.Ranked) != 2 {
		t.Fatalf("ranked = %d, want 2", len(out.Ranked))
	}
	if out.Ranked[0].ID != "c2" || out.Ranked[1].ID != "c1" {
		t.Errorf("order = [%s %s], want [c2 c1]", out.Ranked[0].ID, out.Ranked[1].ID)
	}
	if out.Ranked[0].Relevance == nil || *out.Ranked[0].Relevance != 8.2 {
		t.Errorf("top relevance = %v, want 8.2", out.Ranked[0].Relevance)
	}
}

func TestRerankStagePassthroughOnFailure(t *testing.T) {
	stage := NewRerankStage(&stubInnerReranker{err: errors.New("api down")})

	out, err := stage.Rerank(context.Background(), "capital", capitalCandidates(), 1)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if !out.Degraded {
		t.Error("expected degraded flag on passthrough")
	}
	if len(out.Ranked) != 1 {
		t.Fatalf("ranked = %d, want 1", len(out.Ranked))
	}
	if out.Ranked[0].ID != "c1" {
		t.Errorf("passthrough kept %s, want retrieval-order head c1", out.Ranked[0].ID)
	}
	if out.Ranked[0].Relevance != nil {
		t.Error("passthrough candidates must have nil relevance")
	}
}

func TestRerankStageEmptyInput(t *testing.T) {
	stage := NewRerankStage(&stubInnerReranker{})
	out, err := stage.Rerank(context.Background(), "q", nil, 5)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(out.Ranked) != 0 || out.Degraded {
		t.Errorf("want empty non-degraded output, got %+v", out)
	}
}

func TestLLMGeneratorNoEvidenceSkipsModel(t *testing.T) {
	client := &stubLLM{replies: []string{"should not be used"}}
	gen := NewLLMGenerator(client)

	answer, err := gen.Generate(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer.Text != InsufficientEvidenceAnswer {
		t.Errorf("answer = %q, want fixed insufficient-evidence text", answer.Text)
	}
	if client.calls != 0 {
		t.Errorf("model called %d times, want 0", client.calls)
	}
}

func TestLLMGeneratorCitesReferencedSources(t *testing.T) {
	client := &stubLLM{replies: []string{"Paris is the capital [Source 1]."}}
	gen := NewLLMGenerator(client)

	ranked := []ScoredCandidate{
		{Candidate: capitalCandidates()[0], Relevance: floatPtr(9.1)},
		{Candidate: capitalCandidates()[1], Relevance: floatPtr(2.4)},
	}
	answer, err := gen.Generate(context.Background(), "capital of France", ranked)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(answer.Citations))
	}
	if answer.Citations[0].ChunkIndex != 0 || answer.Citations[0].Score != 9.1 {
		t.Errorf("citation = %+v, want chunk 0 with score 9.1", answer.Citations[0])
	}
	if !strings.Contains(client.lastMsg, "[Source 1]") || !strings.Contains(client.lastMsg, "france.pdf") {
		t.Errorf("prompt missing numbered sources:\n%s", client.lastMsg)
	}
}

func TestLLMGeneratorUncitedAnswerKeepsAllSources(t *testing.T) {
	client := &stubLLM{replies: []string{"Paris."}}
	gen := NewLLMGenerator(client)

	ranked := []ScoredCandidate{
		{Candidate: capitalCandidates()[0]},
		{Candidate: capitalCandidates()[1]},
	}
	answer, err := gen.Generate(context.Background(), "capital of France", ranked)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(answer.Citations) != 2 {
		t.Errorf("citations = %d, want all sources when none referenced", len(answer.Citations))
	}
}

func TestLLMGeneratorModelErrorIsFatal(t *testing.T) {
	gen := NewLLMGenerator(&stubLLM{err: errors.New("provider down")})
	ranked := []ScoredCandidate{{Candidate: capitalCandidates()[0]}}
	if _, err := gen.Generate(context.Background(), "q", ranked); err == nil {
		t.Fatal("expected error from failing model")
	}
}

func TestHeuristicConfidence(t *testing.T) {
	longAnswer := strings.Repeat("evidence backed words here ", 15)

	tests := []struct {
		name   string
		answer string
		ranked []ScoredCandidate
		want   float64
	}{
		{name: "no evidence", answer: longAnswer, ranked: nil, want: 0},
		{
			name:   "full evidence strong scores long answer",
			answer: longAnswer,
			ranked: []ScoredCandidate{
				{Relevance: floatPtr(10)}, {Relevance: floatPtr(10)}, {Relevance: floatPtr(10)},
				{Relevance: floatPtr(10)}, {Relevance: floatPtr(10)},
			},
			want: 1, // 0.3 + 0.4 + 0.3
		},
		{
			name:   "single weak hit short answer",
			answer: "Paris.",
			ranked: []ScoredCandidate{{Relevance: floatPtr(-5)}},
			want:   0.06, // 1/5*0.3 + 0*0.4 + 0
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeuristicConfidence(tt.answer, tt.ranked, 5)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("confidence = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestHeuristicConfidenceUsesSimilarityWithoutRelevance(t *testing.T) {
	ranked := []ScoredCandidate{{Candidate: Candidate{Similarity: 0.8}}}
	got := HeuristicConfidence("short", ranked, 5)
	if got <= 0 || got > 1 {
		t.Errorf("confidence = %g, want within (0, 1]", got)
	}
}

func TestLLMEvaluatorParsesScore(t *testing.T) {
	ev := NewLLMEvaluator(&stubLLM{replies: []string{"0.85"}})
	ranked := []ScoredCandidate{{Candidate: capitalCandidates()[0]}}

	score, err := ev.Evaluate(context.Background(), "q", "a", ranked)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if score != 0.85 {
		t.Errorf("score = %g, want 0.85", score)
	}
}

func TestLLMEvaluatorUnparseableReplyIsNeutral(t *testing.T) {
	ev := NewLLMEvaluator(&stubLLM{replies: []string{"looks great!"}})
	ranked := []ScoredCandidate{{Candidate: capitalCandidates()[0]}}

	score, err := ev.Evaluate(context.Background(), "q", "a", ranked)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if score != 0.5 {
		t.Errorf("score = %g, want neutral 0.5", score)
	}
}

func TestLLMEvaluatorClampsOutOfRange(t *testing.T) {
	ev := NewLLMEvaluator(&stubLLM{replies: []string{"1.7"}})
	ranked := []ScoredCandidate{{Candidate: capitalCandidates()[0]}}

	score, err := ev.Evaluate(context.Background(), "q", "a", ranked)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if score != 1 {
		t.Errorf("score = %g, want clamped to 1", score)
	}
}

func TestLLMEvaluatorEmptyEvidenceIsZero(t *testing.T) {
	client := &stubLLM{replies: []string{"0.9"}}
	ev := NewLLMEvaluator(client)

	score, err := ev.Evaluate(context.Background(), "q", "a", nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if score != 0 {
		t.Errorf("score = %g, want 0 without evidence", score)
	}
	if client.calls != 0 {
		t.Errorf("model called %d times, want 0", client.calls)
	}
}

func TestLLMEvaluatorTransportErrorSurfaces(t *testing.T) {
	ev := NewLLMEvaluator(&stubLLM{err: errors.New("timeout")})
	ranked := []ScoredCandidate{{Candidate: capitalCandidates()[0]}}
	if _, err := ev.Evaluate(context.Background(), "q", "a", ranked); err == nil {
		t.Fatal("expected transport error to surface")
	}
}

func TestLLMRewriterFirstPass(t *testing.T) {
	client := &stubLLM{replies: []string{`"capital city France"`}}
	rw := NewLLMRewriter(client)

	out, err := rw.Rewrite(context.Background(), RewriteInput{
		Original: "what's the capital of France??",
		Current:  "what's the capital of France??",
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out.Query != "capital city France" {
		t.Errorf("query = %q, want quotes stripped", out.Query)
	}
	if out.Degraded {
		t.Error("unexpected degraded flag")
	}
}

func TestLLMRewriterRetryPromptIncludesHistory(t *testing.T) {
	client := &stubLLM{replies: []string{"French seat of government"}}
	rw := NewLLMRewriter(client)

	_, err := rw.Rewrite(context.Background(), RewriteInput{
		Original:  "capital of France",
		Current:   "capital of France",
		Iteration: 1,
		History:   []HistoryEntry{{Query: "capital of France", Confidence: 0.2, Candidates: 3}},
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !strings.Contains(client.lastMsg, "capital of France") || !strings.Contains(client.lastMsg, "0.20") {
		t.Errorf("retry prompt missing history:\n%s", client.lastMsg)
	}
}

func TestLLMRewriterDegradesOnModelFailure(t *testing.T) {
	rw := NewLLMRewriter(&stubLLM{err: errors.New("provider down")})

	out, err := rw.Rewrite(context.Background(), RewriteInput{Original: "q", Current: "q"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out.Query != "q" || !out.Degraded {
		t.Errorf("out = %+v, want degraded passthrough", out)
	}
}

func TestLLMRewriterRejectsOverlongOutput(t *testing.T) {
	rw := NewLLMRewriter(&stubLLM{replies: []string{strings.Repeat("x", 600)}})

	out, err := rw.Rewrite(context.Background(), RewriteInput{Original: "q", Current: "q"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if out.Query != "q" || !out.Degraded {
		t.Errorf("out = %+v, want degraded passthrough for overlong rewrite", out)
	}
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return s.vec, s.err
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, s.err
}

func (s *stubEmbedder) Dimension() int { return len(s.vec) }

type stubStore struct {
	vector.VectorStore
	matches    []vector.Match
	lastFilter *vector.Filter
}

func (s *stubStore) Search(_ context.Context, _ []float32, filter *vector.Filter, _ int) ([]vector.Match, error) {
	s.lastFilter = filter
	return s.matches, nil
}

func TestVectorRetrieverMapsMatchesAndScope(t *testing.T) {
	store := &stubStore{matches: []vector.Match{
		{Embedding: &vector.Embedding{ID: "e1", DocumentID: "doc-1", Text: "Paris is the capital.", SourceType: "pdf", ChunkIndex: 4, Filename: "france.pdf"}, Score: 0.88},
	}}
	r := NewVectorRetriever(&stubEmbedder{vec: []float32{1, 0}}, store)

	got, err := r.Retrieve(context.Background(), "capital", &ScopeFilter{DocumentID: "doc-1"}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
	c := got[0]
	if c.ID != "e1" || c.DocumentID != "doc-1" || c.ChunkIndex != 4 || c.Similarity != 0.88 {
		t.Errorf("candidate = %+v", c)
	}
	if store.lastFilter == nil || store.lastFilter.DocumentID != "doc-1" {
		t.Errorf("scope not forwarded, filter = %+v", store.lastFilter)
	}
}

func TestVectorRetrieverEmbedErrorIsFatal(t *testing.T) {
	r := NewVectorRetriever(&stubEmbedder{err: errors.New("embedder down")}, &stubStore{})
	if _, err := r.Retrieve(context.Background(), "q", nil, 10); err == nil {
		t.Fatal("expected error from failing embedder")
	}
}
