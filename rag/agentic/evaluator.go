package agentic

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweetpotato0/docarag/llm"
	"github.com/sweetpotato0/docarag/message"
)

// HeuristicEvaluator scores answers without a model call, combining evidence
// volume, rerank relevance, and answer length. It is the default evaluator
// and the fallback when a model-based one is unavailable.
type HeuristicEvaluator struct {
	topN int
}

// NewHeuristicEvaluator builds the evaluator. topN is the rerank width the
// evidence-volume factor is normalized against.
func NewHeuristicEvaluator(topN int) *HeuristicEvaluator {
	if topN <= 0 {
		topN = 5
	}
	return &HeuristicEvaluator{topN: topN}
}

// Evaluate implements Evaluator. It never fails.
func (e *HeuristicEvaluator) Evaluate(_ context.Context, _ string, answer string, ranked []ScoredCandidate) (float64, error) {
	return HeuristicConfidence(answer, ranked, e.topN), nil
}

// HeuristicConfidence computes a confidence in [0,1] from three signals:
// how full the evidence set is (up to 0.3), the average rerank relevance
// normalized from its raw range (up to 0.4), and whether the answer has
// substance (up to 0.3). No evidence always scores 0.
func HeuristicConfidence(answer string, ranked []ScoredCandidate, topN int) float64 {
	if len(ranked) == 0 {
		return 0
	}
	if topN <= 0 {
		topN = 5
	}

	docFactor := float64(len(ranked)) / float64(topN)
	if docFactor > 1 {
		docFactor = 1
	}

	var sum float64
	for _, c := range ranked {
		if c.Relevance != nil {
			sum += float64(*c.Relevance)
		} else {
			sum += float64(c.Similarity)
		}
	}
	avg := sum / float64(len(ranked))
	// rerank scores roughly span [-5, 10]; map to [0, 1]
	relevance := clamp01((avg + 5) / 15)

	var lengthFactor float64
	switch words := len(strings.Fields(answer)); {
	case words > 50:
		lengthFactor = 0.3
	case words > 20:
		lengthFactor = 0.15
	}

	return clamp01(docFactor*0.3 + relevance*0.4 + lengthFactor)
}

// LLMEvaluator asks a model to judge the answer against the evidence. Parse
// failures degrade to a neutral 0.5; transport failures surface as errors so
// the loop can fall back to the heuristic.
type LLMEvaluator struct {
	client llm.Client
}

const evaluateSystemPrompt = `You grade how well an answer addresses a question given the supporting passages.
Reply with a single number between 0.0 and 1.0 and nothing else.`

// NewLLMEvaluator builds a model-backed evaluator.
func NewLLMEvaluator(client llm.Client) *LLMEvaluator {
	return &LLMEvaluator{client: client}
}

// Evaluate implements Evaluator.
func (e *LLMEvaluator) Evaluate(ctx context.Context, query, answer string, ranked []ScoredCandidate) (float64, error) {
	if len(ranked) == 0 {
		return 0, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nAnswer: %s\n\nSupporting passages:\n", query, answer)
	for i, c := range ranked {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Content)
	}

	reply, err := e.client.Generate(ctx, []*message.Message{
		message.System(evaluateSystemPrompt),
		message.User(b.String()),
	})
	if err != nil {
		return 0, fmt.Errorf("evaluate answer: %w", err)
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(reply.Text()), 64)
	if err != nil {
		return 0.5, nil
	}
	return clamp01(score), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
