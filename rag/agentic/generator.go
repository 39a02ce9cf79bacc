package agentic

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sweetpotato0/docarag/llm"
	"github.com/sweetpotato0/docarag/message"
)

// InsufficientEvidenceAnswer is returned verbatim whenever no evidence
// survives reranking.
const InsufficientEvidenceAnswer = "I couldn't find any relevant information to answer your question."

const generateSystemPrompt = `You answer questions using only the numbered source passages provided.
Cite the passages you use as [Source N]. If the passages do not contain the
answer, say so plainly instead of guessing.`

var sourceRefPattern = regexp.MustCompile(`\[Source (\d+)\]`)

// LLMGenerator produces answers grounded in ranked passages.
type LLMGenerator struct {
	client llm.Client
}

// NewLLMGenerator builds a generator backed by the given model client.
func NewLLMGenerator(client llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

// Generate implements Generator. With no ranked candidates it returns the
// fixed insufficient-evidence answer without calling the model.
func (g *LLMGenerator) Generate(ctx context.Context, query string, ranked []ScoredCandidate) (Answer, error) {
	if len(ranked) == 0 {
		return Answer{Text: InsufficientEvidenceAnswer}, nil
	}

	reply, err := g.client.Generate(ctx, []*message.Message{
		message.System(generateSystemPrompt),
		message.User(buildGeneratePrompt(query, ranked)),
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	text := strings.TrimSpace(reply.Text())
	if text == "" {
		return Answer{}, fmt.Errorf("model returned an empty answer")
	}

	return Answer{
		Text:      text,
		Citations: citationsFor(text, ranked),
	}, nil
}

func buildGeneratePrompt(query string, ranked []ScoredCandidate) string {
	var b strings.Builder
	for i, c := range ranked {
		fmt.Fprintf(&b, "[Source %d] (from %s, chunk %d)\n%s\n\n", i+1, c.Filename, c.ChunkIndex, c.Content)
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}

// citationsFor maps [Source N] references in the answer back to the passages
// they point at. An answer citing nothing gets all passages as citations, so
// the caller can always see what the answer was grounded in.
func citationsFor(answer string, ranked []ScoredCandidate) []Citation {
	cited := map[int]bool{}
	for _, m := range sourceRefPattern.FindAllStringSubmatch(answer, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= len(ranked) {
			cited[n-1] = true
		}
	}

	var citations []Citation
	for i, c := range ranked {
		if len(cited) > 0 && !cited[i] {
			continue
		}
		score := c.Similarity
		if c.Relevance != nil {
			score = *c.Relevance
		}
		citations = append(citations, Citation{
			DocumentID: c.DocumentID,
			Filename:   c.Filename,
			SourceType: c.SourceType,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Score:      score,
		})
	}
	return citations
}
