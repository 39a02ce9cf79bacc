package agentic

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/docarag/llm"
	"github.com/sweetpotato0/docarag/message"
)

const rewriteSystemPrompt = `You rewrite user questions into search queries for a document retrieval system.
Return only the rewritten query text, nothing else. Keep it a single line.`

const maxRewriteLength = 500

// LLMRewriter reformulates queries with a language model. On the first pass
// it normalizes the user's question into a retrieval-friendly form; on later
// passes it reformulates based on what the previous attempts missed.
type LLMRewriter struct {
	client llm.Client
}

// NewLLMRewriter builds a rewriter backed by the given model client.
func NewLLMRewriter(client llm.Client) *LLMRewriter {
	return &LLMRewriter{client: client}
}

// Rewrite implements QueryRewriter. Model failures never fail the run: the
// stage degrades to the current query instead.
func (r *LLMRewriter) Rewrite(ctx context.Context, in RewriteInput) (RewriteOutput, error) {
	prompt := r.buildPrompt(in)
	reply, err := r.client.Generate(ctx, []*message.Message{
		message.System(rewriteSystemPrompt),
		message.User(prompt),
	})
	if err != nil {
		return RewriteOutput{Query: in.Current, Degraded: true}, nil
	}

	refined := strings.TrimSpace(reply.Text())
	refined = strings.Trim(refined, `"`)
	if refined == "" || len(refined) > maxRewriteLength {
		return RewriteOutput{Query: in.Current, Degraded: true}, nil
	}
	return RewriteOutput{Query: refined}, nil
}

func (r *LLMRewriter) buildPrompt(in RewriteInput) string {
	if in.Iteration == 0 {
		return fmt.Sprintf("Rewrite this question as a concise search query:\n\n%s", in.Original)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\n\n", in.Original)
	b.WriteString("Previous search queries did not surface enough evidence:\n")
	for i, h := range in.History {
		fmt.Fprintf(&b, "%d. %q (confidence %.2f, %d candidates)\n", i+1, h.Query, h.Confidence, h.Candidates)
	}
	b.WriteString("\nWrite a different search query that approaches the question from another angle.")
	return b.String()
}
