package token

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sweetpotato0/docarag/rag/document"
)

// Chunker splits documents into token-budgeted windows using a tiktoken
// encoding, so chunk sizes line up with embedding-model limits.
type Chunker struct {
	enc           *tiktoken.Tiktoken
	maxTokens     int
	overlapTokens int
}

// Option customises the token chunker.
type Option func(*Chunker)

// WithMaxTokens sets the maximum allowed tokens per chunk (default 256).
func WithMaxTokens(tokens int) Option {
	return func(c *Chunker) {
		if tokens > 0 {
			c.maxTokens = tokens
		}
	}
}

// WithOverlapTokens sets how many tokens are shared between consecutive chunks.
func WithOverlapTokens(tokens int) Option {
	return func(c *Chunker) {
		if tokens >= 0 {
			c.overlapTokens = tokens
		}
	}
}

// New creates a token chunker for the given model or encoding name.
func New(encoding string, opts ...Option) (*Chunker, error) {
	enc, err := tiktoken.EncodingForModel(encoding)
	if err != nil {
		// try by encoding name (e.g. cl100k_base)
		enc, err = tiktoken.GetEncoding(encoding)
		if err != nil {
			return nil, fmt.Errorf("resolve tiktoken encoding %q: %w", encoding, err)
		}
	}

	ch := &Chunker{
		enc:           enc,
		maxTokens:     256,
		overlapTokens: 32,
	}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.overlapTokens >= ch.maxTokens {
		ch.overlapTokens = ch.maxTokens / 4
	}
	return ch, nil
}

// Chunk implements chunking.Chunker.
func (c *Chunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	document.EnsureDocumentID(&doc)

	ids := c.enc.Encode(doc.Content, nil, nil)
	if len(ids) == 0 {
		return []document.Chunk{c.newChunk(doc, 0, doc.Content)}, nil
	}

	var chunks []document.Chunk
	ordinal := 0
	start := 0
	for start < len(ids) {
		end := start + c.maxTokens
		if end > len(ids) {
			end = len(ids)
		}
		text := c.enc.Decode(ids[start:end])
		chunks = append(chunks, c.newChunk(doc, ordinal, text))
		ordinal++

		if end == len(ids) {
			break
		}
		start = end - c.overlapTokens
	}

	return chunks, nil
}

// CountTokens returns how many tokens the text encodes to.
func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *Chunker) newChunk(doc document.Document, ordinal int, content string) document.Chunk {
	return document.Chunk{
		ID:         document.NextChunkID(doc.ID),
		DocumentID: doc.ID,
		Content:    strings.TrimSpace(content),
		Ordinal:    ordinal,
		Metadata: map[string]any{
			"filename":    doc.Filename,
			"source_type": string(doc.SourceType),
		},
	}
}
