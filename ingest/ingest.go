// Package ingest turns documents into indexed vector-store entries: chunk,
// embed in batches, store with retrieval metadata.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/sweetpotato0/docarag/errors"
	"github.com/sweetpotato0/docarag/pkg/logging"
	"github.com/sweetpotato0/docarag/pkg/telemetry"
	"github.com/sweetpotato0/docarag/rag/chunking"
	"github.com/sweetpotato0/docarag/rag/document"
	"github.com/sweetpotato0/docarag/vector"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Result summarises one indexed document.
type Result struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// ProgressFunc is called after every stored batch with how many chunks have
// been processed out of the total.
type ProgressFunc func(processed, total int)

// Indexer runs the chunk-embed-store pipeline for documents.
type Indexer struct {
	chunker    chunking.Chunker
	embedder   vector.Embedder
	store      vector.VectorStore
	batchSize  int
	onProgress ProgressFunc

	logger *slog.Logger
	tracer trace.Tracer
}

// Option customises the indexer.
type Option func(*Indexer)

// WithBatchSize sets how many chunks are embedded per provider call (default 16).
func WithBatchSize(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithProgress registers a callback invoked after each stored batch.
func WithProgress(fn ProgressFunc) Option {
	return func(ix *Indexer) {
		ix.onProgress = fn
	}
}

// New wires an indexer from its pipeline parts.
func New(chunker chunking.Chunker, embedder vector.Embedder, store vector.VectorStore, opts ...Option) (*Indexer, error) {
	if chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}

	ix := &Indexer{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		batchSize: 16,
		logger:    logging.WithComponent("ingest"),
		tracer:    telemetry.Tracer("docarag/ingest"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Index chunks the document, embeds every chunk, and stores the embeddings
// with the metadata scope-filtered retrieval needs. Re-indexing a document
// replaces its previous chunks.
func (ix *Indexer) Index(ctx context.Context, doc document.Document) (*Result, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: document content is empty", apperrors.ErrInvalidInput)
	}
	if doc.SourceType != "" && !doc.SourceType.Valid() {
		return nil, fmt.Errorf("%w: unknown source type %q", apperrors.ErrInvalidInput, doc.SourceType)
	}
	document.EnsureDocumentID(&doc)

	ctx, span := ix.tracer.Start(ctx, "ingest.index",
		trace.WithAttributes(attribute.String("document_id", doc.ID)))
	result, err := ix.index(ctx, doc)
	telemetry.End(span, err)
	return result, err
}

func (ix *Indexer) index(ctx context.Context, doc document.Document) (*Result, error) {
	if _, err := ix.store.DeleteByDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("clear previous chunks: %w", err)
	}

	chunks, err := ix.chunker.Chunk(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("chunk document %s: %w", doc.ID, err)
	}

	for start := 0; start < len(chunks); start += ix.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := ix.storeBatch(ctx, doc, chunks[start:end]); err != nil {
			return nil, err
		}
		if ix.onProgress != nil {
			ix.onProgress(end, len(chunks))
		}
	}

	ix.logger.Info("document indexed", "document_id", doc.ID, "filename", doc.Filename, "chunks", len(chunks))
	return &Result{DocumentID: doc.ID, Chunks: len(chunks)}, nil
}

func (ix *Indexer) storeBatch(ctx context.Context, doc document.Document, chunks []document.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i, c := range chunks {
		emb := &vector.Embedding{
			ID:         c.ID,
			Vector:     vectors[i],
			Text:       c.Content,
			DocumentID: doc.ID,
			SourceType: string(doc.SourceType),
			ChunkIndex: c.Ordinal,
			Filename:   doc.Filename,
		}
		if err := ix.store.AddEmbedding(ctx, emb); err != nil {
			return fmt.Errorf("store chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Delete removes every stored chunk of a document and returns how many were
// removed.
func (ix *Indexer) Delete(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("%w: document id is empty", apperrors.ErrInvalidInput)
	}
	removed, err := ix.store.DeleteByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	ix.logger.Info("document removed from index", "document_id", documentID, "chunks", removed)
	return removed, nil
}
