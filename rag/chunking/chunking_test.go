package chunking

import (
	"context"
	"strings"
	"testing"

	"github.com/sweetpotato0/docarag/rag/document"
)

func TestSimpleChunkerSplitsOnSeparator(t *testing.T) {
	c := NewSimpleChunker()
	doc := document.Document{
		ID:         "doc-1",
		Filename:   "notes.pdf",
		SourceType: document.SourcePDF,
		Content:    "First paragraph.\n\nSecond paragraph.\n\nThird paragraph.",
	}

	chunks, err := c.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Errorf("chunk %d ordinal = %d", i, ch.Ordinal)
		}
		if ch.DocumentID != "doc-1" {
			t.Errorf("chunk %d document id = %q", i, ch.DocumentID)
		}
		if ch.Metadata["filename"] != "notes.pdf" || ch.Metadata["source_type"] != "pdf" {
			t.Errorf("chunk %d metadata = %v", i, ch.Metadata)
		}
	}
	if chunks[1].Content != "Second paragraph." {
		t.Errorf("chunk 1 content = %q", chunks[1].Content)
	}
}

func TestSimpleChunkerWindowsLongParagraphs(t *testing.T) {
	c := NewSimpleChunker(WithChunkSize(100), WithOverlap(20))
	long := strings.Repeat("abcdefghij", 35) // 350 chars, no separator
	doc := document.Document{ID: "doc-1", Content: long}

	chunks, err := c.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 4 {
		t.Fatalf("chunks = %d, want windowing to produce at least 4", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch.Content) > 100 {
			t.Errorf("chunk %d length = %d, exceeds size", i, len(ch.Content))
		}
	}
	// consecutive windows share the overlap region
	first := chunks[0].Content
	second := chunks[1].Content
	if !strings.HasPrefix(second, first[len(first)-20:]) {
		t.Error("second chunk does not start with overlap of first")
	}
}

func TestSimpleChunkerSkipsBlankParts(t *testing.T) {
	c := NewSimpleChunker()
	doc := document.Document{ID: "doc-1", Content: "Only part.\n\n   \n\n"}

	chunks, err := c.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Content != "Only part." {
		t.Errorf("content = %q", chunks[0].Content)
	}
}

func TestSimpleChunkerAssignsDocumentID(t *testing.T) {
	c := NewSimpleChunker()
	doc := document.Document{Content: "anonymous content"}

	chunks, err := c.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if chunks[0].DocumentID == "" {
		t.Error("document id not assigned")
	}
}

func TestSimpleChunkerClampsOverlapBelowSize(t *testing.T) {
	// overlap >= size would stop the window from advancing
	c := NewSimpleChunker(WithChunkSize(10), WithOverlap(10))
	doc := document.Document{ID: "doc-1", Content: strings.Repeat("x", 100)}

	chunks, err := c.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	for i, ch := range chunks {
		if len(ch.Content) > 10 {
			t.Errorf("chunk %d length = %d, exceeds size", i, len(ch.Content))
		}
	}
}

func TestSimpleChunkerMetadataCopyDisabled(t *testing.T) {
	c := NewSimpleChunker(WithMetadataCopy(false))
	doc := document.Document{ID: "doc-1", Content: "text", Metadata: map[string]any{"lang": "en"}}

	chunks, err := c.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if chunks[0].Metadata != nil {
		t.Errorf("metadata = %v, want nil", chunks[0].Metadata)
	}
}
