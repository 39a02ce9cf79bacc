package vector

import (
	"context"
	"math"
)

// Embedding represents a stored chunk vector together with the source
// metadata used for scope-filtered retrieval.
type Embedding struct {
	ID         string
	Vector     []float32
	Text       string
	DocumentID string
	SourceType string // pdf, docx or html
	ChunkIndex int
	Filename   string
}

// Filter narrows similarity search to a single document and/or source type.
// Zero-value fields mean unrestricted.
type Filter struct {
	DocumentID string
	SourceType string
}

// Empty reports whether the filter imposes no restriction.
func (f *Filter) Empty() bool {
	return f == nil || (f.DocumentID == "" && f.SourceType == "")
}

// Matches reports whether the embedding satisfies the filter.
func (f *Filter) Matches(e *Embedding) bool {
	if f.Empty() || e == nil {
		return e != nil
	}
	if f.DocumentID != "" && e.DocumentID != f.DocumentID {
		return false
	}
	if f.SourceType != "" && e.SourceType != f.SourceType {
		return false
	}
	return true
}

// Match is a similarity search hit.
type Match struct {
	Embedding *Embedding
	Score     float32
}

// VectorStore defines the interface for vector storage and similarity search
type VectorStore interface {
	// AddEmbedding adds a new embedding to the store
	AddEmbedding(ctx context.Context, embedding *Embedding) error

	// Search finds embeddings similar to the query vector, optionally
	// restricted by filter, ordered by descending score. An empty result
	// is not an error.
	Search(ctx context.Context, queryVector []float32, filter *Filter, topK int) ([]Match, error)

	// DeleteByDocument removes all embeddings belonging to a document and
	// returns how many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// GetEmbedding retrieves a specific embedding by ID
	GetEmbedding(ctx context.Context, id string) (*Embedding, error)

	// Clear removes all embeddings
	Clear(ctx context.Context) error

	// Count returns the number of embeddings
	Count(ctx context.Context) (int, error)
}

// Embedder defines the interface for creating embeddings from text
type Embedder interface {
	// Embed converts text to a vector embedding
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to embeddings
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension return number of embedding dimensions
	Dimension() int
}

// CosineSimilarity calculates the cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB))+1e-8)
}

// Normalize scales the vector to unit length (L2 norm).
func Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
