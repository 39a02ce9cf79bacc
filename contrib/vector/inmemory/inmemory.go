package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sweetpotato0/docarag/errors"
	"github.com/sweetpotato0/docarag/vector"
)

// InMemoryVectorStore implements VectorStore using in-memory storage
type InMemoryVectorStore struct {
	embeddings map[string]*vector.Embedding
	mu         sync.RWMutex
}

// NewInMemoryVectorStore creates a new in-memory vector store
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{
		embeddings: make(map[string]*vector.Embedding),
	}
}

// AddEmbedding adds a new embedding to the store
func (s *InMemoryVectorStore) AddEmbedding(ctx context.Context, embedding *vector.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if embedding == nil {
		return fmt.Errorf("embedding cannot be nil: %w", errors.ErrInvalidInput)
	}
	if embedding.ID == "" {
		return fmt.Errorf("embedding ID cannot be empty: %w", errors.ErrInvalidInput)
	}
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("embedding vector cannot be empty: %w", errors.ErrInvalidInput)
	}

	s.embeddings[embedding.ID] = embedding
	return nil
}

// Search finds embeddings similar to the query vector, optionally restricted
// by filter. Results are ordered by descending cosine similarity; an empty
// result is valid when nothing matches the filter.
func (s *InMemoryVectorStore) Search(ctx context.Context, queryVector []float32, filter *vector.Filter, topK int) ([]vector.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty: %w", errors.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 10
	}

	matches := make([]vector.Match, 0, len(s.embeddings))
	for _, emb := range s.embeddings {
		if len(emb.Vector) != len(queryVector) {
			continue
		}
		if !filter.Matches(emb) {
			continue
		}
		matches = append(matches, vector.Match{
			Embedding: emb,
			Score:     vector.CosineSimilarity(queryVector, emb.Vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByDocument removes all embeddings belonging to the given document.
func (s *InMemoryVectorStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document ID cannot be empty: %w", errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, emb := range s.embeddings {
		if emb.DocumentID == documentID {
			delete(s.embeddings, id)
			removed++
		}
	}
	return removed, nil
}

// GetEmbedding retrieves a specific embedding by ID
func (s *InMemoryVectorStore) GetEmbedding(ctx context.Context, id string) (*vector.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, exists := s.embeddings[id]
	if !exists {
		return nil, errors.ErrNotFound
	}
	return emb, nil
}

// Clear removes all embeddings
func (s *InMemoryVectorStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.embeddings = make(map[string]*vector.Embedding)
	return nil
}

// Count returns the number of embeddings
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.embeddings), nil
}
