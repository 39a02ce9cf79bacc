// Package registry keeps the catalog of indexed documents: what was
// ingested, from where, and how many chunks it produced.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/sweetpotato0/docarag/errors"
	"github.com/sweetpotato0/docarag/rag/document"
)

// Record is the catalog entry for one indexed document.
type Record struct {
	DocumentID string              `json:"document_id"`
	Filename   string              `json:"filename,omitempty"`
	Title      string              `json:"title,omitempty"`
	SourceType document.SourceType `json:"source_type,omitempty"`
	Chunks     int                 `json:"chunks"`
	Metadata   map[string]any      `json:"metadata,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Registry persists document records.
type Registry interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, documentID string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Delete(ctx context.Context, documentID string) error
}

// MemoryRegistry keeps records in process memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[string]Record)}
}

// Save implements Registry. Saving an existing document updates it in place
// and preserves the original creation time.
func (r *MemoryRegistry) Save(_ context.Context, rec *Record) error {
	if rec == nil || rec.DocumentID == "" {
		return fmt.Errorf("%w: record must have a document id", apperrors.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := *rec
	if existing, ok := r.records[rec.DocumentID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.records[rec.DocumentID] = stored
	return nil
}

// Get implements Registry.
func (r *MemoryRegistry) Get(_ context.Context, documentID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, apperrors.ErrNotFound)
	}
	out := rec
	return &out, nil
}

// List implements Registry, newest first.
func (r *MemoryRegistry) List(_ context.Context) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		rc := rec
		out = append(out, &rc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete implements Registry.
func (r *MemoryRegistry) Delete(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[documentID]; !ok {
		return fmt.Errorf("document %s: %w", documentID, apperrors.ErrNotFound)
	}
	delete(r.records, documentID)
	return nil
}
