// Package progress tracks the state of long-running ingestion tasks so
// callers can poll while a document is being chunked and embedded.
package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/sweetpotato0/docarag/errors"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task records the progress of one ingestion job.
type Task struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	Status          Status    `json:"status"`
	ChunksProcessed int       `json:"chunks_processed"`
	ChunksTotal     int       `json:"chunks_total"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store persists task state.
type Store interface {
	Put(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context) ([]*Task, error)
	Delete(ctx context.Context, id string) error
}

// Tracker is the convenience layer ingestion code talks to.
type Tracker struct {
	store Store
}

// NewTracker wraps a store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Start registers a new processing task.
func (t *Tracker) Start(ctx context.Context, id, documentID, filename string) (*Task, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: task id is empty", apperrors.ErrInvalidInput)
	}
	now := time.Now().UTC()
	task := &Task{
		ID:         id,
		DocumentID: documentID,
		Filename:   filename,
		Status:     StatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.store.Put(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Update records chunk progress for a running task.
func (t *Tracker) Update(ctx context.Context, id string, processed, total int) error {
	return t.mutate(ctx, id, func(task *Task) {
		task.ChunksProcessed = processed
		task.ChunksTotal = total
	})
}

// Complete marks a task finished.
func (t *Tracker) Complete(ctx context.Context, id string) error {
	return t.mutate(ctx, id, func(task *Task) {
		task.Status = StatusCompleted
		if task.ChunksTotal > 0 {
			task.ChunksProcessed = task.ChunksTotal
		}
	})
}

// Fail marks a task failed with the given reason.
func (t *Tracker) Fail(ctx context.Context, id string, reason error) error {
	return t.mutate(ctx, id, func(task *Task) {
		task.Status = StatusFailed
		if reason != nil {
			task.Error = reason.Error()
		}
	})
}

// Get returns the current state of a task.
func (t *Tracker) Get(ctx context.Context, id string) (*Task, error) {
	return t.store.Get(ctx, id)
}

// List returns all known tasks ordered by creation time.
func (t *Tracker) List(ctx context.Context) ([]*Task, error) {
	return t.store.List(ctx)
}

func (t *Tracker) mutate(ctx context.Context, id string, apply func(*Task)) error {
	task, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	apply(task)
	task.UpdatedAt = time.Now().UTC()
	return t.store.Put(ctx, task)
}

// MemoryStore keeps tasks in process memory, for tests and single-node use.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]Task)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, task *Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task must have an id", apperrors.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, apperrors.ErrNotFound)
	}
	out := task
	return &out, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		t := task
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, apperrors.ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}
