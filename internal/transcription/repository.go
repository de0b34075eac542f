package transcription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for transcription data operations.
type Repository interface {
	// Create stores a new transcription, generating an ID and creation time
	// when absent.
	Create(ctx context.Context, t *Transcription) error

	// List returns all transcriptions ordered by creation time descending.
	List(ctx context.Context) ([]Transcription, error)

	// GetByID retrieves a transcription by its UUID.
	GetByID(ctx context.Context, id string) (*Transcription, error)

	// Delete removes a transcription by ID. Child activity logs must be
	// removed first; the pipeline owns that ordering.
	Delete(ctx context.Context, id string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu             sync.RWMutex
	transcriptions map[string]*Transcription
	order          []string
}

// NewInMemoryRepository creates a new in-memory transcription repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		transcriptions: make(map[string]*Transcription),
	}
}

// Create stores a new transcription.
func (r *InMemoryRepository) Create(ctx context.Context, t *Transcription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if _, exists := r.transcriptions[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	dup := *t
	r.transcriptions[t.ID] = &dup
	return nil
}

// List returns all transcriptions ordered by creation time descending.
func (r *InMemoryRepository) List(ctx context.Context) ([]Transcription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Transcription, 0, len(r.order))
	for _, id := range r.order {
		if t, ok := r.transcriptions[id]; ok {
			result = append(result, *t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// GetByID retrieves a transcription by its UUID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Transcription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transcriptions[id]
	if !ok {
		return nil, ErrTranscriptionNotFound
	}
	dup := *t
	return &dup, nil
}

// Delete removes a transcription by ID.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transcriptions[id]; !ok {
		return ErrTranscriptionNotFound
	}
	delete(r.transcriptions, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
