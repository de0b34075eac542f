package activitylog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Repository defines the interface for activity log data operations.
type Repository interface {
	// List returns all logs ordered by timestamp descending.
	List(ctx context.Context) ([]ActivityLog, error)

	// GetByID retrieves a log by its UUID.
	GetByID(ctx context.Context, id string) (*ActivityLog, error)

	// Insert creates a new log.
	Insert(ctx context.Context, log *ActivityLog) error

	// InsertBatch creates all logs atomically. Either every log is stored
	// or none are.
	InsertBatch(ctx context.Context, logs []ActivityLog) error

	// Update replaces an existing log.
	Update(ctx context.Context, log *ActivityLog) error

	// Delete removes a log by ID.
	Delete(ctx context.Context, id string) error

	// DeleteByTranscription removes all logs that reference the given
	// transcription. Returns the number of logs removed.
	DeleteByTranscription(ctx context.Context, transcriptionID string) (int64, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	logs  map[string]*ActivityLog
	order []string // insertion order, for stable listing of equal timestamps
}

// NewInMemoryRepository creates a new in-memory activity log repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		logs: make(map[string]*ActivityLog),
	}
}

// copyLog returns a deep copy so callers cannot mutate stored state.
func copyLog(log *ActivityLog) *ActivityLog {
	dup := *log
	if log.Media != nil {
		media := *log.Media
		dup.Media = &media
	}
	if log.Coordinates != nil {
		coords := *log.Coordinates
		dup.Coordinates = &coords
	}
	if log.TranscriptionID != nil {
		tid := *log.TranscriptionID
		dup.TranscriptionID = &tid
	}
	return &dup
}

// List returns all logs ordered by timestamp descending.
func (r *InMemoryRepository) List(ctx context.Context) ([]ActivityLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ActivityLog, 0, len(r.order))
	for _, id := range r.order {
		if log, ok := r.logs[id]; ok {
			result = append(result, *copyLog(log))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

// GetByID retrieves a log by its UUID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*ActivityLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log, ok := r.logs[id]
	if !ok {
		return nil, ErrLogNotFound
	}
	return copyLog(log), nil
}

// Insert creates a new log.
func (r *InMemoryRepository) Insert(ctx context.Context, log *ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.insertLocked(log)
	return nil
}

// InsertBatch creates all logs atomically.
func (r *InMemoryRepository) InsertBatch(ctx context.Context, logs []ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range logs {
		r.insertLocked(&logs[i])
	}
	return nil
}

func (r *InMemoryRepository) insertLocked(log *ActivityLog) {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if _, exists := r.logs[log.ID]; !exists {
		r.order = append(r.order, log.ID)
	}
	r.logs[log.ID] = copyLog(log)
}

// Update replaces an existing log.
func (r *InMemoryRepository) Update(ctx context.Context, log *ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.logs[log.ID]; !ok {
		return ErrLogNotFound
	}
	r.logs[log.ID] = copyLog(log)
	return nil
}

// Delete removes a log by ID.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.logs[id]; !ok {
		return ErrLogNotFound
	}
	delete(r.logs, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteByTranscription removes all logs that reference the given transcription.
func (r *InMemoryRepository) DeleteByTranscription(ctx context.Context, transcriptionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	kept := r.order[:0]
	for _, id := range r.order {
		log := r.logs[id]
		if log != nil && log.TranscriptionID != nil && *log.TranscriptionID == transcriptionID {
			delete(r.logs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed, nil
}
