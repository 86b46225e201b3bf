package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/digestai/digestai/store"
)

// MemoryCheckpointStore keeps checkpoints in process memory.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint
	threads     map[string][]string
}

var _ store.CheckpointStore = (*MemoryCheckpointStore)(nil)

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]*store.Checkpoint),
		threads:     make(map[string][]string),
	}
}

// Save stores a checkpoint
func (m *MemoryCheckpointStore) Save(_ context.Context, checkpoint *store.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, exists := m.checkpoints[checkpoint.ID]
	if exists && old.ThreadID != checkpoint.ThreadID {
		m.unindex(old.ThreadID, old.ID)
		exists = false
	}
	if !exists {
		m.threads[checkpoint.ThreadID] = append(m.threads[checkpoint.ThreadID], checkpoint.ID)
	}

	cp := *checkpoint
	m.checkpoints[checkpoint.ID] = &cp
	return nil
}

// Load retrieves a checkpoint by ID
func (m *MemoryCheckpointStore) Load(_ context.Context, checkpointID string) (*store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[checkpointID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrCheckpointNotFound, checkpointID)
	}
	out := *cp
	return &out, nil
}

// List returns all checkpoints for a thread ordered by version
func (m *MemoryCheckpointStore) List(_ context.Context, threadID string) ([]*store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.threads[threadID]
	result := make([]*store.Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp := *m.checkpoints[id]
		result = append(result, &cp)
	}
	store.SortByVersion(result)
	return result, nil
}

// GetLatestByThread returns the newest checkpoint of a thread.
func (m *MemoryCheckpointStore) GetLatestByThread(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	list, err := m.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: thread %s", store.ErrCheckpointNotFound, threadID)
	}
	return list[len(list)-1], nil
}

// Delete removes a checkpoint
func (m *MemoryCheckpointStore) Delete(_ context.Context, checkpointID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, ok := m.checkpoints[checkpointID]
	if !ok {
		return nil
	}
	delete(m.checkpoints, checkpointID)
	m.unindex(cp.ThreadID, checkpointID)
	return nil
}

// Clear removes all checkpoints for a thread
func (m *MemoryCheckpointStore) Clear(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.threads[threadID] {
		delete(m.checkpoints, id)
	}
	delete(m.threads, threadID)
	return nil
}

func (m *MemoryCheckpointStore) unindex(threadID, id string) {
	ids := m.threads[threadID]
	for i, existing := range ids {
		if existing == id {
			m.threads[threadID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(m.threads[threadID]) == 0 {
		delete(m.threads, threadID)
	}
}
