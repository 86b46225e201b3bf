package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Save stores a copy of the record.
func (m *MemoryStore) Save(_ context.Context, record *Record) (string, error) {
	if record == nil {
		return "", errors.New("record is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prepare(record)
	if _, exists := m.records[record.ID]; exists {
		return "", fmt.Errorf("history entry %s already exists", record.ID)
	}
	r := *record
	m.records[r.ID] = &r
	return r.ID, nil
}

// List returns the user's records newest first.
func (m *MemoryStore) List(_ context.Context, userID string, limit, offset int) (*Page, error) {
	limit, offset = normalizePage(limit, offset)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var owned []*Record
	for _, r := range m.records {
		if r.UserID == userID {
			owned = append(owned, r)
		}
	}
	slices.SortFunc(owned, func(a, b *Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	page := &Page{Data: []*Record{}, Total: len(owned)}
	if offset >= len(owned) {
		return page, nil
	}
	for _, r := range owned[offset:min(offset+limit, len(owned))] {
		out := *r
		out.GIFContent = ""
		page.Data = append(page.Data, &out)
	}
	return page, nil
}

// Get returns a copy of the record.
func (m *MemoryStore) Get(_ context.Context, userID, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok || r.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *r
	return &out, nil
}

// Delete removes the record.
func (m *MemoryStore) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok || r.UserID != userID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.records, id)
	return nil
}
