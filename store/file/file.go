package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/digestai/digestai/store"
)

// FileCheckpointStore writes each checkpoint as a JSON document under
// <root>/<thread>/<checkpoint>.json.
type FileCheckpointStore struct {
	root string
	mu   sync.RWMutex
}

var _ store.CheckpointStore = (*FileCheckpointStore)(nil)

// NewFileCheckpointStore creates the root directory if needed.
func NewFileCheckpointStore(root string) (*FileCheckpointStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileCheckpointStore{root: root}, nil
}

func (s *FileCheckpointStore) threadDir(threadID string) string {
	return filepath.Join(s.root, url.PathEscape(threadID))
}

func (s *FileCheckpointStore) checkpointPath(threadID, id string) string {
	return filepath.Join(s.threadDir(threadID), url.PathEscape(id)+".json")
}

// Save stores a checkpoint
func (s *FileCheckpointStore) Save(_ context.Context, checkpoint *store.Checkpoint) error {
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, err := s.find(checkpoint.ID); err == nil && prev != s.checkpointPath(checkpoint.ThreadID, checkpoint.ID) {
		_ = os.Remove(prev)
	}

	if err := os.MkdirAll(s.threadDir(checkpoint.ThreadID), 0o755); err != nil {
		return fmt.Errorf("failed to create thread directory: %w", err)
	}

	path := s.checkpointPath(checkpoint.ThreadID, checkpoint.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint by ID
func (s *FileCheckpointStore) Load(_ context.Context, checkpointID string) (*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.find(checkpointID)
	if err != nil {
		return nil, err
	}
	return readCheckpoint(path)
}

// List returns all checkpoints for a thread ordered by version
func (s *FileCheckpointStore) List(_ context.Context, threadID string) ([]*store.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.threadDir(threadID))
	if errors.Is(err, os.ErrNotExist) {
		return []*store.Checkpoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thread directory: %w", err)
	}

	result := make([]*store.Checkpoint, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		cp, err := readCheckpoint(filepath.Join(s.threadDir(threadID), e.Name()))
		if err != nil {
			return nil, err
		}
		result = append(result, cp)
	}
	store.SortByVersion(result)
	return result, nil
}

// GetLatestByThread returns the newest checkpoint of a thread.
func (s *FileCheckpointStore) GetLatestByThread(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	list, err := s.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: thread %s", store.ErrCheckpointNotFound, threadID)
	}
	return list[len(list)-1], nil
}

// Delete removes a checkpoint
func (s *FileCheckpointStore) Delete(_ context.Context, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.find(checkpointID)
	if errors.Is(err, store.ErrCheckpointNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Clear removes all checkpoints for a thread
func (s *FileCheckpointStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.threadDir(threadID)); err != nil {
		return fmt.Errorf("failed to clear thread: %w", err)
	}
	return nil
}

func (s *FileCheckpointStore) find(checkpointID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "*", url.PathEscape(checkpointID)+".json"))
	if err != nil {
		return "", fmt.Errorf("failed to search checkpoints: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", store.ErrCheckpointNotFound, checkpointID)
	}
	return matches[0], nil
}

func readCheckpoint(path string) (*store.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var cp store.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", filepath.Base(path), err)
	}
	return &cp, nil
}
