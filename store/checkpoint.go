package store

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrCheckpointNotFound is wrapped by every backend when a checkpoint ID or
// thread has nothing stored.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Checkpoint represents the graph state saved after a superstep.
type Checkpoint struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	// NodeName labels the step that produced this checkpoint.
	NodeName string `json:"node_name"`
	// Completed lists the nodes whose results are already merged into State.
	Completed []string `json:"completed,omitempty"`
	// Next lists the nodes scheduled to run after this checkpoint. Empty means
	// the run reached END.
	Next      []string       `json:"next,omitempty"`
	State     any            `json:"state"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
	Version   int            `json:"version"`
}

// Done reports whether the checkpoint was taken after the graph finished.
func (c *Checkpoint) Done() bool {
	return len(c.Next) == 0
}

// CheckpointStore defines the interface for checkpoint persistence
type CheckpointStore interface {
	// Save stores a checkpoint, replacing any checkpoint with the same ID
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load retrieves a checkpoint by ID
	Load(ctx context.Context, checkpointID string) (*Checkpoint, error)

	// List returns all checkpoints for a thread ordered by version
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)

	// Delete removes a checkpoint
	Delete(ctx context.Context, checkpointID string) error

	// Clear removes all checkpoints for a thread
	Clear(ctx context.Context, threadID string) error
}

// LatestGetter is implemented by stores that can fetch the newest checkpoint
// of a thread without listing the whole history.
type LatestGetter interface {
	GetLatestByThread(ctx context.Context, threadID string) (*Checkpoint, error)
}

// SortByVersion orders checkpoints oldest first. Ties fall back to timestamp.
func SortByVersion(checkpoints []*Checkpoint) {
	sort.SliceStable(checkpoints, func(i, j int) bool {
		if checkpoints[i].Version != checkpoints[j].Version {
			return checkpoints[i].Version < checkpoints[j].Version
		}
		return checkpoints[i].Timestamp.Before(checkpoints[j].Timestamp)
	})
}

// Latest returns the checkpoint with the highest version, or nil.
func Latest(checkpoints []*Checkpoint) *Checkpoint {
	var latest *Checkpoint
	for _, cp := range checkpoints {
		if latest == nil || cp.Version > latest.Version ||
			(cp.Version == latest.Version && cp.Timestamp.After(latest.Timestamp)) {
			latest = cp
		}
	}
	return latest
}
