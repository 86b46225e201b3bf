package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist for the user.
var ErrNotFound = errors.New("history entry not found")

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Record is one persisted run.
type Record struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Task        string          `json:"task"`
	Progress    json.RawMessage `json:"progress"`
	Result      string          `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	RunID       string          `json:"run_id,omitempty"`
	LiveViewURL string          `json:"live_view_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	GIFContent  string          `json:"gif_content,omitempty"`
}

// Page is one page of a user's history, newest first.
type Page struct {
	Data  []*Record `json:"data"`
	Total int       `json:"total"`
}

// Store persists run records.
type Store interface {
	// Save stores the record and returns its ID.
	Save(ctx context.Context, record *Record) (string, error)
	// List returns a page of the user's records without GIF content.
	List(ctx context.Context, userID string, limit, offset int) (*Page, error)
	// Get returns a single record including its GIF content.
	Get(ctx context.Context, userID, id string) (*Record, error)
	// Delete removes a record owned by the user.
	Delete(ctx context.Context, userID, id string) error
}

// prepare fills the ID and timestamp of a record about to be saved. The run
// ID doubles as the record ID so clients can look a run up by either.
func prepare(record *Record) {
	if record.ID == "" {
		record.ID = record.RunID
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if len(record.Progress) == 0 {
		record.Progress = json.RawMessage("[]")
	}
}

// normalizePage clamps pagination parameters.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	return limit, max(offset, 0)
}
