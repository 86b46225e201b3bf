package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Columns lists the column order shared by the SQL backends.
var Columns = []string{"id", "thread_id", "node_name", "completed", "next", "state", "metadata", "timestamp", "version"}

// Row is the column form of a Checkpoint: identity and ordering fields as
// scalars, everything else as JSON documents.
type Row struct {
	ID        string
	ThreadID  string
	NodeName  string
	Completed []byte
	Next      []byte
	State     []byte
	Metadata  []byte
	Timestamp time.Time
	Version   int
}

// ToRow encodes cp.
func ToRow(cp *Checkpoint) (Row, error) {
	r := Row{
		ID:        cp.ID,
		ThreadID:  cp.ThreadID,
		NodeName:  cp.NodeName,
		Timestamp: cp.Timestamp,
		Version:   cp.Version,
	}
	var err error
	if r.State, err = json.Marshal(cp.State); err != nil {
		return Row{}, fmt.Errorf("failed to marshal state: %w", err)
	}
	if r.Metadata, err = json.Marshal(cp.Metadata); err != nil {
		return Row{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	r.Completed, _ = json.Marshal(cp.Completed)
	r.Next, _ = json.Marshal(cp.Next)
	return r, nil
}

// Args returns the values in Columns order.
func (r *Row) Args() []any {
	return []any{r.ID, r.ThreadID, r.NodeName, r.Completed, r.Next, r.State, r.Metadata, r.Timestamp, r.Version}
}

// Dest returns scan destinations in Columns order. NULL JSON columns scan
// to nil.
func (r *Row) Dest() []any {
	return []any{&r.ID, &r.ThreadID, &r.NodeName, &r.Completed, &r.Next, &r.State, &r.Metadata, &r.Timestamp, &r.Version}
}

// Checkpoint decodes the row.
func (r *Row) Checkpoint() (*Checkpoint, error) {
	cp := &Checkpoint{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		NodeName:  r.NodeName,
		Timestamp: r.Timestamp,
		Version:   r.Version,
	}
	if err := json.Unmarshal(r.State, &cp.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	for _, f := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"completed", r.Completed, &cp.Completed},
		{"next", r.Next, &cp.Next},
		{"metadata", r.Metadata, &cp.Metadata},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}
	return cp, nil
}

// UpsertQuery builds an INSERT ... ON CONFLICT (id) DO UPDATE statement
// for table. placeholder renders the n-th bind parameter, 1-based.
func UpsertQuery(table string, placeholder func(n int) string) string {
	params := make([]string, len(Columns))
	updates := make([]string, 0, len(Columns)-1)
	for i, col := range Columns {
		params[i] = placeholder(i + 1)
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		table, strings.Join(Columns, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}

// SelectQuery builds a SELECT of all columns from table with the given
// WHERE/ORDER/LIMIT tail.
func SelectQuery(table, tail string) string {
	return fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(Columns, ", "), table, tail)
}
