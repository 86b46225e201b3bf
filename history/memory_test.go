package history

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Save(ctx, &Record{
		UserID:     "user-1",
		Task:       "find flights",
		RunID:      "run-1",
		Result:     "done",
		GIFContent: "R0lGOD",
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", id, "run id doubles as record id")

	r, err := s.Get(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, "find flights", r.Task)
	assert.Equal(t, "R0lGOD", r.GIFContent)
	assert.JSONEq(t, "[]", string(r.Progress))
	assert.False(t, r.CreatedAt.IsZero())

	_, err = s.Get(ctx, "user-2", id)
	assert.ErrorIs(t, err, ErrNotFound, "records are scoped to their owner")

	_, err = s.Save(ctx, &Record{UserID: "user-1", RunID: "run-1"})
	assert.Error(t, err)

	id2, err := s.Save(ctx, &Record{UserID: "user-1", Task: "other"})
	require.NoError(t, err)
	assert.NotEmpty(t, id2)
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 12 {
		_, err := s.Save(ctx, &Record{
			ID:         fmt.Sprintf("r%02d", i),
			UserID:     "user-1",
			Task:       fmt.Sprintf("task %d", i),
			Progress:   json.RawMessage(`[{"type":"start"}]`),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			GIFContent: "gif",
		})
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, &Record{UserID: "user-2", Task: "foreign"})
	require.NoError(t, err)

	page, err := s.List(ctx, "user-1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	require.Len(t, page.Data, DefaultLimit)
	assert.Equal(t, "r11", page.Data[0].ID, "newest first")
	assert.Empty(t, page.Data[0].GIFContent, "list omits recordings")

	page, err = s.List(ctx, "user-1", 5, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "r01", page.Data[0].ID)
	assert.Equal(t, "r00", page.Data[1].ID)

	page, err = s.List(ctx, "user-1", 5, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 12, page.Total)

	page, err = s.List(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Data)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Save(ctx, &Record{UserID: "user-1", Task: "t"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, "user-2", id), ErrNotFound)
	require.NoError(t, s.Delete(ctx, "user-1", id))
	assert.ErrorIs(t, s.Delete(ctx, "user-1", id), ErrNotFound)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultLimit, 0},
		{-3, -1, DefaultLimit, 0},
		{25, 5, 25, 5},
		{1000, 0, MaxLimit, 0},
	}
	for _, tt := range tests {
		limit, offset := normalizePage(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, limit)
		assert.Equal(t, tt.wantOffset, offset)
	}
}
