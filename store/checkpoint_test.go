package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortByVersion(t *testing.T) {
	now := time.Now()
	cps := []*Checkpoint{
		{ID: "c", Version: 3, Timestamp: now},
		{ID: "a", Version: 1, Timestamp: now},
		{ID: "b2", Version: 2, Timestamp: now.Add(time.Second)},
		{ID: "b1", Version: 2, Timestamp: now},
	}

	SortByVersion(cps)

	ids := []string{}
	for _, cp := range cps {
		ids = append(ids, cp.ID)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
}

func TestLatest(t *testing.T) {
	assert.Nil(t, Latest(nil))

	now := time.Now()
	latest := Latest([]*Checkpoint{
		{ID: "a", Version: 1, Timestamp: now},
		{ID: "c", Version: 3, Timestamp: now},
		{ID: "b", Version: 2, Timestamp: now},
	})
	assert.Equal(t, "c", latest.ID)
}

func TestCheckpointDone(t *testing.T) {
	assert.True(t, (&Checkpoint{}).Done())
	assert.False(t, (&Checkpoint{Next: []string{"generate_template"}}).Done())
}
