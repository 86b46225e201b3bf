package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digestai/digestai/store"
	"github.com/digestai/digestai/store/file"
	"github.com/digestai/digestai/store/memory"
)

type docState struct {
	Topic     string   `json:"topic"`
	Draft     string   `json:"draft"`
	Feedback  string   `json:"feedback"`
	Published bool     `json:"published"`
	Revisions int      `json:"revisions"`
	Log       []string `json:"log"`
}

func mergeDoc(cur, upd docState) (docState, error) {
	if upd.Topic != "" {
		cur.Topic = upd.Topic
	}
	if upd.Draft != "" {
		cur.Draft = upd.Draft
	}
	if upd.Feedback != "" {
		cur.Feedback = upd.Feedback
	}
	cur.Published = cur.Published || upd.Published
	cur.Revisions += upd.Revisions
	cur.Log = slices.Concat(cur.Log, upd.Log)
	return cur, nil
}

func reviewGraph() *StateGraph[docState] {
	g := NewStateGraph[docState]()
	g.SetSchema(NewStructSchema(docState{}, mergeDoc))

	g.AddNode("draft", "write a draft", func(_ context.Context, s docState) (docState, error) {
		return docState{
			Draft:     fmt.Sprintf("draft %d of %s", s.Revisions+1, s.Topic),
			Revisions: 1,
			Log:       []string{"draft"},
		}, nil
	})
	g.AddNode("feedback", "wait for a reviewer", func(context.Context, docState) (docState, error) {
		return docState{}, nil
	})
	g.AddNode("publish", "publish the draft", func(context.Context, docState) (docState, error) {
		return docState{Published: true, Log: []string{"publish"}}, nil
	})

	g.SetEntryPoint("draft")
	g.AddEdge("draft", "feedback")
	g.AddConditionalEdge("feedback", func(_ context.Context, s docState) string {
		if s.Feedback == "" || s.Feedback == "approve" {
			return "publish"
		}
		return "draft"
	}, "publish", "draft")
	g.AddEdge("publish", END)
	return g
}

func checkpointStores(t *testing.T) map[string]store.CheckpointStore {
	fileStore, err := file.NewFileCheckpointStore(t.TempDir())
	require.NoError(t, err)
	return map[string]store.CheckpointStore{
		"memory": memory.NewMemoryCheckpointStore(),
		"file":   fileStore,
	}
}

func TestCheckpointable_HumanInTheLoop(t *testing.T) {
	for name, st := range checkpointStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			runnable, err := reviewGraph().CompileCheckpointable(CheckpointConfig{Store: st, AutoSave: true})
			require.NoError(t, err)

			cfg := WithThreadID("thread-1")
			cfg.InterruptBefore = []string{"feedback"}

			res, err := runnable.InvokeWithConfig(ctx, docState{Topic: "go"}, cfg)
			var interrupt *GraphInterrupt
			require.ErrorAs(t, err, &interrupt)
			assert.Equal(t, "feedback", interrupt.Node)
			assert.Equal(t, "draft 1 of go", res.Draft)

			snap, err := runnable.GetState(ctx, cfg)
			require.NoError(t, err)
			assert.Equal(t, []string{"feedback"}, snap.Next)
			assert.Equal(t, "draft 1 of go", snap.Values.Draft)

			// Ask for a revision
			updated, err := runnable.UpdateState(ctx, cfg, "feedback", docState{Feedback: "more detail"})
			require.NoError(t, err)
			assert.Equal(t, "thread-1", updated.ThreadID())
			assert.NotEmpty(t, updated.CheckpointID())

			snap, err = runnable.GetState(ctx, cfg)
			require.NoError(t, err)
			assert.Equal(t, []string{"draft"}, snap.Next)

			res, err = runnable.InvokeWithConfig(ctx, docState{}, cfg)
			require.ErrorAs(t, err, &interrupt)
			assert.Equal(t, "draft 2 of go", res.Draft)

			// Approve
			_, err = runnable.UpdateState(ctx, cfg, "feedback", docState{Feedback: "approve"})
			require.NoError(t, err)

			res, err = runnable.InvokeWithConfig(ctx, docState{}, cfg)
			require.NoError(t, err)
			assert.True(t, res.Published)
			assert.Equal(t, []string{"draft", "draft", "publish"}, res.Log)

			snap, err = runnable.GetState(ctx, cfg)
			require.NoError(t, err)
			assert.Empty(t, snap.Next)

			// A finished thread returns its state
			again, err := runnable.InvokeWithConfig(ctx, docState{}, cfg)
			require.NoError(t, err)
			assert.Equal(t, res, again)

			checkpoints, err := runnable.ListCheckpoints(ctx, cfg)
			require.NoError(t, err)
			require.NotEmpty(t, checkpoints)
			for i := 1; i < len(checkpoints); i++ {
				assert.Greater(t, checkpoints[i].Version, checkpoints[i-1].Version)
			}

			// Time travel to the input checkpoint
			first, err := runnable.GetState(ctx, &Config{Configurable: map[string]any{"checkpoint_id": checkpoints[0].ID}})
			require.NoError(t, err)
			assert.Equal(t, START, checkpoints[0].NodeName)
			assert.Equal(t, []string{"draft"}, first.Next)

			require.NoError(t, runnable.ClearCheckpoints(ctx, cfg))
			_, err = runnable.GetState(ctx, cfg)
			assert.ErrorIs(t, err, store.ErrCheckpointNotFound)
		})
	}
}

func TestCheckpointable_ResumeSendFanOut(t *testing.T) {
	for name, st := range checkpointStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			runnable, err := sendGraph(nil).CompileCheckpointable(CheckpointConfig{Store: st, AutoSave: true})
			require.NoError(t, err)

			cfg := WithThreadID("fan")
			cfg.InterruptBefore = []string{"work"}

			_, err = runnable.InvokeWithConfig(ctx, fanState{Items: []string{"a", "b"}}, cfg)
			var interrupt *GraphInterrupt
			require.ErrorAs(t, err, &interrupt)
			assert.Equal(t, []string{"work", "work"}, interrupt.NextNodes)

			res, err := runnable.InvokeWithConfig(ctx, fanState{}, cfg)
			require.NoError(t, err)
			assert.Equal(t, []string{"A", "B"}, res.Results)
		})
	}
}

func TestCheckpointable_NewThreadAndPruning(t *testing.T) {
	ctx := context.Background()
	st := memory.NewMemoryCheckpointStore()
	runnable, err := linearGraph().CompileCheckpointable(CheckpointConfig{Store: st, AutoSave: true, MaxCheckpoints: 2})
	require.NoError(t, err)

	res, err := runnable.Invoke(ctx, map[string]any{"value": ""})
	require.NoError(t, err)
	assert.Equal(t, "ABC", res["value"])

	cfg := WithThreadID("pruned")
	_, err = runnable.InvokeWithConfig(ctx, map[string]any{"value": ""}, cfg)
	require.NoError(t, err)

	checkpoints, err := runnable.ListCheckpoints(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)
	assert.True(t, checkpoints[1].Done())
}

func TestCheckpointable_UpdateStateErrors(t *testing.T) {
	ctx := context.Background()
	runnable, err := reviewGraph().CompileCheckpointable(DefaultCheckpointConfig())
	require.NoError(t, err)

	_, err = runnable.UpdateState(ctx, WithThreadID("t"), "nope", docState{})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = runnable.UpdateState(ctx, &Config{}, "draft", docState{})
	assert.Error(t, err)

	_, err = runnable.GetState(ctx, WithThreadID("unknown"))
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)

	// Updating a thread that never ran starts from the schema's initial state
	cfg, err := runnable.UpdateState(ctx, WithThreadID("seeded"), "", docState{Topic: "seeded"})
	require.NoError(t, err)
	snap, err := runnable.GetState(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "seeded", snap.Values.Topic)
	assert.Equal(t, []string{"draft"}, snap.Next)
}

type failingStore struct {
	*memory.MemoryCheckpointStore
}

func (failingStore) Save(context.Context, *store.Checkpoint) error {
	return errors.New("disk full")
}

func TestCheckpointable_SaveFailure(t *testing.T) {
	runnable, err := linearGraph().CompileCheckpointable(CheckpointConfig{
		Store:    failingStore{memory.NewMemoryCheckpointStore()},
		AutoSave: true,
	})
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), map[string]any{"value": ""})
	assert.ErrorContains(t, err, "failed to save checkpoint: disk full")
}

func TestDecodeState(t *testing.T) {
	s, err := decodeState[docState](map[string]any{"topic": "x", "revisions": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, docState{Topic: "x", Revisions: 2}, s)

	same, err := decodeState[docState](docState{Draft: "d"})
	require.NoError(t, err)
	assert.Equal(t, "d", same.Draft)

	_, err = decodeState[docState]("not an object")
	assert.Error(t, err)
}
