package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/digestai/digestai/log"
	"github.com/digestai/digestai/store"
	"github.com/digestai/digestai/store/memory"
)

// CheckpointConfig configures checkpointing behavior
type CheckpointConfig struct {
	// Store is used to persist checkpoints
	Store store.CheckpointStore

	// AutoSave enables a checkpoint after every superstep
	AutoSave bool

	// MaxCheckpoints is the number of checkpoints kept per thread; 0 keeps all
	MaxCheckpoints int
}

// DefaultCheckpointConfig returns an in-memory, auto-saving configuration.
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Store:    memory.NewMemoryCheckpointStore(),
		AutoSave: true,
	}
}

// CheckpointListener saves a checkpoint for every finished superstep of a thread.
type CheckpointListener[S any] struct {
	NoOpCallbackHandler

	store          store.CheckpointStore
	threadID       string
	runID          string
	maxCheckpoints int

	mu      sync.Mutex
	version int
	err     error
}

// NewCheckpointListener creates a listener whose first checkpoint gets version+1.
func NewCheckpointListener[S any](st store.CheckpointStore, threadID string, version int, maxCheckpoints int) *CheckpointListener[S] {
	return &CheckpointListener[S]{
		store:          st,
		threadID:       threadID,
		runID:          uuid.NewString(),
		version:        version,
		maxCheckpoints: maxCheckpoints,
	}
}

// OnGraphStep implements GraphCallbackHandler.
func (cl *CheckpointListener[S]) OnGraphStep(ctx context.Context, step StepInfo) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.version++
	cp := &store.Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  cl.threadID,
		NodeName:  step.Node,
		Completed: step.Completed,
		Next:      step.Next,
		State:     step.State,
		Metadata: map[string]any{
			"source": "loop",
			"step":   step.Step,
			"run_id": cl.runID,
		},
		Timestamp: time.Now(),
		Version:   cl.version,
	}

	if err := cl.store.Save(ctx, cp); err != nil {
		log.Warn("checkpoint save failed for thread %s at %s: %v", cl.threadID, step.Node, err)
		cl.err = err
		return
	}

	if cl.maxCheckpoints > 0 {
		if err := pruneCheckpoints(ctx, cl.store, cl.threadID, cl.maxCheckpoints); err != nil {
			log.Warn("checkpoint pruning failed for thread %s: %v", cl.threadID, err)
		}
	}
}

// Err returns the last save error, if any.
func (cl *CheckpointListener[S]) Err() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.err
}

func pruneCheckpoints(ctx context.Context, st store.CheckpointStore, threadID string, keep int) error {
	checkpoints, err := st.List(ctx, threadID)
	if err != nil {
		return err
	}
	for len(checkpoints) > keep {
		if err := st.Delete(ctx, checkpoints[0].ID); err != nil {
			return err
		}
		checkpoints = checkpoints[1:]
	}
	return nil
}

// CheckpointableRunnable runs a graph with per-thread checkpoints and resumes
// interrupted threads.
type CheckpointableRunnable[S any] struct {
	runnable *StateRunnable[S]
	config   CheckpointConfig
}

// CompileCheckpointable compiles the graph with checkpointing.
func (g *StateGraph[S]) CompileCheckpointable(config CheckpointConfig) (*CheckpointableRunnable[S], error) {
	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return NewCheckpointableRunnable(runnable, config), nil
}

// NewCheckpointableRunnable wraps a compiled graph. A nil store falls back to memory.
func NewCheckpointableRunnable[S any](runnable *StateRunnable[S], config CheckpointConfig) *CheckpointableRunnable[S] {
	if config.Store == nil {
		config.Store = memory.NewMemoryCheckpointStore()
	}
	return &CheckpointableRunnable[S]{
		runnable: runnable,
		config:   config,
	}
}

// StateSnapshot is the persisted state of a thread.
type StateSnapshot[S any] struct {
	Values       S
	Next         []string
	Completed    []string
	Config       *Config
	Metadata     map[string]any
	CreatedAt    time.Time
	Version      int
	CheckpointID string
}

// Invoke runs the graph on a new thread.
func (cr *CheckpointableRunnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	return cr.InvokeWithConfig(ctx, initialState, nil)
}

// InvokeWithConfig runs the graph on the thread named by config. A new
// thread id is generated when none is set.
//
// When the thread has a checkpoint, the run resumes from it: the input is
// merged into the saved state and the tasks following the checkpoint's
// completed nodes are executed without InterruptBefore on that first step.
// A finished thread returns its state for a zero input and starts over from
// the entry point otherwise.
func (cr *CheckpointableRunnable[S]) InvokeWithConfig(ctx context.Context, input S, config *Config) (S, error) {
	var zero S

	config = config.clone()
	threadID := config.ThreadID()
	if threadID == "" {
		threadID = uuid.NewString()
		config.Configurable["thread_id"] = threadID
	}

	cp, err := cr.loadCheckpoint(ctx, config)
	if err != nil && !errors.Is(err, store.ErrCheckpointNotFound) {
		return zero, err
	}

	version := 0
	if latest, err := cr.latestCheckpoint(ctx, threadID); err == nil {
		version = latest.Version
	}

	listener := NewCheckpointListener[S](cr.config.Store, threadID, version, cr.config.MaxCheckpoints)
	if cr.config.AutoSave {
		config.Callbacks = append(config.Callbacks, listener)
	}

	var result S
	switch {
	case cp == nil:
		result, err = cr.runnable.InvokeWithConfig(ctx, input, config)

	case len(config.ResumeFrom) > 0:
		state, mergeErr := cr.restore(cp, input)
		if mergeErr != nil {
			return zero, mergeErr
		}
		result, err = cr.runnable.execute(ctx, state, plainTasks(config.ResumeFrom), config, true)

	case cp.Done() && isZero(input):
		return decodeState[S](cp.State)

	case cp.Done():
		state, mergeErr := cr.restore(cp, input)
		if mergeErr != nil {
			return zero, mergeErr
		}
		result, err = cr.runnable.execute(ctx, state, []task{{node: cr.runnable.graph.entryPoint}}, config, false)

	default:
		state, mergeErr := cr.restore(cp, input)
		if mergeErr != nil {
			return zero, mergeErr
		}
		tasks, routeErr := cr.runnable.tasksAfter(ctx, cp.Completed, state)
		if routeErr != nil {
			return zero, routeErr
		}
		result, err = cr.runnable.execute(ctx, state, tasks, config, true)
	}

	if saveErr := listener.Err(); saveErr != nil {
		return result, fmt.Errorf("failed to save checkpoint: %w", saveErr)
	}
	return result, err
}

// restore decodes the checkpoint state and merges input into it.
func (cr *CheckpointableRunnable[S]) restore(cp *store.Checkpoint, input S) (S, error) {
	state, err := decodeState[S](cp.State)
	if err != nil {
		return state, err
	}
	return cr.mergeInput(state, input)
}

func (cr *CheckpointableRunnable[S]) mergeInput(state, input S) (S, error) {
	if cr.runnable.graph.Schema != nil {
		merged, err := cr.runnable.graph.Schema.Update(state, input)
		if err != nil {
			var zero S
			return zero, fmt.Errorf("failed to merge input: %w", err)
		}
		return merged, nil
	}
	if isZero(input) {
		return state, nil
	}
	return input, nil
}

// loadCheckpoint returns the configured checkpoint, or the latest of the thread.
func (cr *CheckpointableRunnable[S]) loadCheckpoint(ctx context.Context, config *Config) (*store.Checkpoint, error) {
	if id := config.CheckpointID(); id != "" {
		return cr.config.Store.Load(ctx, id)
	}
	return cr.latestCheckpoint(ctx, config.ThreadID())
}

func (cr *CheckpointableRunnable[S]) latestCheckpoint(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	if getter, ok := cr.config.Store.(store.LatestGetter); ok {
		return getter.GetLatestByThread(ctx, threadID)
	}

	checkpoints, err := cr.config.Store.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	latest := store.Latest(checkpoints)
	if latest == nil {
		return nil, fmt.Errorf("%w: thread %s", store.ErrCheckpointNotFound, threadID)
	}
	return latest, nil
}

// GetState returns the snapshot of the thread named by config.
func (cr *CheckpointableRunnable[S]) GetState(ctx context.Context, config *Config) (*StateSnapshot[S], error) {
	if config.ThreadID() == "" && config.CheckpointID() == "" {
		return nil, errors.New("thread_id or checkpoint_id is required")
	}

	cp, err := cr.loadCheckpoint(ctx, config)
	if err != nil {
		return nil, err
	}

	values, err := decodeState[S](cp.State)
	if err != nil {
		return nil, err
	}

	return &StateSnapshot[S]{
		Values:    values,
		Next:      cp.Next,
		Completed: cp.Completed,
		Config: &Config{
			Configurable: map[string]any{
				"thread_id":     cp.ThreadID,
				"checkpoint_id": cp.ID,
			},
		},
		Metadata:     cp.Metadata,
		CreatedAt:    cp.Timestamp,
		Version:      cp.Version,
		CheckpointID: cp.ID,
	}, nil
}

// UpdateState merges values into the thread's latest state as if asNode had
// produced them, and saves a checkpoint whose next nodes follow asNode's
// routing. An empty asNode keeps the routing of the latest checkpoint.
func (cr *CheckpointableRunnable[S]) UpdateState(ctx context.Context, config *Config, asNode string, values S) (*Config, error) {
	threadID := config.ThreadID()
	if threadID == "" {
		return nil, errors.New("thread_id is required")
	}
	graph := cr.runnable.graph
	if asNode != "" && !graph.HasNode(asNode) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, asNode)
	}

	var state S
	if graph.Schema != nil {
		state = graph.Schema.Init()
	}
	version := 0
	var completed []string

	cp, err := cr.latestCheckpoint(ctx, threadID)
	switch {
	case err == nil:
		if state, err = decodeState[S](cp.State); err != nil {
			return nil, err
		}
		version = cp.Version
		completed = cp.Completed
	case !errors.Is(err, store.ErrCheckpointNotFound):
		return nil, err
	}

	if state, err = cr.mergeInput(state, values); err != nil {
		return nil, err
	}

	if asNode != "" {
		completed = []string{asNode}
	}
	tasks, err := cr.runnable.tasksAfter(ctx, completed, state)
	if err != nil {
		return nil, err
	}

	label := asNode
	if label == "" {
		label = stepLabel(completed)
	}
	next := &store.Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		NodeName:  label,
		Completed: completed,
		Next:      taskNames(tasks),
		State:     state,
		Metadata: map[string]any{
			"source":  "update",
			"as_node": asNode,
		},
		Timestamp: time.Now(),
		Version:   version + 1,
	}
	if err := cr.config.Store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return &Config{
		Configurable: map[string]any{
			"thread_id":     threadID,
			"checkpoint_id": next.ID,
		},
	}, nil
}

// ListCheckpoints lists the checkpoints of the configured thread by version.
func (cr *CheckpointableRunnable[S]) ListCheckpoints(ctx context.Context, config *Config) ([]*store.Checkpoint, error) {
	return cr.config.Store.List(ctx, config.ThreadID())
}

// ClearCheckpoints removes all checkpoints of the configured thread.
func (cr *CheckpointableRunnable[S]) ClearCheckpoints(ctx context.Context, config *Config) error {
	return cr.config.Store.Clear(ctx, config.ThreadID())
}

// Runnable returns the wrapped runnable.
func (cr *CheckpointableRunnable[S]) Runnable() *StateRunnable[S] {
	return cr.runnable
}

// SetTracer sets a tracer on the wrapped runnable.
func (cr *CheckpointableRunnable[S]) SetTracer(tracer *Tracer) {
	cr.runnable.SetTracer(tracer)
}

// decodeState converts a checkpoint state to S. States read back from JSON
// stores arrive as generic maps and are decoded through a JSON round trip.
func decodeState[S any](v any) (S, error) {
	var state S
	if s, ok := v.(S); ok {
		return s, nil
	}
	if v == nil {
		return state, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return state, fmt.Errorf("failed to encode checkpoint state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("failed to decode checkpoint state into %T: %w", state, err)
	}
	return state, nil
}

func isZero[S any](v S) bool {
	return reflect.ValueOf(&v).Elem().IsZero()
}
