package research

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/digestai/digestai/graph"
	"github.com/digestai/digestai/log"
	"github.com/digestai/digestai/store"
)

// Stage is the human-facing position of a research thread.
type Stage string

const (
	StageAwaitingTemplateFeedback Stage = "awaiting_template_feedback"
	StageAwaitingAnalystFeedback  Stage = "awaiting_analyst_feedback"
	StageInProgress               Stage = "in_progress"
	StageComplete                 Stage = "complete"
)

var (
	ErrThreadNotFound  = errors.New("research thread not found")
	ErrThreadExists    = errors.New("research thread already exists")
	ErrUnexpectedStage = errors.New("research thread is not awaiting this feedback")
	ErrEmptyTopic      = errors.New("topic is required")
)

// Snapshot is the externally visible state of a research thread.
type Snapshot struct {
	ThreadID  string    `json:"thread_id"`
	Stage     Stage     `json:"stage"`
	Topic     string    `json:"topic"`
	Template  string    `json:"template,omitempty"`
	Analysts  []Analyst `json:"analysts,omitempty"`
	Progress  []string  `json:"progress,omitempty"`
	Report    string    `json:"report,omitempty"`
	Next      []string  `json:"next,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StartOptions tune a new thread.
type StartOptions struct {
	// ThreadID names the thread; a UUID is generated when empty.
	ThreadID string
	// MaxAnalysts overrides the configured team size when positive.
	MaxAnalysts int
}

// Assistant drives research threads through their feedback stages on top
// of a checkpointed graph.
type Assistant struct {
	workflow  *Workflow
	graph     *graph.StateGraph[ResearchState]
	runnable  *graph.CheckpointableRunnable[ResearchState]
	callbacks []graph.CallbackHandler

	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// NewAssistant builds the research graph and compiles it with checkpointing.
func NewAssistant(model llms.Model, searchers Searchers, checkpoints graph.CheckpointConfig, opts ...Option) (*Assistant, error) {
	workflow, err := NewWorkflow(model, searchers, opts...)
	if err != nil {
		return nil, err
	}
	g, err := workflow.BuildGraph()
	if err != nil {
		return nil, err
	}
	if checkpoints.Store == nil {
		checkpoints = graph.DefaultCheckpointConfig()
	}
	checkpoints.AutoSave = true

	runnable, err := g.CompileCheckpointable(checkpoints)
	if err != nil {
		return nil, err
	}
	return &Assistant{
		workflow: workflow,
		graph:    g,
		runnable: runnable,
		locks:    make(map[string]*threadLock),
	}, nil
}

// Graph returns the research graph, e.g. for visualization.
func (a *Assistant) Graph() *graph.StateGraph[ResearchState] {
	return a.graph
}

// SetTracer traces every run of the assistant.
func (a *Assistant) SetTracer(tracer *graph.Tracer) {
	a.runnable.SetTracer(tracer)
}

// AddCallbackHandler registers a handler for every run. It must be called
// before the assistant is used concurrently.
func (a *Assistant) AddCallbackHandler(handler graph.CallbackHandler) {
	a.callbacks = append(a.callbacks, handler)
}

// Start creates a thread for topic and runs it until the template is ready
// for review.
func (a *Assistant) Start(ctx context.Context, topic string, opts StartOptions) (*Snapshot, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	threadID := opts.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	unlock := a.lock(threadID)
	defer unlock()

	if _, err := a.runnable.GetState(ctx, graph.WithThreadID(threadID)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrThreadExists, threadID)
	} else if !errors.Is(err, store.ErrCheckpointNotFound) {
		return nil, err
	}

	log.Info("research thread %s started: %q", threadID, topic)
	if err := a.run(ctx, threadID, ResearchState{Topic: topic, MaxAnalysts: opts.MaxAnalysts}); err != nil {
		return nil, err
	}
	return a.State(ctx, threadID)
}

// SubmitTemplateFeedback records feedback on the template and resumes.
// Empty feedback or "approve" accepts the template and moves on to analyst
// creation; anything else revises the template and pauses again.
func (a *Assistant) SubmitTemplateFeedback(ctx context.Context, threadID, feedback string) (*Snapshot, error) {
	return a.submit(ctx, threadID, StageAwaitingTemplateFeedback, NodeTemplateFeedback,
		ResearchState{TemplateFeedback: normalizeFeedback(feedback)})
}

// SubmitAnalystFeedback records feedback on the analyst team and resumes.
// Approval runs the interviews and writes the report; other feedback
// recreates the team and pauses again.
func (a *Assistant) SubmitAnalystFeedback(ctx context.Context, threadID, feedback string) (*Snapshot, error) {
	return a.submit(ctx, threadID, StageAwaitingAnalystFeedback, NodeHumanFeedback,
		ResearchState{HumanAnalystFeedback: normalizeFeedback(feedback)})
}

func (a *Assistant) submit(ctx context.Context, threadID string, want Stage, asNode string, update ResearchState) (*Snapshot, error) {
	unlock := a.lock(threadID)
	defer unlock()

	current, err := a.State(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if current.Stage != want {
		return nil, fmt.Errorf("%w: thread %s is %s", ErrUnexpectedStage, threadID, current.Stage)
	}

	if _, err := a.runnable.UpdateState(ctx, graph.WithThreadID(threadID), asNode, update); err != nil {
		return nil, err
	}
	log.Debug("research thread %s: feedback recorded as %s", threadID, asNode)

	if err := a.run(ctx, threadID, ResearchState{}); err != nil {
		return nil, err
	}
	return a.State(ctx, threadID)
}

// Resume continues a thread whose last run stopped on an error, from the
// nodes its latest checkpoint left pending.
func (a *Assistant) Resume(ctx context.Context, threadID string) (*Snapshot, error) {
	unlock := a.lock(threadID)
	defer unlock()

	current, err := a.State(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if current.Stage != StageInProgress {
		return nil, fmt.Errorf("%w: thread %s is %s", ErrUnexpectedStage, threadID, current.Stage)
	}

	log.Info("research thread %s resuming at %v", threadID, current.Next)
	if err := a.run(ctx, threadID, ResearchState{}); err != nil {
		return nil, err
	}
	return a.State(ctx, threadID)
}

// run executes the thread until the next feedback pause or the end.
func (a *Assistant) run(ctx context.Context, threadID string, input ResearchState) error {
	config := graph.WithThreadID(threadID)
	config.InterruptBefore = []string{NodeTemplateFeedback, NodeHumanFeedback}
	config.Callbacks = slices.Clone(a.callbacks)

	_, err := a.runnable.InvokeWithConfig(ctx, input, config)
	if interrupt, ok := graph.AsInterrupt(err); ok {
		log.Debug("research thread %s paused before %s", threadID, interrupt.Node)
		return nil
	}
	if err != nil {
		log.Error("research thread %s failed: %v", threadID, err)
	}
	return err
}

// State returns the current snapshot of a thread.
func (a *Assistant) State(ctx context.Context, threadID string) (*Snapshot, error) {
	snap, err := a.runnable.GetState(ctx, graph.WithThreadID(threadID))
	if errors.Is(err, store.ErrCheckpointNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	if err != nil {
		return nil, err
	}

	values := snap.Values
	return &Snapshot{
		ThreadID:  threadID,
		Stage:     stageOf(snap.Next),
		Topic:     values.Topic,
		Template:  values.ReportTemplate,
		Analysts:  values.Analysts,
		Progress:  values.ProgressMessages,
		Report:    values.FinalReport,
		Next:      snap.Next,
		UpdatedAt: snap.CreatedAt,
	}, nil
}

// Delete removes every checkpoint of a thread. It waits for a run in
// progress on the thread to finish.
func (a *Assistant) Delete(ctx context.Context, threadID string) error {
	unlock := a.lock(threadID)
	defer unlock()

	return a.runnable.ClearCheckpoints(ctx, graph.WithThreadID(threadID))
}

func stageOf(next []string) Stage {
	switch {
	case slices.Contains(next, NodeTemplateFeedback):
		return StageAwaitingTemplateFeedback
	case slices.Contains(next, NodeHumanFeedback):
		return StageAwaitingAnalystFeedback
	case len(next) == 0:
		return StageComplete
	default:
		return StageInProgress
	}
}

func normalizeFeedback(feedback string) string {
	if isApproval(feedback) {
		return ApproveFeedback
	}
	return strings.TrimSpace(feedback)
}

// lock serializes runs of the same thread. The entry is dropped once no
// caller holds or waits for it.
func (a *Assistant) lock(threadID string) func() {
	a.mu.Lock()
	l, ok := a.locks[threadID]
	if !ok {
		l = &threadLock{}
		a.locks[threadID] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(a.locks, threadID)
		}
		a.mu.Unlock()
	}
}
