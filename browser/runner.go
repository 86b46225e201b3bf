package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/digestai/digestai/history"
	"github.com/digestai/digestai/log"
	"github.com/digestai/digestai/notify"
)

var logger = log.Named("browse")

// DefaultPollInterval is how often agent history is polled during a run.
const DefaultPollInterval = 100 * time.Millisecond

// Runner streams browser tasks.
type Runner struct {
	sessions     SessionCreator
	agents       AgentFactory
	history      history.Store
	notifier     notify.Notifier
	pollInterval time.Duration
	maxSteps     int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithHistoryStore persists finished runs.
func WithHistoryStore(s history.Store) RunnerOption {
	return func(r *Runner) { r.history = s }
}

// WithNotifier emails users whose tasks carry an address.
func WithNotifier(n notify.Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// NewRunner creates a runner.
func NewRunner(sessions SessionCreator, agents AgentFactory, opts ...RunnerOption) *Runner {
	r := &Runner{
		sessions:     sessions,
		agents:       agents,
		history:      history.NewMemoryStore(),
		notifier:     notify.NoopNotifier{},
		pollInterval: DefaultPollInterval,
		maxSteps:     DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// recorder forwards events to the sink and keeps them for the history
// record. A failing sink does not stop the run.
type recorder struct {
	mu      sync.Mutex
	sink    Sink
	events  []Event
	sinkErr error
}

func (r *recorder) emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	if r.sinkErr != nil {
		return
	}
	if err := r.sink.Emit(e); err != nil {
		r.sinkErr = err
		logger.Warn("progress stream closed: %v", err)
	}
}

func (r *recorder) progress() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := json.Marshal(r.events)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}

type outcome struct {
	result string
	errMsg string
	gif    []byte
}

// Stream runs the task and writes its progress to sink. Failures after
// validation are reported as events; the returned error is the sink's, if
// the client went away.
func (r *Runner) Stream(ctx context.Context, userID string, task Task, sink Sink) error {
	if err := task.Validate(); err != nil {
		return err
	}

	rec := &recorder{sink: sink}
	runID := uuid.NewString()

	rec.emit(Event{Type: EventStart, Message: "Starting task: " + task.Task})
	rec.emit(Event{Type: EventRunID, Message: runID})

	var liveView string
	out, err := r.run(ctx, task, rec, &liveView)
	if err != nil {
		out.errMsg = "Error: " + err.Error()
		rec.emit(Event{Type: EventError, Message: out.errMsg})
		rec.emit(Event{Type: EventComplete, Message: out.errMsg, Success: boolPtr(false)})
	}

	// The client may be gone; the record is still written.
	saveCtx := context.WithoutCancel(ctx)
	record := &history.Record{
		UserID:      userID,
		Task:        task.Task,
		Progress:    rec.progress(),
		Result:      out.result,
		Error:       out.errMsg,
		RunID:       runID,
		LiveViewURL: liveView,
	}
	if len(out.gif) > 0 {
		record.GIFContent = base64.StdEncoding.EncodeToString(out.gif)
	}
	if _, err := r.history.Save(saveCtx, record); err != nil {
		logger.Error("save run history %s: %v", runID, err)
	}

	if task.Email != "" {
		if err := r.notifier.Notify(saveCtx, task.Email, task.Task, out.result, out.errMsg); err != nil {
			logger.Warn("send completion email for run %s: %v", runID, err)
		}
	}

	return rec.sinkErr
}

func (r *Runner) run(ctx context.Context, task Task, rec *recorder, liveView *string) (outcome, error) {
	session, err := r.sessions.CreateSession(ctx)
	if err != nil {
		return outcome{}, err
	}
	*liveView = session.LiveViewURL
	if session.LiveViewURL != "" {
		rec.emit(Event{Type: EventURL, Message: session.LiveViewURL})
	}

	agent, err := r.agents(ctx, task, session)
	if err != nil {
		return outcome{}, fmt.Errorf("create agent: %w", err)
	}

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		return agent.Run(gctx, r.maxSteps)
	})
	g.Go(func() error {
		r.poll(agent, rec, done)
		return nil
	})
	if err := g.Wait(); err != nil {
		return outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	h := agent.History()
	for _, s := range summarySections(h) {
		rec.emit(s)
	}

	out := outcome{result: h.FinalResult, gif: agent.GIF()}
	if len(out.gif) > 0 {
		rec.emit(Event{Type: EventGIF, Message: "Task recording created"})
	}
	rec.emit(Event{Type: EventComplete, Message: h.FinalResult, Success: boolPtr(h.Done)})
	return out, nil
}

// poll emits history items that appeared since the previous tick, then
// flushes the remainder once the agent stops. done closes however Run
// returns, so cancellation also ends in a final flush.
func (r *Runner) poll(agent Agent, rec *recorder, done <-chan struct{}) {
	var seen [len(historyKinds)]int
	flush := func() {
		h := agent.History()
		for i, kind := range historyKinds {
			items := kind.items(h)
			for _, item := range items[min(seen[i], len(items)):] {
				rec.emit(Event{Type: kind.event, Message: kind.label + ": " + item})
			}
			seen[i] = max(seen[i], len(items))
		}
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			flush()
		case <-done:
			flush()
			return
		}
	}
}

var historyKinds = [...]struct {
	event EventType
	label string
	items func(HistorySnapshot) []string
}{
	{EventURL, "Urls", func(h HistorySnapshot) []string { return h.URLs }},
	{EventAction, "Actions", func(h HistorySnapshot) []string { return h.Actions }},
	{EventThought, "Thoughts", func(h HistorySnapshot) []string { return h.Thoughts }},
	{EventError, "Errors", func(h HistorySnapshot) []string { return h.Errors }},
	{EventResult, "Results", func(h HistorySnapshot) []string { return h.Results }},
	{EventContent, "Content", func(h HistorySnapshot) []string { return h.Content }},
}

func summarySections(h HistorySnapshot) []Event {
	sections := []struct {
		title string
		items []string
	}{
		{"URLs Visited", h.URLs},
		{"Actions Taken", h.Actions},
		{"Agent Reasoning", h.Thoughts},
		{"Extracted Content", h.Content},
		{"Action Results", h.Results},
	}
	var out []Event
	for _, s := range sections {
		if len(s.items) > 0 {
			out = append(out, Event{Type: EventSection, Title: s.title, Items: s.items})
		}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

// ErrNoSessionCreator is returned by UnavailableSessions.
var ErrNoSessionCreator = errors.New("browser sessions are not configured")

// UnavailableSessions fails every session request.
type UnavailableSessions struct{}

// CreateSession implements SessionCreator.
func (UnavailableSessions) CreateSession(context.Context) (*Session, error) {
	return nil, ErrNoSessionCreator
}
