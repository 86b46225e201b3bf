package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digestai/digestai/history"
)

type staticSessions struct {
	session *Session
	err     error
}

func (s staticSessions) CreateSession(context.Context) (*Session, error) {
	return s.session, s.err
}

// scriptedAgent replays steps with a pause between them.
type scriptedAgent struct {
	steps   []func(*AgentHistory)
	final   string
	done    bool
	gif     []byte
	err     error
	history AgentHistory
}

func (a *scriptedAgent) Run(ctx context.Context, _ int) error {
	for _, step := range a.steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
		step(&a.history)
	}
	if a.err != nil {
		return a.err
	}
	a.history.Finish(a.final, a.done)
	return nil
}

func (a *scriptedAgent) History() HistorySnapshot { return a.history.Snapshot() }
func (a *scriptedAgent) GIF() []byte              { return a.gif }

func factoryFor(a Agent) AgentFactory {
	return func(context.Context, Task, *Session) (Agent, error) { return a, nil }
}

type sentMail struct {
	to, task, result, errText string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) Notify(_ context.Context, to, task, result, errText string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to, task, result, errText})
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Emit(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []EventType {
	var out []EventType
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) messages(t EventType) []string {
	var out []string
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestRunner_Stream(t *testing.T) {
	agent := &scriptedAgent{
		steps: []func(*AgentHistory){
			func(h *AgentHistory) { h.AddThought("open the site") },
			func(h *AgentHistory) { h.AddAction("go_to_url"); h.AddURL("https://example.com") },
			func(h *AgentHistory) { h.AddContent("Example Domain") },
			func(h *AgentHistory) { h.AddAction("done") },
		},
		final: "Example Domain",
		done:  true,
		gif:   []byte("GIF89a"),
	}
	store := history.NewMemoryStore()
	notifier := &recordingNotifier{}
	runner := NewRunner(
		staticSessions{session: &Session{ID: "s1", LiveViewURL: "https://live/s1"}},
		factoryFor(agent),
		WithHistoryStore(store),
		WithNotifier(notifier),
		WithPollInterval(time.Millisecond),
	)

	sink := &eventLog{}
	err := runner.Stream(context.Background(), "user-1", Task{Task: "visit example.com", Email: "ada@example.com"}, sink)
	require.NoError(t, err)

	ev := sink.events
	require.GreaterOrEqual(t, len(ev), 3)
	assert.Equal(t, Event{Type: EventStart, Message: "Starting task: visit example.com"}, ev[0])
	assert.Equal(t, EventRunID, ev[1].Type)
	assert.Equal(t, Event{Type: EventURL, Message: "https://live/s1"}, ev[2])
	runID := ev[1].Message

	assert.Equal(t, []string{"Thoughts: open the site"}, sink.messages(EventThought))
	assert.Equal(t, []string{"Actions: go_to_url", "Actions: done"}, sink.messages(EventAction))
	assert.Equal(t, []string{"Content: Example Domain"}, sink.messages(EventContent))
	assert.Contains(t, sink.messages(EventURL), "Urls: https://example.com")

	var titles []string
	for _, e := range ev {
		if e.Type == EventSection {
			titles = append(titles, e.Title)
		}
	}
	assert.Equal(t, []string{"URLs Visited", "Actions Taken", "Agent Reasoning", "Extracted Content"}, titles)

	types := sink.types()
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, []EventType{EventGIF, EventComplete}, types[len(types)-2:])
	complete := ev[len(ev)-1]
	assert.Equal(t, "Example Domain", complete.Message)
	require.NotNil(t, complete.Success)
	assert.True(t, *complete.Success)

	rec, err := store.Get(context.Background(), "user-1", runID)
	require.NoError(t, err)
	assert.Equal(t, "Example Domain", rec.Result)
	assert.Empty(t, rec.Error)
	assert.Equal(t, "https://live/s1", rec.LiveViewURL)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("GIF89a")), rec.GIFContent)

	var saved []Event
	require.NoError(t, json.Unmarshal(rec.Progress, &saved))
	assert.Equal(t, ev, saved)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, sentMail{"ada@example.com", "visit example.com", "Example Domain", ""}, notifier.sent[0])
}

func TestRunner_StreamSessionFailure(t *testing.T) {
	store := history.NewMemoryStore()
	notifier := &recordingNotifier{}
	runner := NewRunner(staticSessions{err: errors.New("no capacity")}, factoryFor(&scriptedAgent{}),
		WithHistoryStore(store), WithNotifier(notifier))

	sink := &eventLog{}
	require.NoError(t, runner.Stream(context.Background(), "user-1", Task{Task: "t", Email: "a@b.co"}, sink))

	assert.Equal(t, []EventType{EventStart, EventRunID, EventError, EventComplete}, sink.types())
	assert.Equal(t, "Error: no capacity", sink.events[2].Message)
	require.NotNil(t, sink.events[3].Success)
	assert.False(t, *sink.events[3].Success)

	page, err := store.List(context.Background(), "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Error: no capacity", page.Data[0].Error)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Error: no capacity", notifier.sent[0].errText)
}

func TestRunner_StreamAgentFailure(t *testing.T) {
	agent := &scriptedAgent{
		steps: []func(*AgentHistory){
			func(h *AgentHistory) { h.AddError("element not found") },
		},
		err: errors.New("step budget exhausted"),
	}
	runner := NewRunner(staticSessions{session: &Session{ID: "s"}}, factoryFor(agent),
		WithPollInterval(time.Millisecond))

	sink := &eventLog{}
	require.NoError(t, runner.Stream(context.Background(), "u", Task{Task: "t"}, sink))

	types := sink.types()
	assert.NotContains(t, types, EventURL, "no live view url, no url event")
	assert.Contains(t, sink.messages(EventError), "Error: step budget exhausted")
	assert.Equal(t, EventComplete, types[len(types)-1])
	assert.False(t, *sink.events[len(types)-1].Success)
}

func TestRunner_StreamFlushesLastErrorOnFailure(t *testing.T) {
	for range 20 {
		agent := &scriptedAgent{
			steps: []func(*AgentHistory){
				func(h *AgentHistory) { h.AddError("navigation timed out") },
			},
			err: errors.New("navigation timed out"),
		}
		runner := NewRunner(staticSessions{session: &Session{ID: "s"}}, factoryFor(agent),
			WithPollInterval(time.Hour))

		sink := &eventLog{}
		require.NoError(t, runner.Stream(context.Background(), "u", Task{Task: "t"}, sink))
		require.Contains(t, sink.messages(EventError), "Errors: navigation timed out")
	}
}

func TestRunner_StreamInvalidTask(t *testing.T) {
	runner := NewRunner(UnavailableSessions{}, factoryFor(&scriptedAgent{}))
	sink := &eventLog{}

	assert.Error(t, runner.Stream(context.Background(), "u", Task{}, sink))
	assert.Empty(t, sink.events)
}

func TestRunner_StreamClosedSink(t *testing.T) {
	store := history.NewMemoryStore()
	runner := NewRunner(staticSessions{session: &Session{ID: "s"}},
		factoryFor(&scriptedAgent{final: "ok", done: true}), WithHistoryStore(store))

	calls := 0
	sink := SinkFunc(func(Event) error {
		calls++
		return errors.New("broken pipe")
	})
	err := runner.Stream(context.Background(), "u", Task{Task: "t"}, sink)
	assert.ErrorContains(t, err, "broken pipe")
	assert.Equal(t, 1, calls, "stream stops writing after the first failure")

	page, err := store.List(context.Background(), "u", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "ok", page.Data[0].Result)
}

func TestSummarySections(t *testing.T) {
	assert.Empty(t, summarySections(HistorySnapshot{}))

	got := summarySections(HistorySnapshot{Results: []string{"r"}, URLs: []string{"u"}})
	require.Len(t, got, 2)
	assert.Equal(t, "URLs Visited", got[0].Title)
	assert.Equal(t, "Action Results", got[1].Title)
}
