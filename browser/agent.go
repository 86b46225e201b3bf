package browser

import (
	"context"
	"slices"
	"sync"
)

// Agent runs a browser decision loop for one task.
type Agent interface {
	// Run drives the browser until the task is done or maxSteps is reached.
	Run(ctx context.Context, maxSteps int) error
	// History returns what the agent has done so far. It is safe to call
	// while Run is in progress.
	History() HistorySnapshot
	// GIF returns the animated recording of the run, if any.
	GIF() []byte
}

// AgentFactory builds an agent for a task in a session.
type AgentFactory func(ctx context.Context, task Task, session *Session) (Agent, error)

// HistorySnapshot is a point-in-time copy of an agent's history.
type HistorySnapshot struct {
	URLs        []string
	Actions     []string
	Thoughts    []string
	Errors      []string
	Results     []string
	Content     []string
	FinalResult string
	Done        bool
}

// AgentHistory accumulates history for Agent implementations.
type AgentHistory struct {
	mu   sync.RWMutex
	snap HistorySnapshot
}

func (h *AgentHistory) add(dst *[]string, v string) {
	h.mu.Lock()
	*dst = append(*dst, v)
	h.mu.Unlock()
}

func (h *AgentHistory) AddURL(v string)     { h.add(&h.snap.URLs, v) }
func (h *AgentHistory) AddAction(v string)  { h.add(&h.snap.Actions, v) }
func (h *AgentHistory) AddThought(v string) { h.add(&h.snap.Thoughts, v) }
func (h *AgentHistory) AddError(v string)   { h.add(&h.snap.Errors, v) }
func (h *AgentHistory) AddResult(v string)  { h.add(&h.snap.Results, v) }
func (h *AgentHistory) AddContent(v string) { h.add(&h.snap.Content, v) }

// Finish records the final result and whether the agent considers the task
// done.
func (h *AgentHistory) Finish(result string, done bool) {
	h.mu.Lock()
	h.snap.FinalResult = result
	h.snap.Done = done
	h.mu.Unlock()
}

// Snapshot copies the history.
func (h *AgentHistory) Snapshot() HistorySnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.snap
	s.URLs = slices.Clone(s.URLs)
	s.Actions = slices.Clone(s.Actions)
	s.Thoughts = slices.Clone(s.Thoughts)
	s.Errors = slices.Clone(s.Errors)
	s.Results = slices.Clone(s.Results)
	s.Content = slices.Clone(s.Content)
	return s
}
