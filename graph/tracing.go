package graph

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceEvent is the kind of a TraceSpan. Start events turn into their end
// counterpart when the span is ended.
type TraceEvent string

const (
	TraceEventGraphStart    TraceEvent = "graph_start"
	TraceEventGraphEnd      TraceEvent = "graph_end"
	TraceEventNodeStart     TraceEvent = "node_start"
	TraceEventNodeEnd       TraceEvent = "node_end"
	TraceEventNodeError     TraceEvent = "node_error"
	TraceEventEdgeTraversal TraceEvent = "edge_traversal"
)

// DefaultSpanLimit bounds the spans a Tracer retains for GetSpans.
const DefaultSpanLimit = 1024

// TraceSpan is one graph run, node execution or edge traversal.
type TraceSpan struct {
	ID       string
	ParentID string
	Event    TraceEvent

	// NodeName is set for node spans; "graph" for the run span.
	NodeName string
	// FromNode and ToNode are set for edge traversals.
	FromNode string
	ToNode   string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// State is the node result or the final run state.
	State    any
	Error    error
	Metadata map[string]any
}

// Ended reports whether the span has completed.
func (s *TraceSpan) Ended() bool {
	return !s.EndTime.IsZero()
}

// TraceHook receives every span when it starts and again when it ends.
// Edge traversals are delivered once, already ended.
type TraceHook interface {
	OnEvent(ctx context.Context, span *TraceSpan)
}

// TraceHookFunc adapts a function to TraceHook.
type TraceHookFunc func(ctx context.Context, span *TraceSpan)

func (f TraceHookFunc) OnEvent(ctx context.Context, span *TraceSpan) {
	f(ctx, span)
}

// Tracer fans spans out to hooks and keeps the most recent ones for
// inspection. It is safe for concurrent use by the parallel tasks of a
// superstep; hooks must be as well.
type Tracer struct {
	mu    sync.Mutex
	hooks []TraceHook
	spans map[string]*TraceSpan
	order []string
	limit int
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithSpanLimit sets how many spans are retained. Zero or less keeps none,
// which suits long-running services that only need the hooks.
func WithSpanLimit(n int) TracerOption {
	return func(t *Tracer) { t.limit = n }
}

// NewTracer creates a tracer retaining DefaultSpanLimit spans.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		spans: make(map[string]*TraceSpan),
		limit: DefaultSpanLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddHook registers a hook for all later spans.
func (t *Tracer) AddHook(hook TraceHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

func (t *Tracer) record(ctx context.Context, span *TraceSpan) {
	t.mu.Lock()
	t.retain(span)
	hooks := append([]TraceHook(nil), t.hooks...)
	t.mu.Unlock()

	for _, hook := range hooks {
		hook.OnEvent(ctx, span)
	}
}

// retain stores span and evicts the oldest beyond the limit. Caller holds mu.
func (t *Tracer) retain(span *TraceSpan) {
	if t.limit <= 0 {
		return
	}
	if _, ok := t.spans[span.ID]; !ok {
		t.order = append(t.order, span.ID)
	}
	t.spans[span.ID] = span
	for len(t.order) > t.limit {
		delete(t.spans, t.order[0])
		t.order = t.order[1:]
	}
}

func newSpan(ctx context.Context, event TraceEvent) *TraceSpan {
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     event,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.ID
	}
	return span
}

// StartSpan opens a span parented to the span in ctx, if any.
func (t *Tracer) StartSpan(ctx context.Context, event TraceEvent, nodeName string) *TraceSpan {
	span := newSpan(ctx, event)
	span.NodeName = nodeName
	t.record(ctx, span)
	return span
}

// EndSpan closes span with the resulting state and error.
func (t *Tracer) EndSpan(ctx context.Context, span *TraceSpan, state any, err error) {
	t.mu.Lock()
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	span.State = state
	span.Error = err
	switch span.Event {
	case TraceEventNodeStart:
		span.Event = TraceEventNodeEnd
		if err != nil {
			span.Event = TraceEventNodeError
		}
	case TraceEventGraphStart:
		span.Event = TraceEventGraphEnd
	}
	t.mu.Unlock()

	t.record(ctx, span)
}

// TraceEdgeTraversal records that control moved from one node to another.
func (t *Tracer) TraceEdgeTraversal(ctx context.Context, fromNode, toNode string) {
	span := newSpan(ctx, TraceEventEdgeTraversal)
	span.FromNode = fromNode
	span.ToNode = toNode
	span.EndTime = span.StartTime
	t.record(ctx, span)
}

// GetSpans returns the retained spans keyed by ID.
func (t *Tracer) GetSpans() map[string]*TraceSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.spans)
}

// Clear drops the retained spans.
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = make(map[string]*TraceSpan)
	t.order = nil
}

type spanContextKey struct{}

// ContextWithSpan makes span the parent of spans started from ctx.
func ContextWithSpan(ctx context.Context, span *TraceSpan) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

// SpanFromContext returns the current span or nil.
func SpanFromContext(ctx context.Context) *TraceSpan {
	span, _ := ctx.Value(spanContextKey{}).(*TraceSpan)
	return span
}
