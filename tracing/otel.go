// Package tracing bridges graph trace spans to OpenTelemetry.
package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/digestai/digestai/graph"
)

// InstrumentationName identifies spans created by this package.
const InstrumentationName = "github.com/digestai/digestai/graph"

// Attribute keys set on graph spans.
const (
	AttrNode     = attribute.Key("graph.node")
	AttrEvent    = attribute.Key("graph.event")
	AttrFromNode = attribute.Key("graph.edge.from")
	AttrToNode   = attribute.Key("graph.edge.to")
)

// OTelHook turns graph and node spans into OpenTelemetry spans. Edge
// traversals become events on the enclosing span.
type OTelHook struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

var _ graph.TraceHook = (*OTelHook)(nil)

// NewOTelHook creates a hook that starts spans from tp.
func NewOTelHook(tp trace.TracerProvider) *OTelHook {
	return &OTelHook{
		tracer: tp.Tracer(InstrumentationName),
		spans:  make(map[string]trace.Span),
	}
}

// OnEvent implements graph.TraceHook.
func (h *OTelHook) OnEvent(ctx context.Context, span *graph.TraceSpan) {
	switch span.Event {
	case graph.TraceEventGraphStart, graph.TraceEventNodeStart:
		h.start(ctx, span)
	case graph.TraceEventGraphEnd, graph.TraceEventNodeEnd, graph.TraceEventNodeError:
		h.end(span)
	case graph.TraceEventEdgeTraversal:
		h.mu.Lock()
		parent := h.spans[span.ParentID]
		h.mu.Unlock()
		if parent != nil {
			parent.AddEvent("edge", trace.WithAttributes(
				AttrFromNode.String(span.FromNode),
				AttrToNode.String(span.ToNode),
			), trace.WithTimestamp(span.StartTime))
		}
	}
}

func (h *OTelHook) start(ctx context.Context, span *graph.TraceSpan) {
	h.mu.Lock()
	parent := h.spans[span.ParentID]
	h.mu.Unlock()
	if parent != nil {
		ctx = trace.ContextWithSpan(ctx, parent)
	}

	name := span.NodeName
	if span.Event == graph.TraceEventGraphStart {
		name = "graph"
	}
	_, otelSpan := h.tracer.Start(ctx, name,
		trace.WithTimestamp(span.StartTime),
		trace.WithAttributes(AttrNode.String(span.NodeName)),
	)

	h.mu.Lock()
	h.spans[span.ID] = otelSpan
	h.mu.Unlock()
}

func (h *OTelHook) end(span *graph.TraceSpan) {
	h.mu.Lock()
	otelSpan, ok := h.spans[span.ID]
	delete(h.spans, span.ID)
	h.mu.Unlock()
	if !ok {
		return
	}

	otelSpan.SetAttributes(AttrEvent.String(string(span.Event)))
	for k, v := range span.Metadata {
		otelSpan.SetAttributes(attribute.String("graph.meta."+k, fmt.Sprint(v)))
	}
	if span.Error != nil {
		otelSpan.RecordError(span.Error)
		otelSpan.SetStatus(codes.Error, span.Error.Error())
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	otelSpan.End(trace.WithTimestamp(span.EndTime))
}

// NewProvider builds an SDK tracer provider that samples every span and
// sends them to the given exporters in batches.
func NewProvider(exporters ...sdktrace.SpanExporter) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}
	for _, exp := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// NewTracer returns a graph tracer that reports to tp and retains nothing
// in memory.
func NewTracer(tp trace.TracerProvider) *graph.Tracer {
	t := graph.NewTracer(graph.WithSpanLimit(0))
	t.AddHook(NewOTelHook(tp))
	return t
}
