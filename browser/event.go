package browser

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// EventType names a streamed event.
type EventType string

const (
	EventStart    EventType = "start"
	EventRunID    EventType = "run_id"
	EventURL      EventType = "url"
	EventAction   EventType = "action"
	EventThought  EventType = "thought"
	EventError    EventType = "error"
	EventResult   EventType = "result"
	EventContent  EventType = "content"
	EventSection  EventType = "section"
	EventGIF      EventType = "gif"
	EventComplete EventType = "complete"
)

// Event is one line of the progress stream.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Title   string    `json:"title,omitempty"`
	Items   []string  `json:"items,omitempty"`
	Success *bool     `json:"success,omitempty"`
}

// Sink receives progress events.
type Sink interface {
	Emit(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

// Emit calls f.
func (f SinkFunc) Emit(e Event) error { return f(e) }

// NDJSONSink writes one JSON document per line and flushes after each when
// the writer supports it.
type NDJSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	w   io.Writer
}

// NewNDJSONSink wraps w.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{enc: json.NewEncoder(w), w: w}
}

// Emit encodes the event.
func (s *NDJSONSink) Emit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(e); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
