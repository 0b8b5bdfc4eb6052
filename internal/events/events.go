// Package events carries recoverable pipeline conditions as structured events.
// Nothing published here unwinds session state; it is reported and the
// pipeline keeps running.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Kind identifies a recoverable pipeline condition.
type Kind string

const (
	InputStarvation          Kind = "input_starvation"
	LateFrame                Kind = "late_frame"
	FrameDropped             Kind = "frame_dropped"
	ClassifierTimeout        Kind = "classifier_timeout"
	EmptyUtterance           Kind = "empty_utterance"
	TranslationUnavailable   Kind = "translation_unavailable"
	UnknownGestureVocabulary Kind = "unknown_gesture_vocabulary"
	UnknownGlossMapping      Kind = "unknown_gloss_mapping"
)

// Event is a single structured report.
type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Time      time.Time `json:"time"`
}

// Sink receives events. Implementations must be safe for concurrent use and
// must not block.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range out {
			s.Emit(e)
		}
	})
}

// LogSink writes events to a structured logger at warn level.
type LogSink struct {
	Logger *slog.Logger
}

// Emit logs the event.
func (s LogSink) Emit(e Event) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Warn("pipeline event",
		slog.String("kind", string(e.Kind)),
		slog.String("session_id", e.SessionID),
		slog.String("detail", e.Detail),
	)
}

// Recorder keeps every event it receives. Useful in tests and debugging
// endpoints.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends the event.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of the given kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
