// Package session wires the recognition and generation pipelines together
// and enforces that only one direction is active at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/voiceheard/internal/classify"
	"github.com/ayusman/voiceheard/internal/events"
	"github.com/ayusman/voiceheard/internal/frame"
	"github.com/ayusman/voiceheard/internal/gloss"
	"github.com/ayusman/voiceheard/internal/segment"
	"github.com/ayusman/voiceheard/internal/sentence"
	"github.com/ayusman/voiceheard/internal/store"
	"github.com/ayusman/voiceheard/internal/translate"
	"github.com/ayusman/voiceheard/internal/vocab"
)

var (
	// ErrSessionBusy is returned when the other direction is active.
	ErrSessionBusy = errors.New("session busy")
	// ErrNoSession is returned when no recognition session is active.
	ErrNoSession = errors.New("no active recognition session")
)

// Mode is the orchestrator's active direction.
type Mode string

const (
	ModeIdle        Mode = "idle"
	ModeRecognition Mode = "recognition"
	ModeGeneration  Mode = "generation"
)

// Translator translates text into a target language, returning the original
// text with translate.ErrTranslationUnavailable on failure.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (translate.Result, error)
}

// HistoryWriter receives a record for every completed utterance and
// timeline. The orchestrator never reads history back.
type HistoryWriter interface {
	Append(ctx context.Context, rec store.HistoryRecord) error
}

// Config holds the orchestrator's collaborators and tuning.
type Config struct {
	Classifier classify.Classifier
	Vocabulary *vocab.Bundle
	// Planner defaults to one built from Vocabulary.
	Planner    *gloss.Planner
	Translator Translator
	History    HistoryWriter
	Events     events.Sink
	Logger     *slog.Logger
	// Clock is used for starvation checks; defaults to time.Now.
	Clock func() time.Time

	Frame         frame.Config
	Classify      classify.Config
	Segment       segment.Config
	ReorderWindow int
	EndTimeout    time.Duration
	// TargetLang, when set, translates recognized utterances.
	TargetLang string
	// WatchdogInterval defaults to a quarter of the starvation timeout.
	// Negative disables the watchdog.
	WatchdogInterval time.Duration
	// FinishTimeout bounds translation and history writes per utterance.
	FinishTimeout time.Duration
}

// Status describes what the orchestrator is doing.
type Status struct {
	Mode       Mode   `json:"mode"`
	SessionID  string `json:"session_id,omitempty"`
	Segmenter  string `json:"segmenter,omitempty"`
	Partial    string `json:"partial,omitempty"`
	Generating int    `json:"generating"`
}

// Listener receives closed utterances.
type Listener func(sessionID string, u sentence.Utterance)

// Orchestrator owns the single recognition session and admits generation
// requests. Its mutex guards only mode transitions; classifier, translation,
// handshape and storage calls happen outside it.
type Orchestrator struct {
	config  Config
	planner *gloss.Planner
	events  events.Sink
	log     *slog.Logger
	clock   func() time.Time

	mu         sync.Mutex
	active     *pipeline
	generating int
	listeners  map[int]Listener
	nextID     int
}

// New creates an orchestrator.
func New(config Config) (*Orchestrator, error) {
	if config.Classifier == nil {
		return nil, fmt.Errorf("session: classifier is required")
	}
	if config.Vocabulary == nil {
		return nil, fmt.Errorf("session: vocabulary is required")
	}
	if config.Segment == (segment.Config{}) {
		config.Segment = segment.DefaultConfig()
	}
	if err := config.Segment.Validate(); err != nil {
		return nil, fmt.Errorf("session: segmenter config: %w", err)
	}
	if config.FinishTimeout <= 0 {
		config.FinishTimeout = 10 * time.Second
	}

	o := &Orchestrator{
		config:    config,
		planner:   config.Planner,
		events:    config.Events,
		log:       config.Logger,
		clock:     config.Clock,
		listeners: make(map[int]Listener),
	}
	if o.planner == nil {
		o.planner = gloss.NewPlanner(config.Vocabulary.Dictionary, config.Vocabulary.Rules, nil, gloss.DefaultConfig())
	}
	if o.events == nil {
		o.events = events.Discard
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o, nil
}

// OnUtterance registers a listener for closed utterances and returns a
// function that removes it.
func (o *Orchestrator) OnUtterance(l Listener) (remove func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

// Status returns a snapshot of the orchestrator state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	p, generating := o.active, o.generating
	o.mu.Unlock()

	st := Status{Mode: ModeIdle, Generating: generating}
	if generating > 0 {
		st.Mode = ModeGeneration
	}
	if p != nil {
		st.Mode = ModeRecognition
		st.SessionID = p.id
		st.Segmenter, st.Partial = p.snapshot()
	}
	return st
}

// StartRecognition opens a recognition session. It fails with ErrSessionBusy
// while a session is active or a generation request is in flight.
func (o *Orchestrator) StartRecognition(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active != nil || o.generating > 0 {
		return "", ErrSessionBusy
	}

	p := o.newPipeline(uuid.NewString())
	o.active = p
	p.start()

	o.log.Info("recognition started", "session_id", p.id)
	return p.id, nil
}

// PushFrame feeds one frame into the active session. Late frames are
// reported as events; malformed frames are rejected.
func (o *Orchestrator) PushFrame(f frame.FeatureFrame) error {
	p, err := o.current()
	if err != nil {
		return err
	}

	return p.push(f)
}

// CheckStarvation runs the starvation check of the active session at now.
// A stalled stream force-closes any open gesture and returns
// frame.ErrInputStarvation. The watchdog calls this periodically.
func (o *Orchestrator) CheckStarvation(now time.Time) error {
	p, err := o.current()
	if err != nil {
		return err
	}
	return p.checkStarvation(now)
}

// StopRecognition ends the session. It flushes the frame buffer, waits for
// in-flight classifications, drains the reorderer and force-closes the
// segmenter before closing the final utterance. With nothing recognized it
// returns sentence.ErrEmptyUtterance.
func (o *Orchestrator) StopRecognition(ctx context.Context) (sentence.Utterance, error) {
	o.mu.Lock()
	p := o.active
	if p == nil || p.stopping {
		o.mu.Unlock()
		return sentence.Utterance{}, ErrNoSession
	}
	p.stopping = true
	o.mu.Unlock()

	u, err := p.stop(ctx)

	o.mu.Lock()
	o.active = nil
	o.mu.Unlock()

	o.log.Info("recognition stopped", "session_id", p.id)
	return u, err
}

// Close stops any active session.
func (o *Orchestrator) Close(ctx context.Context) error {
	_, err := o.StopRecognition(ctx)
	if errors.Is(err, ErrNoSession) || errors.Is(err, sentence.ErrEmptyUtterance) {
		return nil
	}
	return err
}

func (o *Orchestrator) current() (*pipeline, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil || o.active.stopping {
		return nil, ErrNoSession
	}
	return o.active, nil
}

func (o *Orchestrator) emit(kind events.Kind, sessionID, detail string) {
	o.events.Emit(events.Event{Kind: kind, SessionID: sessionID, Detail: detail, Time: o.clock()})
}

func (o *Orchestrator) notify(sessionID string, u sentence.Utterance) {
	o.mu.Lock()
	listeners := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.mu.Unlock()

	for _, l := range listeners {
		l(sessionID, u)
	}
}
