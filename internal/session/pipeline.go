package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/voiceheard/internal/classify"
	"github.com/ayusman/voiceheard/internal/events"
	"github.com/ayusman/voiceheard/internal/frame"
	"github.com/ayusman/voiceheard/internal/segment"
	"github.com/ayusman/voiceheard/internal/sentence"
	"github.com/ayusman/voiceheard/internal/store"
)

// pipeline is one recognition session.
type pipeline struct {
	o          *Orchestrator
	id         string
	buffer     *frame.Buffer
	dispatcher *classify.Dispatcher

	// stopping is guarded by Orchestrator.mu.
	stopping bool

	// ingest serializes PushFrame against the final flush.
	ingest sync.RWMutex
	sealed bool

	mu        sync.Mutex
	reorder   *classify.Reorderer
	segmenter *segment.Segmenter
	assembler *sentence.Assembler
	gaps      map[uint64]time.Duration // window seq -> skipped stream time
	outbox    []sentence.Utterance
	closed    bool

	wake      chan struct{}
	published sync.WaitGroup

	watchdogStop chan struct{}
	watchdogDone chan struct{}
}

func (o *Orchestrator) newPipeline(id string) *pipeline {
	table := o.config.Vocabulary.Gestures
	p := &pipeline{
		o:         o,
		id:        id,
		buffer:    frame.NewBuffer(o.config.Frame, o.clock),
		reorder:   classify.NewReorderer(o.config.ReorderWindow),
		segmenter: segment.New(o.config.Segment, table.Position),
		assembler: sentence.NewAssembler(table, o.config.EndTimeout),
		gaps:      make(map[uint64]time.Duration),
		wake:      make(chan struct{}, 1),
	}
	p.dispatcher = classify.NewDispatcher(o.config.Classifier, o.config.Classify, classify.Handlers{
		Result:   p.onResult,
		Dropped:  p.onDropped,
		TimedOut: p.onTimedOut,
	}, o.log.With("session_id", id))
	return p
}

func (p *pipeline) start() {
	p.published.Add(1)
	go p.publish()

	interval := p.o.config.WatchdogInterval
	if interval == 0 {
		interval = p.buffer.Config().StarvationTimeout / 4
	}
	if interval > 0 {
		p.watchdogStop = make(chan struct{})
		p.watchdogDone = make(chan struct{})
		go p.watchdog(interval)
	}
}

func (p *pipeline) push(f frame.FeatureFrame) error {
	p.ingest.RLock()
	defer p.ingest.RUnlock()

	if p.sealed {
		return ErrNoSession
	}
	windows, err := p.buffer.Push(f)
	if errors.Is(err, frame.ErrLateFrame) {
		p.o.emit(events.LateFrame, p.id, err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	p.submit(windows)
	return nil
}

// submit hands windows to the dispatcher, noting any that follow a stall.
func (p *pipeline) submit(windows []frame.Window) {
	for _, w := range windows {
		if w.Gap > 0 {
			p.mu.Lock()
			p.gaps[w.Seq] = w.Gap
			p.mu.Unlock()
		}
		p.dispatcher.Submit(w)
	}
}

func (p *pipeline) watchdog(interval time.Duration) {
	defer close(p.watchdogDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.watchdogStop:
			return
		case <-ticker.C:
			_ = p.checkStarvation(p.o.clock())
		}
	}
}

func (p *pipeline) checkStarvation(now time.Time) error {
	err := p.buffer.CheckStarvation(now)
	if err == nil {
		return nil
	}
	p.o.emit(events.InputStarvation, p.id, err.Error())

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stall()
	return err
}

// stall ends the current gesture and the open utterance once input has
// stopped. Callers hold p.mu.
func (p *pipeline) stall() {
	if tok, ok := p.segmenter.ForceClose(); ok {
		p.o.log.Debug("gesture force-closed on starvation", "session_id", p.id, "label", tok.Label, "low_confidence", tok.LowConfidence)
		p.addToken(tok)
	}
	u, _ := p.assembler.Expire()
	p.send(u)
}

// resume treats a gap recorded at or before seq as a stall. Callers hold
// p.mu.
func (p *pipeline) resume(seq uint64) {
	for s, gap := range p.gaps {
		if s > seq {
			continue
		}
		delete(p.gaps, s)
		p.o.emit(events.InputStarvation, p.id, "stream gap of "+gap.String())
		p.stall()
	}
}

func (p *pipeline) onResult(r classify.Result) {
	r, unknown := classify.Sanitize(r, p.o.config.Vocabulary.Gestures.Contains)
	for _, label := range unknown {
		p.o.emit(events.UnknownGestureVocabulary, p.id, label)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ready, err := p.reorder.Add(r)
	if err != nil {
		p.o.emit(events.LateFrame, p.id, err.Error())
		return
	}
	p.observe(ready)
}

func (p *pipeline) onDropped(w frame.Window) {
	p.o.emit(events.FrameDropped, p.id, w.Start.String())

	p.mu.Lock()
	defer p.mu.Unlock()
	p.observe(p.reorder.Skip(w.Seq))
}

func (p *pipeline) onTimedOut(w frame.Window, err error) {
	p.o.emit(events.ClassifierTimeout, p.id, err.Error())
}

// observe feeds ordered results through the segmenter and assembler.
// Callers hold p.mu.
func (p *pipeline) observe(results []classify.Result) {
	for _, r := range results {
		if len(p.gaps) > 0 {
			p.resume(r.Seq)
		}
		if tok, ok := p.segmenter.Observe(r); ok {
			p.addToken(tok)
		}
		u, _ := p.assembler.Advance(r.End)
		p.send(u)
	}
}

// addToken passes tok to the assembler. Callers hold p.mu.
func (p *pipeline) addToken(tok segment.Token) {
	u, err := p.assembler.Add(tok)
	if errors.Is(err, sentence.ErrEmptyUtterance) {
		p.o.emit(events.EmptyUtterance, p.id, tok.Label)
		return
	}
	p.send(u)
}

// send queues a closed utterance for the publisher without blocking.
// Callers hold p.mu.
func (p *pipeline) send(u *sentence.Utterance) {
	if u == nil || p.closed {
		return
	}
	p.outbox = append(p.outbox, *u)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// publish finishes mid-session utterances in close order.
func (p *pipeline) publish() {
	defer p.published.Done()
	for {
		_, open := <-p.wake
		p.mu.Lock()
		batch := p.outbox
		p.outbox = nil
		p.mu.Unlock()

		for _, u := range batch {
			p.o.finish(p.id, u)
		}
		if !open {
			return
		}
	}
}

// snapshot returns the segmenter state and the open utterance text.
func (p *pipeline) snapshot() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.segmenter.State().String(), p.assembler.Partial()
}

// stop drains the session and returns its final utterance.
func (p *pipeline) stop(ctx context.Context) (sentence.Utterance, error) {
	if p.watchdogStop != nil {
		close(p.watchdogStop)
		<-p.watchdogDone
	}

	p.ingest.Lock()
	p.sealed = true
	p.submit(p.buffer.Flush())
	p.ingest.Unlock()

	if err := p.dispatcher.Wait(ctx); err != nil {
		p.o.log.Warn("abandoning in-flight classifications", "session_id", p.id, "error", err)
		p.dispatcher.Close()
		_ = p.dispatcher.Wait(context.Background())
	}
	p.dispatcher.Close()

	p.mu.Lock()
	p.observe(p.reorder.Flush())
	if tok, ok := p.segmenter.ForceClose(); ok {
		p.addToken(tok)
	}
	final, err := p.assembler.Close()
	p.closed = true
	close(p.wake)
	p.mu.Unlock()

	p.published.Wait()

	if err != nil {
		p.o.emit(events.EmptyUtterance, p.id, "nothing recognized")
		return sentence.Utterance{}, err
	}
	return p.o.finish(p.id, *final), nil
}

// finish translates u, records it and notifies listeners. It runs outside
// every lock.
func (o *Orchestrator) finish(sessionID string, u sentence.Utterance) sentence.Utterance {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.FinishTimeout)
	defer cancel()

	if o.config.Translator != nil && o.config.TargetLang != "" {
		res, err := o.config.Translator.Translate(ctx, u.Text, o.config.TargetLang)
		if err != nil {
			o.emit(events.TranslationUnavailable, sessionID, err.Error())
		} else if res.Translated {
			u.Translation, u.TranslationLang = res.Text, res.TargetLang
		}
	}

	if o.config.History != nil {
		output := u.Text
		if u.Translation != "" {
			output = u.Translation
		}
		rec := store.HistoryRecord{
			Direction: store.DirectionRecognition,
			Input:     strings.Join(labels(u), " "),
			Output:    output,
		}
		if err := o.config.History.Append(ctx, rec); err != nil {
			o.log.Error("failed to record history", "session_id", sessionID, "error", err)
		}
	}

	o.log.Info("utterance closed", "session_id", sessionID, "utterance_id", u.ID, "reason", u.Reason, "words", len(u.Words))
	o.notify(sessionID, u)
	return u
}

func labels(u sentence.Utterance) []string {
	out := make([]string, len(u.Tokens))
	for i, t := range u.Tokens {
		out[i] = t.Label
	}
	return out
}
