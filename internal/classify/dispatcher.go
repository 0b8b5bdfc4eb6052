package classify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ayusman/voiceheard/internal/frame"
)

// Config bounds classifier latency and parallelism.
type Config struct {
	// Timeout is the per-window latency budget.
	Timeout time.Duration
	// Concurrency is the maximum number of classifier calls in flight.
	Concurrency int
	// QueueSize is the number of windows allowed to wait for a free slot.
	// When full, the oldest waiting window is dropped.
	QueueSize int
}

// DefaultConfig returns a 150ms budget with four parallel calls.
func DefaultConfig() Config {
	return Config{
		Timeout:     150 * time.Millisecond,
		Concurrency: 4,
		QueueSize:   8,
	}
}

// Handlers receive dispatcher output. They are called from worker
// goroutines and must be safe for concurrent use.
type Handlers struct {
	// Result receives every classification, including fail-open ones.
	Result func(Result)
	// Dropped receives windows evicted from a full queue.
	Dropped func(frame.Window)
	// TimedOut receives windows whose classification overran or failed.
	TimedOut func(frame.Window, error)
}

// Dispatcher runs classifications in parallel without ever blocking the
// caller. Failures and overruns become background results.
type Dispatcher struct {
	classifier Classifier
	config     Config
	handlers   Handlers
	log        *slog.Logger

	sem   *semaphore.Weighted
	mu    sync.Mutex
	queue []frame.Window
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher. Zero config fields take defaults.
func NewDispatcher(c Classifier, config Config, handlers Handlers, log *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		classifier: c,
		config:     config,
		handlers:   handlers,
		log:        log,
		sem:        semaphore.NewWeighted(int64(config.Concurrency)),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Submit schedules a window. It never blocks on the classifier.
func (d *Dispatcher) Submit(w frame.Window) {
	d.mu.Lock()
	if !d.sem.TryAcquire(1) {
		var dropped *frame.Window
		if len(d.queue) >= d.config.QueueSize {
			oldest := d.queue[0]
			dropped = &oldest
			d.queue = d.queue[1:]
		}
		d.queue = append(d.queue, w)
		d.mu.Unlock()
		if dropped != nil && d.handlers.Dropped != nil {
			d.handlers.Dropped(*dropped)
		}
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.work(w)
}

// work classifies w and then keeps draining the queue while it has a slot.
func (d *Dispatcher) work(w frame.Window) {
	defer d.wg.Done()
	for {
		d.deliver(d.classify(w))

		d.mu.Lock()
		if len(d.queue) == 0 {
			d.sem.Release(1)
			d.mu.Unlock()
			return
		}
		w = d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
	}
}

// classify runs one call under the latency budget.
func (d *Dispatcher) classify(w frame.Window) Result {
	ctx, cancel := context.WithTimeout(d.ctx, d.config.Timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := d.classifier.Classify(ctx, w)
		done <- outcome{res, err}
	}()

	var err error
	select {
	case o := <-done:
		if o.err == nil {
			o.res.Seq, o.res.Start, o.res.End = w.Seq, w.Start, w.End
			return o.res
		}
		err = o.err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if !errors.Is(err, context.Canceled) {
		d.log.Debug("classification failed open", "seq", w.Seq, "error", err)
		if d.handlers.TimedOut != nil {
			d.handlers.TimedOut(w, err)
		}
	}
	return BackgroundResult(w)
}

func (d *Dispatcher) deliver(r Result) {
	if d.handlers.Result != nil {
		d.handlers.Result(r)
	}
}

// Wait blocks until every submitted window has been classified or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close abandons in-flight calls. Pending windows resolve as background.
func (d *Dispatcher) Close() {
	d.cancel()
}
