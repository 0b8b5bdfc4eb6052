package frame

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Config controls resampling and windowing.
type Config struct {
	// Interval is the nominal spacing of resampled frames.
	Interval time.Duration
	// WindowSize is the number of resampled frames per window.
	WindowSize int
	// StarvationTimeout is how long the buffer waits for a frame before
	// reporting starvation.
	StarvationTimeout time.Duration
}

// DefaultConfig returns 30 Hz resampling with 4-frame windows.
func DefaultConfig() Config {
	return Config{
		Interval:          33 * time.Millisecond,
		WindowSize:        4,
		StarvationTimeout: time.Second,
	}
}

// Buffer resamples pushed frames to Config.Interval. Tick t covers the bin
// [t-Interval/2, t+Interval/2) and is resolved once a frame at or past the
// bin's upper bound has arrived:
//   - several frames in a bin are averaged,
//   - a single frame is used as-is,
//   - an empty bin is linearly interpolated between its neighbours, or
//     duplicated from the nearest frame when there is no earlier one.
//
// Interpolation never spans more than StarvationTimeout. A frame arriving
// further past the latest one restarts resampling at its own bin and the
// next window carries the skipped duration in Window.Gap.
type Buffer struct {
	config Config
	clock  func() time.Time

	mu          sync.Mutex
	dim         int
	origin      time.Duration
	started     bool
	nextTick    time.Duration
	prev        *FeatureFrame
	latest      time.Duration
	gap         time.Duration
	pending     []FeatureFrame
	resolved    []FeatureFrame
	windowSeq   uint64
	frameSeq    uint64
	lastArrival time.Time
	starved     bool
}

// NewBuffer creates a Buffer. A nil clock uses time.Now.
func NewBuffer(config Config, clock func() time.Time) *Buffer {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.WindowSize <= 0 {
		config.WindowSize = def.WindowSize
	}
	if config.StarvationTimeout <= 0 {
		config.StarvationTimeout = def.StarvationTimeout
	}
	if clock == nil {
		clock = time.Now
	}
	return &Buffer{
		config:      config,
		clock:       clock,
		lastArrival: clock(),
	}
}

// Config returns the effective configuration.
func (b *Buffer) Config() Config {
	return b.config
}

// Push adds a frame and returns any windows that became complete.
func (b *Buffer) Push(f FeatureFrame) ([]Window, error) {
	if len(f.Vector) == 0 {
		return nil, fmt.Errorf("empty vector: %w", ErrMalformedFrame)
	}
	for _, v := range f.Vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite value: %w", ErrMalformedFrame)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dim == 0 {
		b.dim = len(f.Vector)
	} else if len(f.Vector) != b.dim {
		return nil, fmt.Errorf("vector has %d values, expected %d: %w", len(f.Vector), b.dim, ErrMalformedFrame)
	}

	b.lastArrival = b.clock()
	b.starved = false

	var out []Window
	switch {
	case !b.started:
		b.started = true
		b.origin = f.Timestamp
		b.nextTick = f.Timestamp
		b.latest = f.Timestamp
	case f.Timestamp < b.horizon():
		return nil, fmt.Errorf("frame at %v before %v: %w", f.Timestamp, b.horizon(), ErrLateFrame)
	case f.Timestamp-b.latest > b.config.StarvationTimeout:
		out = b.skipGap(f.Timestamp)
	}
	b.latest = max(b.latest, f.Timestamp)

	f.Vector = append([]float64(nil), f.Vector...)
	i := sort.Search(len(b.pending), func(i int) bool {
		return b.pending[i].Timestamp > f.Timestamp
	})
	b.pending = append(b.pending, FeatureFrame{})
	copy(b.pending[i+1:], b.pending[i:])
	b.pending[i] = f

	b.resolve(false)
	return append(out, b.takeWindows(false)...), nil
}

// skipGap closes out everything before a stall and moves resampling to the
// bin holding ts, so the stalled span is never interpolated.
func (b *Buffer) skipGap(ts time.Duration) []Window {
	b.resolve(true)
	out := b.takeWindows(true)

	bins := int64((ts - b.origin + b.config.Interval/2) / b.config.Interval)
	b.nextTick = max(b.nextTick, b.origin+time.Duration(bins)*b.config.Interval)
	b.gap += ts - b.latest
	b.prev = nil
	b.pending = b.pending[:0]
	return out
}

// horizon is the lower bound of the first unresolved bin.
func (b *Buffer) horizon() time.Duration {
	return b.nextTick - b.config.Interval/2
}

// resolve turns complete bins into resampled frames. With force set, every
// bin up to the latest pending frame is resolved.
func (b *Buffer) resolve(force bool) {
	half := b.config.Interval / 2
	for len(b.pending) > 0 {
		latest := b.pending[len(b.pending)-1].Timestamp
		upper := b.nextTick + (b.config.Interval - half)
		if latest < upper && !(force && latest >= b.nextTick-half) {
			return
		}

		n := 0
		for n < len(b.pending) && b.pending[n].Timestamp < upper {
			n++
		}

		var vec []float64
		switch {
		case n > 0:
			vec = average(b.pending[:n])
			last := b.pending[n-1]
			b.prev = &last
			b.pending = b.pending[n:]
		case b.prev == nil:
			vec = append([]float64(nil), b.pending[0].Vector...)
		default:
			next := b.pending[0]
			span := float64(next.Timestamp - b.prev.Timestamp)
			t := 0.0
			if span > 0 {
				t = float64(b.nextTick-b.prev.Timestamp) / span
			}
			vec = lerp(b.prev.Vector, next.Vector, t)
		}

		b.resolved = append(b.resolved, FeatureFrame{
			Timestamp: b.nextTick,
			Vector:    vec,
			Seq:       b.frameSeq,
		})
		b.frameSeq++
		b.nextTick += b.config.Interval
	}
}

// takeWindows cuts resolved frames into windows. With partial set, a final
// short window is emitted too.
func (b *Buffer) takeWindows(partial bool) []Window {
	var out []Window
	size := b.config.WindowSize
	for len(b.resolved) >= size || (partial && len(b.resolved) > 0) {
		n := min(size, len(b.resolved))
		frames := append([]FeatureFrame(nil), b.resolved[:n]...)
		b.resolved = b.resolved[n:]
		out = append(out, Window{
			Seq:    b.windowSeq,
			Start:  frames[0].Timestamp,
			End:    frames[n-1].Timestamp + b.config.Interval,
			Frames: frames,
			Gap:    b.gap,
		})
		b.gap = 0
		b.windowSeq++
	}
	return out
}

// Flush resolves every pending frame and returns the remaining windows,
// including a final partial one.
func (b *Buffer) Flush() []Window {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resolve(true)
	return b.takeWindows(true)
}

// CheckStarvation returns ErrInputStarvation when no frame arrived within
// the starvation timeout. It reports each stall once; the next pushed frame
// re-arms it.
func (b *Buffer) CheckStarvation(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.starved {
		return nil
	}
	idle := now.Sub(b.lastArrival)
	if idle < b.config.StarvationTimeout {
		return nil
	}
	b.starved = true
	return fmt.Errorf("no frame for %v: %w", idle.Round(time.Millisecond), ErrInputStarvation)
}

// Elapsed returns the stream time covered so far.
func (b *Buffer) Elapsed() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return 0
	}
	return b.nextTick - b.origin
}
