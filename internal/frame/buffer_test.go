package frame

import (
	"errors"
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func vec(v ...float64) []float64 { return v }

func newTestBuffer(windowSize int) *Buffer {
	return NewBuffer(Config{Interval: ms(100), WindowSize: windowSize, StarvationTimeout: time.Second}, nil)
}

func pushAll(t *testing.T, b *Buffer, frames ...FeatureFrame) []Window {
	t.Helper()
	var out []Window
	for _, f := range frames {
		w, err := b.Push(f)
		if err != nil {
			t.Fatalf("Push(%v) error = %v", f.Timestamp, err)
		}
		out = append(out, w...)
	}
	return out
}

func TestBuffer_NominalRate(t *testing.T) {
	b := newTestBuffer(2)

	windows := pushAll(t, b,
		FeatureFrame{Timestamp: ms(0), Vector: vec(1)},
		FeatureFrame{Timestamp: ms(100), Vector: vec(2)},
		FeatureFrame{Timestamp: ms(200), Vector: vec(3)},
		FeatureFrame{Timestamp: ms(300), Vector: vec(4)},
		FeatureFrame{Timestamp: ms(400), Vector: vec(5)},
	)

	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	w := windows[0]
	if w.Seq != 0 || w.Start != 0 || w.End != ms(200) {
		t.Errorf("first window = seq %d [%v,%v), want seq 0 [0,200ms)", w.Seq, w.Start, w.End)
	}
	if windows[1].Seq != 1 || windows[1].Start != ms(200) {
		t.Errorf("second window = seq %d start %v, want seq 1 start 200ms", windows[1].Seq, windows[1].Start)
	}
	if windows[0].End != windows[1].Start {
		t.Error("windows must be contiguous")
	}
	if got := windows[1].Frames[1].Vector[0]; got != 4 {
		t.Errorf("frame at 300ms = %f, want 4", got)
	}
}

func TestBuffer_DenseInputIsAveraged(t *testing.T) {
	b := newTestBuffer(1)

	windows := pushAll(t, b,
		FeatureFrame{Timestamp: ms(0), Vector: vec(1)},
		FeatureFrame{Timestamp: ms(20), Vector: vec(2)},
		FeatureFrame{Timestamp: ms(40), Vector: vec(3)},
		FeatureFrame{Timestamp: ms(60), Vector: vec(10)},
	)

	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if got := windows[0].Frames[0].Vector[0]; math.Abs(got-2) > epsilon {
		t.Errorf("averaged value = %f, want 2", got)
	}
}

func TestBuffer_SparseInputIsInterpolated(t *testing.T) {
	b := newTestBuffer(1)

	windows := pushAll(t, b,
		FeatureFrame{Timestamp: ms(0), Vector: vec(0)},
		FeatureFrame{Timestamp: ms(300), Vector: vec(3)},
	)

	if len(windows) != 3 {
		t.Fatalf("expected 3 windows (0, 100, 200ms), got %d", len(windows))
	}
	want := []float64{0, 1, 2}
	for i, w := range windows {
		if got := w.Frames[0].Vector[0]; math.Abs(got-want[i]) > epsilon {
			t.Errorf("tick %d value = %f, want %f", i, got, want[i])
		}
		if w.Frames[0].Timestamp != ms(100*i) {
			t.Errorf("tick %d timestamp = %v, want %v", i, w.Frames[0].Timestamp, ms(100*i))
		}
	}
}

func TestBuffer_OutOfOrderWithinOpenBin(t *testing.T) {
	b := newTestBuffer(1)

	windows := pushAll(t, b,
		FeatureFrame{Timestamp: ms(0), Vector: vec(0)},
		FeatureFrame{Timestamp: ms(130), Vector: vec(4)},
		FeatureFrame{Timestamp: ms(70), Vector: vec(2)},
		FeatureFrame{Timestamp: ms(240), Vector: vec(8)},
	)

	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if got := windows[1].Frames[0].Vector[0]; math.Abs(got-3) > epsilon {
		t.Errorf("bin at 100ms = %f, want average 3", got)
	}
}

func TestBuffer_LateFrame(t *testing.T) {
	b := newTestBuffer(1)
	pushAll(t, b,
		FeatureFrame{Timestamp: ms(0), Vector: vec(0)},
		FeatureFrame{Timestamp: ms(200), Vector: vec(2)},
	)

	_, err := b.Push(FeatureFrame{Timestamp: ms(10), Vector: vec(1)})
	if !errors.Is(err, ErrLateFrame) {
		t.Errorf("expected ErrLateFrame, got %v", err)
	}
}

func TestBuffer_Malformed(t *testing.T) {
	b := newTestBuffer(1)

	if _, err := b.Push(FeatureFrame{Timestamp: 0}); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("empty vector: expected ErrMalformedFrame, got %v", err)
	}
	if _, err := b.Push(FeatureFrame{Vector: vec(math.NaN())}); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("NaN: expected ErrMalformedFrame, got %v", err)
	}

	pushAll(t, b, FeatureFrame{Timestamp: 0, Vector: vec(1, 2)})
	if _, err := b.Push(FeatureFrame{Timestamp: ms(10), Vector: vec(1)}); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("dimension mismatch: expected ErrMalformedFrame, got %v", err)
	}
}

func TestBuffer_FlushEmitsPartialWindow(t *testing.T) {
	b := newTestBuffer(4)
	windows := pushAll(t, b,
		FeatureFrame{Timestamp: ms(0), Vector: vec(1)},
		FeatureFrame{Timestamp: ms(100), Vector: vec(1)},
		FeatureFrame{Timestamp: ms(200), Vector: vec(1)},
	)
	if len(windows) != 0 {
		t.Fatalf("expected no complete window yet, got %d", len(windows))
	}

	flushed := b.Flush()
	if len(flushed) != 1 {
		t.Fatalf("expected 1 flushed window, got %d", len(flushed))
	}
	if n := len(flushed[0].Frames); n != 3 {
		t.Errorf("flushed window has %d frames, want 3", n)
	}
	if flushed[0].End != ms(300) {
		t.Errorf("flushed window end = %v, want 300ms", flushed[0].End)
	}
	if again := b.Flush(); len(again) != 0 {
		t.Errorf("second flush should be empty, got %d windows", len(again))
	}
}

func TestBuffer_CheckStarvation(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	b := NewBuffer(Config{Interval: ms(100), WindowSize: 1, StarvationTimeout: ms(500)}, clock)

	if err := b.CheckStarvation(now.Add(ms(400))); err != nil {
		t.Errorf("expected no starvation before timeout, got %v", err)
	}
	if err := b.CheckStarvation(now.Add(ms(600))); !errors.Is(err, ErrInputStarvation) {
		t.Errorf("expected ErrInputStarvation, got %v", err)
	}
	if err := b.CheckStarvation(now.Add(ms(900))); err != nil {
		t.Errorf("starvation should be reported once per stall, got %v", err)
	}

	now = now.Add(ms(1000))
	pushAll(t, b, FeatureFrame{Timestamp: 0, Vector: vec(1)})
	if err := b.CheckStarvation(now.Add(ms(100))); err != nil {
		t.Errorf("push should re-arm the check, got %v", err)
	}
	if err := b.CheckStarvation(now.Add(ms(600))); !errors.Is(err, ErrInputStarvation) {
		t.Errorf("expected a second stall report, got %v", err)
	}
}

func TestBuffer_GapBeyondStarvationTimeout(t *testing.T) {
	b := newTestBuffer(4)

	before := pushAll(t, b,
		FeatureFrame{Timestamp: ms(0), Vector: vec(1)},
		FeatureFrame{Timestamp: ms(100), Vector: vec(2)},
		FeatureFrame{Timestamp: ms(200), Vector: vec(3)},
	)
	if len(before) != 0 {
		t.Fatalf("expected no windows before the gap, got %d", len(before))
	}

	resume := 2 * time.Hour
	windows := pushAll(t, b, FeatureFrame{Timestamp: resume, Vector: vec(9)})
	if len(windows) != 1 {
		t.Fatalf("expected only the pre-gap partial window, got %d windows", len(windows))
	}
	if w := windows[0]; w.Start != 0 || len(w.Frames) != 3 || w.Gap != 0 {
		t.Errorf("pre-gap window = start %v, %d frames, gap %v; want start 0, 3 frames, no gap", w.Start, len(w.Frames), w.Gap)
	}

	windows = pushAll(t, b,
		FeatureFrame{Timestamp: resume + ms(100), Vector: vec(9)},
		FeatureFrame{Timestamp: resume + ms(200), Vector: vec(9)},
		FeatureFrame{Timestamp: resume + ms(300), Vector: vec(9)},
		FeatureFrame{Timestamp: resume + ms(400), Vector: vec(9)},
	)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window after the gap, got %d", len(windows))
	}
	w := windows[0]
	if w.Seq != 1 || w.Start != resume {
		t.Errorf("post-gap window = seq %d start %v, want seq 1 start %v", w.Seq, w.Start, resume)
	}
	if want := resume - ms(200); w.Gap != want {
		t.Errorf("Gap = %v, want %v", w.Gap, want)
	}
	for _, fr := range w.Frames {
		if fr.Vector[0] != 9 {
			t.Errorf("frame at %v = %f, want 9 (no interpolation across the gap)", fr.Timestamp, fr.Vector[0])
		}
	}

	if _, err := b.Push(FeatureFrame{Timestamp: ms(300), Vector: vec(1)}); !errors.Is(err, ErrLateFrame) {
		t.Errorf("pre-gap frame after resume: error = %v, want ErrLateFrame", err)
	}
}

func TestBuffer_ShortGapIsInterpolated(t *testing.T) {
	b := newTestBuffer(1)

	windows := pushAll(t, b,
		FeatureFrame{Timestamp: ms(0), Vector: vec(0)},
		FeatureFrame{Timestamp: ms(1000), Vector: vec(10)},
	)
	if len(windows) != 10 {
		t.Fatalf("expected 10 windows across a gap equal to the timeout, got %d", len(windows))
	}
	if got := windows[5].Frames[0].Vector[0]; math.Abs(got-5) > epsilon {
		t.Errorf("interpolated value at 500ms = %f, want 5", got)
	}
	for _, w := range windows {
		if w.Gap != 0 {
			t.Errorf("window %d Gap = %v, want 0", w.Seq, w.Gap)
		}
	}
}

func TestBuffer_PushCopiesVector(t *testing.T) {
	b := newTestBuffer(1)
	v := vec(1)
	pushAll(t, b, FeatureFrame{Timestamp: 0, Vector: v})
	v[0] = 99

	windows := pushAll(t, b, FeatureFrame{Timestamp: ms(100), Vector: vec(1)})
	if got := windows[0].Frames[0].Vector[0]; got != 1 {
		t.Errorf("buffer must not alias caller vectors, got %f", got)
	}
}

func TestWindow_Mean(t *testing.T) {
	w := Window{Frames: []FeatureFrame{{Vector: vec(1, 4)}, {Vector: vec(3, 8)}}}
	m := w.Mean()
	if m[0] != 2 || m[1] != 6 {
		t.Errorf("Mean() = %v, want [2 6]", m)
	}
	if w.Dim() != 2 {
		t.Errorf("Dim() = %d, want 2", w.Dim())
	}
	if (Window{}).Mean() != nil {
		t.Error("Mean of empty window should be nil")
	}
}
