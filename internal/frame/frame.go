// Package frame turns a bursty stream of feature frames into fixed-rate
// classification windows.
package frame

import (
	"errors"
	"time"
)

var (
	// ErrInputStarvation is returned when no frame arrived within the
	// starvation timeout.
	ErrInputStarvation = errors.New("input starvation")
	// ErrLateFrame is returned for frames older than the resolved horizon.
	ErrLateFrame = errors.New("late frame")
	// ErrMalformedFrame is returned for frames that cannot be used at all.
	ErrMalformedFrame = errors.New("malformed frame")
)

// FeatureFrame is one feature vector at a stream-relative timestamp.
type FeatureFrame struct {
	Timestamp time.Duration `json:"timestamp"`
	Vector    []float64     `json:"vector"`
	Seq       uint64        `json:"seq"`
}

// Window is a fixed number of resampled frames handed to the classifier.
// Windows of one stream are contiguous and never overlap.
type Window struct {
	Seq    uint64
	Start  time.Duration
	End    time.Duration
	Frames []FeatureFrame
	// Gap is the stream time skipped before this window because input
	// stalled for longer than the starvation timeout.
	Gap time.Duration
}

// Dim returns the vector dimension of the window, 0 when empty.
func (w Window) Dim() int {
	if len(w.Frames) == 0 {
		return 0
	}
	return len(w.Frames[0].Vector)
}

// Mean returns the element-wise average of the window's vectors.
func (w Window) Mean() []float64 {
	return average(w.Frames)
}

func average(frames []FeatureFrame) []float64 {
	if len(frames) == 0 {
		return nil
	}
	out := make([]float64, len(frames[0].Vector))
	for _, f := range frames {
		for i := range out {
			out[i] += f.Vector[i]
		}
	}
	n := float64(len(frames))
	for i := range out {
		out[i] /= n
	}
	return out
}

func lerp(a, b []float64, t float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + t*(b[i]-a[i])
	}
	return out
}
