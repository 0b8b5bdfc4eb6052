// Package classify defines the gesture classifier capability and the
// plumbing that keeps it from stalling the recognition pipeline.
package classify

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/voiceheard/internal/frame"
	"github.com/ayusman/voiceheard/internal/vocab"
)

// Background is the label for windows without a gesture.
const Background = vocab.Background

// ErrLateResult is reported for results that arrive after their sequence
// has already been passed on.
var ErrLateResult = errors.New("late classification result")

// Score is one label's confidence.
type Score struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result is the classifier verdict for one window. Alternatives may carry the
// confidence of other labels; the segmenter uses them to resolve ties.
type Result struct {
	Seq          uint64        `json:"seq"`
	Start        time.Duration `json:"start"`
	End          time.Duration `json:"end"`
	Label        string        `json:"label"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Score       `json:"alternatives,omitempty"`
}

// Scores returns the primary label followed by the alternatives.
func (r Result) Scores() []Score {
	out := make([]Score, 0, 1+len(r.Alternatives))
	out = append(out, Score{Label: r.Label, Confidence: r.Confidence})
	return append(out, r.Alternatives...)
}

// Classifier labels a window of feature frames. Implementations should honour
// ctx; the dispatcher abandons calls that overrun their budget either way.
type Classifier interface {
	Classify(ctx context.Context, w frame.Window) (Result, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, w frame.Window) (Result, error)

// Classify calls f(ctx, w).
func (f ClassifierFunc) Classify(ctx context.Context, w frame.Window) (Result, error) {
	return f(ctx, w)
}

// BackgroundResult is the fail-open verdict for w.
func BackgroundResult(w frame.Window) Result {
	return Result{Seq: w.Seq, Start: w.Start, End: w.End, Label: Background}
}

// Sanitize clamps confidences to [0,1] and turns labels outside the
// vocabulary into background. It returns the cleaned result and the unknown
// labels it saw.
func Sanitize(r Result, known func(label string) bool) (Result, []string) {
	var unknown []string

	r.Confidence = clamp(r.Confidence)
	if r.Label != Background && !known(r.Label) {
		unknown = append(unknown, r.Label)
		r.Label = Background
		r.Confidence = 0
	}

	var alts []Score
	for _, a := range r.Alternatives {
		if a.Label == Background {
			continue
		}
		if !known(a.Label) {
			unknown = append(unknown, a.Label)
			continue
		}
		alts = append(alts, Score{Label: a.Label, Confidence: clamp(a.Confidence)})
	}
	r.Alternatives = alts
	return r, unknown
}

func clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
