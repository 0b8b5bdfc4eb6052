package gesture

import (
	"encoding/json"
	"fmt"
)

// DefaultTolerance is the DTW distance templates accept when none is given.
const DefaultTolerance = 0.35

// Trainer processes recorded samples into gesture templates.
type Trainer struct{}

// NewTrainer creates a new Trainer instance.
func NewTrainer() *Trainer {
	return &Trainer{}
}

// Sample is one recorded performance of a gesture.
type Sample struct {
	Frames    [][]float64 `json:"frames"`
	Timestamp int64       `json:"timestamp"`
}

// Train averages recorded samples into a template. Samples are resampled to
// the first sample's length before averaging so performances of different
// speed line up.
func (t *Trainer) Train(label string, samples []json.RawMessage, tolerance float64) (*Template, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var all [][][]float64
	for i, raw := range samples {
		var sample Sample
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if len(sample.Frames) == 0 {
			return nil, fmt.Errorf("sample %d has no frames", i)
		}
		all = append(all, sample.Frames)
	}

	dim := len(all[0][0])
	for i, seq := range all {
		for j, f := range seq {
			if len(f) != dim {
				return nil, fmt.Errorf("sample %d frame %d has %d values, expected %d", i, j, len(f), dim)
			}
		}
	}

	target := len(all[0])
	averaged := make([][]float64, target)
	for i := range averaged {
		averaged[i] = make([]float64, dim)
	}

	for _, seq := range all {
		resampled := resample(seq, target)
		for i, f := range resampled {
			for k, v := range f {
				averaged[i][k] += v
			}
		}
	}

	n := float64(len(all))
	for i := range averaged {
		for k := range averaged[i] {
			averaged[i][k] /= n
		}
	}

	return &Template{Label: label, Frames: averaged, Tolerance: tolerance}, nil
}

// resample stretches or shrinks seq to exactly target frames using linear
// interpolation.
func resample(seq [][]float64, target int) [][]float64 {
	if len(seq) == 0 {
		return nil
	}
	if len(seq) == 1 || target <= 1 {
		out := make([][]float64, max(target, 1))
		for i := range out {
			out[i] = append([]float64(nil), seq[0]...)
		}
		return out
	}

	out := make([][]float64, target)
	for i := 0; i < target; i++ {
		pos := float64(i) / float64(target-1) * float64(len(seq)-1)

		idx := int(pos)
		if idx >= len(seq)-1 {
			idx = len(seq) - 2
		}
		frac := pos - float64(idx)

		a, b := seq[idx], seq[idx+1]
		f := make([]float64, len(a))
		for k := range a {
			f[k] = a[k] + frac*(b[k]-a[k])
		}
		out[i] = f
	}
	return out
}
