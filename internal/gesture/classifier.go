package gesture

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/ayusman/voiceheard/internal/classify"
	"github.com/ayusman/voiceheard/internal/frame"
)

// Template is a trained gesture: a short sequence of feature vectors.
type Template struct {
	Label     string      `json:"label"`
	Frames    [][]float64 `json:"frames"`
	Tolerance float64     `json:"tolerance"` // Maximum DTW distance for a match
}

// Match is one template's score against a window.
type Match struct {
	Template *Template
	Score    float64 // 0-1, higher is better
	Distance float64
}

// Classifier matches windows against templates. It is safe for concurrent
// use; templates can be replaced while classifications run.
type Classifier struct {
	mu        sync.RWMutex
	templates []*Template
}

// NewClassifier creates an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{templates: make([]*Template, 0)}
}

// AddTemplate adds a template, replacing any existing one with the same label.
func (c *Classifier) AddTemplate(t *Template) {
	if t == nil || t.Label == "" || len(t.Frames) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.templates {
		if existing.Label == t.Label {
			c.templates[i] = t
			return
		}
	}
	c.templates = append(c.templates, t)
}

// RemoveTemplate removes a template by label.
func (c *Classifier) RemoveTemplate(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.templates {
		if t.Label == label {
			c.templates = append(c.templates[:i], c.templates[i+1:]...)
			return
		}
	}
}

// Labels returns the template labels in insertion order.
func (c *Classifier) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.templates))
	for i, t := range c.templates {
		out[i] = t.Label
	}
	return out
}

// Match scores every template within tolerance, best first.
func (c *Classifier) Match(frames [][]float64) []Match {
	if len(frames) == 0 {
		return nil
	}

	c.mu.RLock()
	templates := append([]*Template(nil), c.templates...)
	c.mu.RUnlock()

	var matches []Match
	for _, t := range templates {
		distance := DTWDistance(frames, t.Frames)
		if math.IsInf(distance, 1) || distance > t.Tolerance {
			continue
		}
		matches = append(matches, Match{
			Template: t,
			Score:    1.0 / (1.0 + distance),
			Distance: distance,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Classify implements classify.Classifier. The best match becomes the label
// and the rest are reported as alternatives; no match means background.
func (c *Classifier) Classify(ctx context.Context, w frame.Window) (classify.Result, error) {
	if err := ctx.Err(); err != nil {
		return classify.Result{}, err
	}

	res := classify.BackgroundResult(w)

	frames := make([][]float64, len(w.Frames))
	for i, f := range w.Frames {
		frames[i] = f.Vector
	}

	matches := c.Match(frames)
	if len(matches) == 0 {
		return res, nil
	}

	res.Label = matches[0].Template.Label
	res.Confidence = matches[0].Score
	for _, m := range matches[1:] {
		res.Alternatives = append(res.Alternatives, classify.Score{
			Label:      m.Template.Label,
			Confidence: m.Score,
		})
	}
	return res, nil
}
