// Package gloss plans sign animations: text in, an ordered timeline of sign
// glosses with durations and transition hints out.
package gloss

import (
	"errors"
	"time"
)

// ErrEmptyInput is returned when text holds no words.
var ErrEmptyInput = errors.New("empty input")

// Transition is the hint for how a gloss joins the next one.
type Transition string

const (
	TransitionCut   Transition = "cut"
	TransitionBlend Transition = "blend"
	TransitionHold  Transition = "hold" // final gloss
)

// Gloss is one sign to animate.
type Gloss struct {
	ID                 string        `json:"id"`
	Word               string        `json:"word"`
	Duration           time.Duration `json:"duration"`
	Transition         Transition    `json:"transition"`
	TransitionDuration time.Duration `json:"transition_duration"`
	FingerSpelled      bool          `json:"finger_spelled,omitempty"`
}

// TimedGloss is a gloss placed at an absolute offset.
type TimedGloss struct {
	Gloss
	Start time.Duration `json:"start"`
}

// End returns when the gloss itself finishes, before its transition.
func (g TimedGloss) End() time.Duration {
	return g.Start + g.Duration
}

// Timeline is the planned animation handed to the renderer.
type Timeline struct {
	Glosses           []TimedGloss  `json:"glosses"`
	Duration          time.Duration `json:"duration"`
	DictionaryVersion string        `json:"dictionary_version"`
	RulesVersion      string        `json:"rules_version"`
	Unmapped          []string      `json:"unmapped,omitempty"`
}

// IDs returns the gloss identifiers in order.
func (t Timeline) IDs() []string {
	ids := make([]string, len(t.Glosses))
	for i, g := range t.Glosses {
		ids[i] = g.ID
	}
	return ids
}

// HandshapeDistance reports how far apart the end handshape of gloss a and
// the start handshape of gloss b are.
type HandshapeDistance interface {
	Distance(a, b string) (float64, error)
}

// DistanceFunc adapts a function to HandshapeDistance.
type DistanceFunc func(a, b string) (float64, error)

// Distance calls f(a, b).
func (f DistanceFunc) Distance(a, b string) (float64, error) {
	return f(a, b)
}

// Config holds planner timings.
type Config struct {
	BaseDuration   time.Duration // per dictionary sign, and base of a spelled word
	LetterDuration time.Duration // added per finger-spelled letter
	BlendDuration  time.Duration
	BlendThreshold float64
}

// DefaultConfig returns the default planner timings.
func DefaultConfig() Config {
	return Config{
		BaseDuration:   600 * time.Millisecond,
		LetterDuration: 250 * time.Millisecond,
		BlendDuration:  120 * time.Millisecond,
		BlendThreshold: 0.5,
	}
}
