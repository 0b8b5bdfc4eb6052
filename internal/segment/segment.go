// Package segment turns the per-window classifier stream into discrete
// gesture tokens. Separate rise and hold thresholds plus a minimum duration
// keep jittery classifier output from fragmenting or inventing gestures.
package segment

import (
	"fmt"
	"time"

	"github.com/ayusman/voiceheard/internal/classify"
)

// State is the segmenter state.
type State int

const (
	Idle State = iota
	Candidate
	Committed
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Candidate:
		return "CANDIDATE"
	case Committed:
		return "COMMITTED"
	case Cooldown:
		return "COOLDOWN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the hysteresis thresholds and timings. All durations are in
// stream time.
type Config struct {
	Rise        float64       // confidence that opens a candidate
	Hold        float64       // confidence that keeps a candidate or commit alive
	Commit      float64       // smoothed confidence needed to commit
	Grace       time.Duration // tolerated dip below Hold
	MinDuration time.Duration
	Cooldown    time.Duration
	Smoothing   float64 // EMA weight of the newest window
}

// DefaultConfig returns placeholder thresholds awaiting calibration against
// real classifier output.
func DefaultConfig() Config {
	return Config{
		Rise:        0.6,
		Hold:        0.4,
		Commit:      0.7,
		Grace:       200 * time.Millisecond,
		MinDuration: 300 * time.Millisecond,
		Cooldown:    150 * time.Millisecond,
		Smoothing:   0.3,
	}
}

// Validate checks threshold ordering and ranges.
func (c Config) Validate() error {
	for _, v := range []float64{c.Rise, c.Hold, c.Commit} {
		if v < 0 || v > 1 {
			return fmt.Errorf("thresholds must be within [0,1], got %.2f", v)
		}
	}
	if c.Hold > c.Rise {
		return fmt.Errorf("hold threshold %.2f exceeds rise threshold %.2f", c.Hold, c.Rise)
	}
	if c.Commit < c.Hold {
		return fmt.Errorf("commit threshold %.2f is below hold threshold %.2f", c.Commit, c.Hold)
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		return fmt.Errorf("smoothing must be within (0,1], got %.2f", c.Smoothing)
	}
	if c.Grace < 0 || c.MinDuration < 0 || c.Cooldown < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Token is a committed, time-bounded gesture.
type Token struct {
	Label         string        `json:"label"`
	Start         time.Duration `json:"start"`
	End           time.Duration `json:"end"`
	Confidence    float64       `json:"confidence"`
	LowConfidence bool          `json:"low_confidence,omitempty"`
}

// Duration returns End - Start.
func (t Token) Duration() time.Duration {
	return t.End - t.Start
}

// Segmenter is the gesture state machine. It expects results in window order
// and is not safe for concurrent use; the session owns it.
type Segmenter struct {
	config Config
	order  func(label string) int

	state         State
	label         string
	start         time.Duration
	lastAbove     time.Duration
	belowSince    time.Duration
	below         bool
	ema           float64
	cooldownUntil time.Duration
	lastCommitted string
}

// New creates a segmenter. order gives a label's vocabulary enumeration
// position for tie-breaking (negative for unknown); nil orders labels
// lexically.
func New(config Config, order func(label string) int) *Segmenter {
	return &Segmenter{config: config, order: order}
}

// State returns the current state.
func (s *Segmenter) State() State {
	return s.state
}

// Label returns the label being tracked, empty in IDLE.
func (s *Segmenter) Label() string {
	if s.state == Candidate || s.state == Committed {
		return s.label
	}
	return ""
}

// Observe consumes one classification result and returns a token when one
// is completed by it.
func (s *Segmenter) Observe(r classify.Result) (Token, bool) {
	switch s.state {
	case Cooldown:
		if r.End < s.cooldownUntil {
			return Token{}, false
		}
		s.state = Idle
		s.observeIdle(r, s.lastCommitted)
		return Token{}, false

	case Idle:
		s.observeIdle(r, "")
		return Token{}, false

	case Candidate:
		if next, ok := s.rising(r, s.label); ok && next.Label != s.label {
			s.enter(next, r)
			return Token{}, false
		}
		if s.track(r) {
			s.commitIfReady(r)
			return Token{}, false
		}
		if r.End-s.belowSince > s.config.Grace {
			s.reset()
		}
		return Token{}, false

	case Committed:
		// A cut-over enters COOLDOWN like any other emission; the new label
		// is picked up once the cooldown ends.
		if next, ok := s.rising(r, s.label); ok && next.Label != s.label {
			end := r.Start
			if s.below {
				end = s.lastAbove
			}
			return s.emit(end, r.End, false), true
		}
		if s.track(r) {
			return Token{}, false
		}
		if r.End-s.belowSince > s.config.Grace {
			return s.emit(s.lastAbove, r.End, false), true
		}
	}
	return Token{}, false
}

// ForceClose closes any open gesture, as on starvation or stop. A committed
// gesture is emitted as usual; a candidate that already lasted MinDuration is
// emitted as a low-confidence token. The segmenter returns to IDLE.
func (s *Segmenter) ForceClose() (Token, bool) {
	var (
		tok Token
		ok  bool
	)
	switch s.state {
	case Committed:
		tok, ok = s.token(s.lastAbove, false), true
	case Candidate:
		if s.lastAbove-s.start >= s.config.MinDuration {
			tok, ok = s.token(s.lastAbove, true), true
		}
	}
	if ok {
		s.lastCommitted = tok.Label
	}
	s.reset()
	return tok, ok
}

func (s *Segmenter) observeIdle(r classify.Result, prefer string) {
	if next, ok := s.rising(r, prefer); ok {
		s.enter(next, r)
	}
}

func (s *Segmenter) enter(sc classify.Score, r classify.Result) {
	s.state = Candidate
	s.label = sc.Label
	s.start = r.Start
	s.lastAbove = r.End
	s.below = false
	s.ema = sc.Confidence
	s.commitIfReady(r)
}

// track updates the running confidence. It reports false while the tracked
// label is below Hold, recording when the dip began.
func (s *Segmenter) track(r classify.Result) bool {
	c := confidence(r, s.label)
	if c >= s.config.Hold {
		s.ema = s.config.Smoothing*c + (1-s.config.Smoothing)*s.ema
		s.lastAbove = r.End
		s.below = false
		return true
	}
	if !s.below {
		s.below = true
		s.belowSince = r.Start
	}
	return false
}

func (s *Segmenter) commitIfReady(r classify.Result) {
	if r.End-s.start >= s.config.MinDuration && s.ema >= s.config.Commit {
		s.state = Committed
	}
}

func (s *Segmenter) emit(end, detected time.Duration, low bool) Token {
	tok := s.token(end, low)
	s.lastCommitted = tok.Label
	s.reset()
	s.state = Cooldown
	s.cooldownUntil = detected + s.config.Cooldown
	return tok
}

func (s *Segmenter) token(end time.Duration, low bool) Token {
	return Token{
		Label:         s.label,
		Start:         s.start,
		End:           end,
		Confidence:    s.ema,
		LowConfidence: low,
	}
}

func (s *Segmenter) reset() {
	s.state = Idle
	s.label = ""
	s.below = false
	s.ema = 0
}

// rising returns the label exceeding Rise with the highest confidence. Exact
// ties go to prefer, then to vocabulary order.
func (s *Segmenter) rising(r classify.Result, prefer string) (classify.Score, bool) {
	var (
		best  classify.Score
		found bool
	)
	for _, sc := range r.Scores() {
		if sc.Label == classify.Background || sc.Confidence <= s.config.Rise {
			continue
		}
		if !found || sc.Confidence > best.Confidence ||
			(sc.Confidence == best.Confidence && s.before(sc.Label, best.Label, prefer)) {
			best, found = sc, true
		}
	}
	return best, found
}

func (s *Segmenter) before(a, b, prefer string) bool {
	if a == prefer {
		return true
	}
	if b == prefer {
		return false
	}
	if s.order == nil {
		return a < b
	}
	pa, pb := s.order(a), s.order(b)
	if pa < 0 {
		return false
	}
	return pb < 0 || pa < pb
}

func confidence(r classify.Result, label string) float64 {
	var best float64
	for _, sc := range r.Scores() {
		if sc.Label == label && sc.Confidence > best {
			best = sc.Confidence
		}
	}
	return best
}
