package segment

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ayusman/voiceheard/internal/classify"
)

const step = 100 * time.Millisecond

// feed builds consecutive 100ms results starting at the given window index.
type feed struct {
	seq uint64
}

func (f *feed) next(label string, conf float64, alts ...classify.Score) classify.Result {
	start := time.Duration(f.seq) * step
	r := classify.Result{
		Seq:          f.seq,
		Start:        start,
		End:          start + step,
		Label:        label,
		Confidence:   conf,
		Alternatives: alts,
	}
	f.seq++
	return r
}

func run(s *Segmenter, results []classify.Result) []Token {
	var tokens []Token
	for _, r := range results {
		if tok, ok := s.Observe(r); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func repeat(f *feed, n int, label string, conf float64, alts ...classify.Score) []classify.Result {
	out := make([]classify.Result, n)
	for i := range out {
		out[i] = f.next(label, conf, alts...)
	}
	return out
}

func order(labels ...string) func(string) int {
	return func(label string) int {
		for i, l := range labels {
			if l == label {
				return i
			}
		}
		return -1
	}
}

func TestSegmenter_HelloScenario(t *testing.T) {
	s := New(DefaultConfig(), nil)
	f := &feed{}

	results := repeat(f, 5, "HELLO", 0.9)
	results = append(results, repeat(f, 4, classify.Background, 1)...)

	var tokens []Token
	for i, r := range results {
		tok, ok := s.Observe(r)
		if ok {
			if i != 7 {
				t.Errorf("token emitted at window %d, want 7 (dip longer than grace)", i)
			}
			tokens = append(tokens, tok)
		}
		if i == 2 && s.State() != Committed {
			t.Errorf("state after 300ms = %s, want COMMITTED", s.State())
		}
	}

	if len(tokens) != 1 {
		t.Fatalf("expected exactly 1 token, got %d: %+v", len(tokens), tokens)
	}
	tok := tokens[0]
	if tok.Label != "HELLO" || tok.Start != 0 || tok.End != 500*time.Millisecond {
		t.Errorf("token = %+v, want HELLO 0..500ms", tok)
	}
	if tok.Confidence < 0.89 || tok.Confidence > 0.91 {
		t.Errorf("confidence = %f, want 0.9", tok.Confidence)
	}
	if tok.LowConfidence {
		t.Error("committed token should not be low confidence")
	}
	if s.State() != Cooldown {
		t.Errorf("state = %s, want COOLDOWN", s.State())
	}
}

func TestSegmenter_NoFalsePositives(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	config := DefaultConfig()
	labels := []string{"HELLO", "YOU", "THANK_YOU"}

	for trial := 0; trial < 50; trial++ {
		s := New(config, nil)
		f := &feed{}
		var results []classify.Result
		for i := 0; i < 60; i++ {
			label := labels[rng.IntN(len(labels))]
			// at most Rise, never above it
			conf := rng.Float64() * config.Rise
			alt := classify.Score{Label: labels[rng.IntN(len(labels))], Confidence: rng.Float64() * config.Rise}
			results = append(results, f.next(label, conf, alt))
		}
		results = append(results, f.next("HELLO", config.Rise))

		if tokens := run(s, results); len(tokens) != 0 {
			t.Fatalf("trial %d: expected no tokens, got %+v", trial, tokens)
		}
		if tok, ok := s.ForceClose(); ok {
			t.Fatalf("trial %d: force close emitted %+v", trial, tok)
		}
	}
}

func TestSegmenter_ShortCandidateDiscarded(t *testing.T) {
	s := New(DefaultConfig(), nil)
	f := &feed{}

	results := repeat(f, 2, "HELLO", 0.9)
	results = append(results, repeat(f, 3, classify.Background, 1)...)

	if tokens := run(s, results); len(tokens) != 0 {
		t.Fatalf("expected no tokens for a 200ms blip, got %+v", tokens)
	}
	if s.State() != Idle {
		t.Errorf("state = %s, want IDLE", s.State())
	}
}

func TestSegmenter_DipWithinGrace(t *testing.T) {
	s := New(DefaultConfig(), nil)
	f := &feed{}

	results := repeat(f, 4, "HELLO", 0.9)
	results = append(results, f.next(classify.Background, 1))
	results = append(results, f.next("HELLO", 0.3, classify.Score{Label: classify.Background, Confidence: 0.7}))
	results = append(results, repeat(f, 3, "HELLO", 0.85)...)
	results = append(results, repeat(f, 3, classify.Background, 1)...)

	tokens := run(s, results)
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token across a short dip, got %d: %+v", len(tokens), tokens)
	}
	if tokens[0].Start != 0 || tokens[0].End != 900*time.Millisecond {
		t.Errorf("token = %v..%v, want 0..900ms", tokens[0].Start, tokens[0].End)
	}
}

func TestSegmenter_CutOver(t *testing.T) {
	s := New(DefaultConfig(), order("HELLO", "YOU"))
	f := &feed{}

	results := repeat(f, 4, "HELLO", 0.9)
	results = append(results, f.next("YOU", 0.8, classify.Score{Label: "HELLO", Confidence: 0.5}))

	tokens := run(s, results)
	if len(tokens) != 1 {
		t.Fatalf("expected cut-over token, got %+v", tokens)
	}
	if tokens[0].Label != "HELLO" || tokens[0].End != 400*time.Millisecond {
		t.Errorf("token = %+v, want HELLO ending at 400ms", tokens[0])
	}
	if s.State() != Cooldown {
		t.Errorf("state = %s, want COOLDOWN", s.State())
	}
}

func TestSegmenter_CutOverStartsNextGestureAfterCooldown(t *testing.T) {
	s := New(DefaultConfig(), order("HELLO", "YOU"))
	f := &feed{}

	results := repeat(f, 4, "HELLO", 0.9)
	results = append(results, repeat(f, 5, "YOU", 0.9)...)
	results = append(results, repeat(f, 3, classify.Background, 1)...)

	tokens := run(s, results)
	if len(tokens) != 2 {
		t.Fatalf("expected HELLO and YOU tokens, got %+v", tokens)
	}
	// cut-over at 400-500ms, cooldown until 650ms: YOU restarts at 600ms
	if tokens[1].Label != "YOU" || tokens[1].Start != 600*time.Millisecond || tokens[1].End != 900*time.Millisecond {
		t.Errorf("second token = %+v, want YOU 600-900ms", tokens[1])
	}

	t.Run("short follow-up is lost", func(t *testing.T) {
		s := New(DefaultConfig(), order("HELLO", "YOU"))
		f := &feed{}
		results := repeat(f, 4, "HELLO", 0.9)
		results = append(results, repeat(f, 3, "YOU", 0.9)...)
		results = append(results, repeat(f, 4, classify.Background, 1)...)

		tokens := run(s, results)
		if len(tokens) != 1 || tokens[0].Label != "HELLO" {
			t.Errorf("tokens = %+v, want only HELLO", tokens)
		}
	})
}

func TestSegmenter_CandidateSwitchesToStrongerLabel(t *testing.T) {
	s := New(DefaultConfig(), nil)
	f := &feed{}

	run(s, []classify.Result{
		f.next("HELLO", 0.7),
		f.next("YOU", 0.9, classify.Score{Label: "HELLO", Confidence: 0.65}),
	})
	if s.State() != Candidate || s.Label() != "YOU" {
		t.Fatalf("state = %s/%s, want CANDIDATE/YOU", s.State(), s.Label())
	}

	tokens := run(s, append(repeat(f, 3, "YOU", 0.9), repeat(f, 3, classify.Background, 1)...))
	if len(tokens) != 1 || tokens[0].Label != "YOU" || tokens[0].Start != step {
		t.Errorf("tokens = %+v, want one YOU token starting at 100ms", tokens)
	}
}

func TestSegmenter_TieBreak(t *testing.T) {
	t.Run("vocabulary order when idle", func(t *testing.T) {
		s := New(DefaultConfig(), order("YOU", "HELLO"))
		f := &feed{}
		s.Observe(f.next("HELLO", 0.8, classify.Score{Label: "YOU", Confidence: 0.8}))
		if s.Label() != "YOU" {
			t.Errorf("label = %q, want YOU (first in enumeration order)", s.Label())
		}
	})

	t.Run("higher confidence wins", func(t *testing.T) {
		s := New(DefaultConfig(), order("YOU", "HELLO"))
		f := &feed{}
		s.Observe(f.next("YOU", 0.7, classify.Score{Label: "HELLO", Confidence: 0.8}))
		if s.Label() != "HELLO" {
			t.Errorf("label = %q, want HELLO", s.Label())
		}
	})

	t.Run("unknown labels order last", func(t *testing.T) {
		s := New(DefaultConfig(), order("HELLO"))
		f := &feed{}
		s.Observe(f.next("MYSTERY", 0.8, classify.Score{Label: "HELLO", Confidence: 0.8}))
		if s.Label() != "HELLO" {
			t.Errorf("label = %q, want HELLO", s.Label())
		}
	})

	t.Run("last committed when leaving cooldown", func(t *testing.T) {
		s := New(DefaultConfig(), order("A", "B"))
		f := &feed{}

		results := repeat(f, 5, "B", 0.9)
		results = append(results, repeat(f, 3, classify.Background, 1)...)
		if tokens := run(s, results); len(tokens) != 1 {
			t.Fatalf("expected B token, got %+v", tokens)
		}

		tie := classify.Score{Label: "B", Confidence: 0.8}
		s.Observe(f.next("A", 0.8, tie)) // 800-900ms, still cooling down
		if s.State() != Cooldown {
			t.Fatalf("state = %s, want COOLDOWN", s.State())
		}
		s.Observe(f.next("A", 0.8, tie))
		if s.State() != Candidate || s.Label() != "B" {
			t.Errorf("state = %s/%s, want CANDIDATE/B", s.State(), s.Label())
		}
	})
}

func TestSegmenter_CooldownSuppressesRetrigger(t *testing.T) {
	s := New(DefaultConfig(), nil)
	f := &feed{}

	results := repeat(f, 5, "HELLO", 0.9)
	results = append(results, repeat(f, 3, classify.Background, 1)...)
	run(s, results)

	// emitted at 800ms; cooldown lasts until 950ms
	s.Observe(f.next("HELLO", 0.9))
	if s.State() != Cooldown {
		t.Fatalf("state = %s, want COOLDOWN", s.State())
	}
	s.Observe(f.next("HELLO", 0.9))
	if s.State() != Candidate {
		t.Fatalf("state = %s, want CANDIDATE after cooldown", s.State())
	}

	tokens := run(s, append(repeat(f, 3, "HELLO", 0.9), repeat(f, 3, classify.Background, 1)...))
	if len(tokens) != 1 {
		t.Fatalf("expected a second token, got %+v", tokens)
	}
	if tokens[0].Start != 900*time.Millisecond {
		t.Errorf("second token start = %v, want 900ms", tokens[0].Start)
	}
}

func TestSegmenter_ForceClose(t *testing.T) {
	t.Run("committed", func(t *testing.T) {
		s := New(DefaultConfig(), nil)
		f := &feed{}
		run(s, repeat(f, 4, "HELLO", 0.9))

		tok, ok := s.ForceClose()
		if !ok {
			t.Fatal("expected a token")
		}
		if tok.LowConfidence || tok.End != 400*time.Millisecond {
			t.Errorf("token = %+v, want regular token ending at 400ms", tok)
		}
		if s.State() != Idle {
			t.Errorf("state = %s, want IDLE", s.State())
		}
	})

	t.Run("candidate past minimum duration", func(t *testing.T) {
		s := New(DefaultConfig(), nil)
		f := &feed{}
		run(s, repeat(f, 4, "HELLO", 0.65))
		if s.State() != Candidate {
			t.Fatalf("state = %s, want CANDIDATE", s.State())
		}

		tok, ok := s.ForceClose()
		if !ok || !tok.LowConfidence {
			t.Fatalf("expected a low-confidence token, got %+v (ok=%v)", tok, ok)
		}
		if tok.Start != 0 || tok.End != 400*time.Millisecond {
			t.Errorf("token = %v..%v, want 0..400ms", tok.Start, tok.End)
		}
	})

	t.Run("short candidate", func(t *testing.T) {
		s := New(DefaultConfig(), nil)
		f := &feed{}
		run(s, repeat(f, 2, "HELLO", 0.9))

		if tok, ok := s.ForceClose(); ok {
			t.Errorf("expected nothing, got %+v", tok)
		}
		if s.State() != Idle {
			t.Errorf("state = %s, want IDLE", s.State())
		}
	})

	t.Run("idle", func(t *testing.T) {
		s := New(DefaultConfig(), nil)
		if _, ok := s.ForceClose(); ok {
			t.Error("expected nothing from an idle segmenter")
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"hold above rise", func(c *Config) { c.Hold = 0.8 }},
		{"commit above one", func(c *Config) { c.Commit = 1.5 }},
		{"commit below hold", func(c *Config) { c.Commit = 0.1 }},
		{"negative commit", func(c *Config) { c.Commit = -0.1 }},
		{"negative rise", func(c *Config) { c.Rise, c.Hold = -0.2, -0.3 }},
		{"rise above one", func(c *Config) { c.Rise = 1.2 }},
		{"zero smoothing", func(c *Config) { c.Smoothing = 0 }},
		{"negative grace", func(c *Config) { c.Grace = -time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
