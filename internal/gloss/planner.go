package gloss

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ayusman/voiceheard/internal/sentence"
	"github.com/ayusman/voiceheard/internal/vocab"
)

// Planner turns text into timelines. It only reads its tables, so one planner
// serves concurrent requests.
type Planner struct {
	dict     *vocab.Dictionary
	rules    vocab.RuleSet
	distance HandshapeDistance
	config   Config
}

// NewPlanner creates a planner. A nil distance uses the dictionary's stored
// handshapes.
func NewPlanner(dict *vocab.Dictionary, rules vocab.RuleSet, distance HandshapeDistance, config Config) *Planner {
	if distance == nil {
		distance = dict
	}
	return &Planner{dict: dict, rules: rules, distance: distance, config: config}
}

// Language returns the dictionary language that Plan expects.
func (p *Planner) Language() string {
	return p.dict.Language
}

// Plan tokenizes text, reorders it with the rule set, maps words to glosses
// and lays them out in time. Words missing from the dictionary are
// finger-spelled and listed in Timeline.Unmapped.
func (p *Planner) Plan(ctx context.Context, text string) (Timeline, error) {
	words := sentence.Words(text)
	if len(words) == 0 {
		return Timeline{}, ErrEmptyInput
	}

	tags := make([]string, len(words))
	for i, w := range words {
		tags[i] = p.dict.Tag(w)
	}

	ordered := Reorder(words, tags, p.rules)
	if len(ordered) == 0 {
		// every word was dropped; sign the input as given
		ordered = words
	}

	var (
		glosses  []Gloss
		unmapped []string
	)
	for _, w := range ordered {
		if e, ok := p.dict.Lookup(w); ok {
			glosses = append(glosses, Gloss{ID: e.Gloss, Word: w, Duration: p.config.BaseDuration})
			continue
		}
		unmapped = append(unmapped, w)
		glosses = append(glosses, p.spell(w)...)
	}

	tl, err := p.layout(ctx, glosses)
	if err != nil {
		return Timeline{}, err
	}
	tl.Unmapped = unmapped
	return tl, nil
}

// Sign plans a single sign: a letter, a digit or a dictionary word, as shown
// on the learn screen. Unknown words are finger-spelled.
func (p *Planner) Sign(ctx context.Context, sign string) (Timeline, error) {
	sign = strings.TrimSpace(sign)
	if sign == "" {
		return Timeline{}, ErrEmptyInput
	}

	var glosses []Gloss
	switch runes := []rune(sign); {
	case len(runes) == 1:
		glosses = p.spell(sign)
	default:
		if e, ok := p.dict.Lookup(sign); ok {
			glosses = []Gloss{{ID: e.Gloss, Word: e.Word, Duration: p.config.BaseDuration}}
		} else {
			glosses = p.spell(sign)
		}
	}
	if len(glosses) == 0 {
		return Timeline{}, fmt.Errorf("sign %q: %w", sign, ErrEmptyInput)
	}
	return p.layout(ctx, glosses)
}

// spell finger-spells a word. The sequence lasts BaseDuration plus
// LetterDuration per letter, split evenly.
func (p *Planner) spell(word string) []Gloss {
	var letters []rune
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		letters = []rune(word)
	}
	if len(letters) == 0 {
		return nil
	}

	total := p.config.BaseDuration + p.config.LetterDuration*time.Duration(len(letters))
	each := total / time.Duration(len(letters))

	out := make([]Gloss, len(letters))
	for i, r := range letters {
		out[i] = Gloss{
			ID:            vocab.LetterGloss(r),
			Word:          word,
			Duration:      each,
			FingerSpelled: true,
		}
	}
	return out
}

// layout assigns transitions and absolute start offsets.
func (p *Planner) layout(ctx context.Context, glosses []Gloss) (Timeline, error) {
	tl := Timeline{
		Glosses:           make([]TimedGloss, len(glosses)),
		DictionaryVersion: p.dict.Version,
		RulesVersion:      p.rules.Version,
	}

	var at time.Duration
	for i, g := range glosses {
		if err := ctx.Err(); err != nil {
			return Timeline{}, err
		}

		if i == len(glosses)-1 {
			g.Transition = TransitionHold
		} else if p.blends(g.ID, glosses[i+1].ID) {
			g.Transition = TransitionBlend
			g.TransitionDuration = p.config.BlendDuration
		} else {
			g.Transition = TransitionCut
		}

		tl.Glosses[i] = TimedGloss{Gloss: g, Start: at}
		at += g.Duration + g.TransitionDuration
	}
	tl.Duration = at
	return tl, nil
}

// blends reports whether a blend is needed between two glosses. A failed
// lookup blends, since a cut between unknown shapes may jump.
func (p *Planner) blends(a, b string) bool {
	d, err := p.distance.Distance(a, b)
	if err != nil {
		return true
	}
	return d > p.config.BlendThreshold
}
