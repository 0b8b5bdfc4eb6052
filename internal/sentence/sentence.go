// Package sentence assembles committed gesture tokens into normalized
// utterances and provides the inverse normalizer used by generation.
package sentence

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ayusman/voiceheard/internal/segment"
	"github.com/ayusman/voiceheard/internal/vocab"
)

// ErrEmptyUtterance is returned when an utterance closes without tokens. The
// assembler has already reset when it is returned.
var ErrEmptyUtterance = errors.New("empty utterance")

// DefaultEndTimeout is the stream-time inactivity that closes an utterance.
const DefaultEndTimeout = 1500 * time.Millisecond

// Reason records what closed an utterance.
type Reason string

const (
	ReasonGesture  Reason = "gesture"
	ReasonTimeout  Reason = "timeout"
	ReasonExplicit Reason = "explicit"
)

// Utterance is a sentence-level unit of recognized text. It is frozen once
// returned by the assembler.
type Utterance struct {
	ID              string          `json:"id"`
	Tokens          []segment.Token `json:"tokens"`
	Words           []string        `json:"words"`
	Text            string          `json:"text"`
	Punctuation     string          `json:"punctuation"`
	Reason          Reason          `json:"reason"`
	Start           time.Duration   `json:"start"`
	End             time.Duration   `json:"end"`
	Translation     string          `json:"translation,omitempty"`
	TranslationLang string          `json:"translation_lang,omitempty"`
}

// Assembler holds the open utterance.
type Assembler struct {
	table      *vocab.GestureTable
	endTimeout time.Duration

	tokens  []segment.Token
	words   []string
	lastEnd time.Duration
}

// NewAssembler creates an assembler mapping labels through table. A
// non-positive endTimeout uses DefaultEndTimeout.
func NewAssembler(table *vocab.GestureTable, endTimeout time.Duration) *Assembler {
	if endTimeout <= 0 {
		endTimeout = DefaultEndTimeout
	}
	return &Assembler{table: table, endTimeout: endTimeout}
}

// Add appends a token. Tokens of a closing class end the utterance and
// return it; other tokens return nil.
func (a *Assembler) Add(tok segment.Token) (*Utterance, error) {
	entry, _ := a.table.Lookup(tok.Label)
	if entry.Class.Closing() {
		a.lastEnd = tok.End
		return a.close(ReasonGesture, entry.Class.Punctuation(), tok.End)
	}

	a.tokens = append(a.tokens, tok)
	a.words = append(a.words, a.table.Word(tok.Label))
	a.lastEnd = tok.End
	return nil, nil
}

// Advance closes the utterance once now is at least the end timeout past the
// last token. An empty utterance is left open.
func (a *Assembler) Advance(now time.Duration) (*Utterance, error) {
	if len(a.tokens) == 0 || now-a.lastEnd < a.endTimeout {
		return nil, nil
	}
	return a.close(ReasonTimeout, ".", a.lastEnd)
}

// Expire closes a non-empty utterance as though the end timeout had passed.
// It is used when input stalls and stream time stops advancing.
func (a *Assembler) Expire() (*Utterance, error) {
	return a.Advance(a.lastEnd + a.endTimeout)
}

// Close closes the utterance explicitly.
func (a *Assembler) Close() (*Utterance, error) {
	return a.close(ReasonExplicit, ".", a.lastEnd)
}

// Pending reports whether the open utterance holds any tokens.
func (a *Assembler) Pending() bool {
	return len(a.tokens) > 0
}

// Partial returns the open utterance's text so far, without punctuation.
func (a *Assembler) Partial() string {
	words := dedupe(a.words)
	if len(words) == 0 {
		return ""
	}
	return capitalize(strings.Join(words, " "))
}

func (a *Assembler) close(reason Reason, punct string, end time.Duration) (*Utterance, error) {
	tokens, words := a.tokens, a.words
	a.tokens, a.words = nil, nil

	if len(tokens) == 0 {
		return nil, ErrEmptyUtterance
	}

	words = dedupe(words)
	return &Utterance{
		ID:          uuid.NewString(),
		Tokens:      tokens,
		Words:       words,
		Text:        Normalize(words, punct),
		Punctuation: punct,
		Reason:      reason,
		Start:       tokens[0].Start,
		End:         end,
	}, nil
}

// Normalize joins words into a sentence: the first word capitalized and the
// terminal punctuation appended (default ".").
func Normalize(words []string, punct string) string {
	words = dedupe(words)
	if len(words) == 0 {
		return ""
	}
	if punct == "" {
		punct = "."
	}
	return capitalize(strings.Join(words, " ")) + punct
}

// dedupe drops consecutive duplicate words, a classifier artifact.
func dedupe(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if n := len(out); n > 0 && strings.EqualFold(out[n-1], w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Words is the inverse normalizer: it lower-cases text and splits it into
// words, dropping punctuation. Apostrophes inside a word are kept.
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '\'' || r == '’')
	})

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'’")
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}
