package vocab

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Tag assigned to words the dictionary does not know.
const TagUnknown = "X"

// ShapeSize is the number of finger flexion values in a handshape.
const ShapeSize = 5

// Entry maps a normalized word to its sign gloss. StartShape and EndShape are
// finger flexions (thumb to pinky, 0 open to 1 curled) used to decide how
// adjacent signs are joined.
type Entry struct {
	Word       string    `json:"word"`
	Gloss      string    `json:"gloss"`
	Tag        string    `json:"tag"`
	StartShape []float64 `json:"start,omitempty"`
	EndShape   []float64 `json:"end,omitempty"`
}

// Dictionary is the word-to-gloss table for one language.
type Dictionary struct {
	Version  string
	Language string
	words    map[string]Entry
	glosses  map[string]Entry
}

// NewDictionary builds a dictionary. Words are matched case-insensitively.
func NewDictionary(version, language string, entries []Entry) *Dictionary {
	if language == "" {
		language = "en"
	}
	d := &Dictionary{
		Version:  version,
		Language: language,
		words:    make(map[string]Entry, len(entries)),
		glosses:  make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		e.Word = strings.ToLower(strings.TrimSpace(e.Word))
		if e.Word == "" || e.Gloss == "" {
			continue
		}
		if e.Tag == "" {
			e.Tag = TagUnknown
		}
		d.words[e.Word] = e
		if _, ok := d.glosses[e.Gloss]; !ok {
			d.glosses[e.Gloss] = e
		}
	}
	return d
}

// Lookup returns the entry for word.
func (d *Dictionary) Lookup(word string) (Entry, bool) {
	e, ok := d.words[strings.ToLower(word)]
	return e, ok
}

// Tag returns the part-of-speech tag of word, TagUnknown if absent.
func (d *Dictionary) Tag(word string) string {
	if e, ok := d.Lookup(word); ok {
		return e.Tag
	}
	return TagUnknown
}

// Entries returns all entries sorted by word.
func (d *Dictionary) Entries() []Entry {
	out := make([]Entry, 0, len(d.words))
	for _, w := range sortedKeys(d.words) {
		out = append(out, d.words[w])
	}
	return out
}

// Len returns the number of words.
func (d *Dictionary) Len() int {
	return len(d.words)
}

// LetterGloss returns the finger-spelling gloss for r.
func LetterGloss(r rune) string {
	return "FS-" + string(unicode.ToUpper(r))
}

// Letter returns the finger-spelling entry for r.
func (d *Dictionary) Letter(r rune) Entry {
	shape := letterShape(unicode.ToUpper(r))
	return Entry{
		Word:       string(unicode.ToLower(r)),
		Gloss:      LetterGloss(r),
		Tag:        TagUnknown,
		StartShape: shape,
		EndShape:   shape,
	}
}

// letterShape derives a stable handshape from the code point so that every
// letter has a distinct, deterministic pose.
func letterShape(r rune) []float64 {
	shape := make([]float64, ShapeSize)
	for i := range shape {
		shape[i] = float64((int(r)>>i)&1) * 0.8
	}
	return shape
}

// shapes returns the start and end handshapes of a gloss.
func (d *Dictionary) shapes(gloss string) (start, end []float64, ok bool) {
	if e, found := d.glosses[gloss]; found {
		return e.StartShape, e.EndShape, true
	}
	if rest, found := strings.CutPrefix(gloss, "FS-"); found {
		runes := []rune(rest)
		if len(runes) == 1 {
			s := letterShape(runes[0])
			return s, s, true
		}
	}
	return nil, nil, false
}

// Distance returns how far the end handshape of gloss a is from the start
// handshape of gloss b. It implements the handshape-distance capability used
// by the gloss planner.
func (d *Dictionary) Distance(a, b string) (float64, error) {
	_, endA, okA := d.shapes(a)
	if !okA {
		return 0, fmt.Errorf("handshape for %q: %w", a, ErrUnknownGloss)
	}
	startB, _, okB := d.shapes(b)
	if !okB {
		return 0, fmt.Errorf("handshape for %q: %w", b, ErrUnknownGloss)
	}
	if len(endA) == 0 || len(startB) == 0 {
		return 0, fmt.Errorf("handshape for %q/%q: %w", a, b, ErrNoHandshape)
	}
	return shapeDistance(endA, startB), nil
}

// shapeDistance is the Euclidean distance over the shared prefix of two shapes.
func shapeDistance(a, b []float64) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
