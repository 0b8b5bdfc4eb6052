// Package vocab holds the versioned data tables shared by recognition and
// generation: the gesture table (classifier label to word), the gloss
// dictionary (word to sign) and the reordering rule set.
package vocab

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Background is the classifier label meaning "no gesture".
const Background = "NO_GESTURE"

// Class groups gesture labels by their role in a sentence.
type Class string

const (
	ClassWord        Class = "word"
	ClassEnd         Class = "end"
	ClassQuestion    Class = "question"
	ClassExclamation Class = "exclamation"
)

// Closing reports whether gestures of this class end an utterance.
func (c Class) Closing() bool {
	return c == ClassEnd || c == ClassQuestion || c == ClassExclamation
}

// Punctuation returns the terminal punctuation a closing class implies.
func (c Class) Punctuation() string {
	switch c {
	case ClassQuestion:
		return "?"
	case ClassExclamation:
		return "!"
	default:
		return "."
	}
}

// GestureEntry maps one classifier label to its sentence contribution.
type GestureEntry struct {
	Label string `json:"label"`
	Word  string `json:"word"`
	Class Class  `json:"class"`
}

// GestureTable is the closed gesture vocabulary. Entry order is the label
// enumeration order used for deterministic tie-breaks.
type GestureTable struct {
	Version string
	entries []GestureEntry
	index   map[string]int
}

// NewGestureTable builds a table. Duplicate labels keep their first position.
func NewGestureTable(version string, entries []GestureEntry) *GestureTable {
	t := &GestureTable{
		Version: version,
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Label == "" || e.Label == Background {
			continue
		}
		if _, dup := t.index[e.Label]; dup {
			continue
		}
		if e.Class == "" {
			e.Class = ClassWord
		}
		t.index[e.Label] = len(t.entries)
		t.entries = append(t.entries, e)
	}
	return t
}

// Lookup returns the entry for label.
func (t *GestureTable) Lookup(label string) (GestureEntry, bool) {
	i, ok := t.index[label]
	if !ok {
		return GestureEntry{}, false
	}
	return t.entries[i], true
}

// Contains reports whether label is part of the vocabulary.
func (t *GestureTable) Contains(label string) bool {
	_, ok := t.index[label]
	return ok
}

// Position returns the enumeration index of label, or -1.
func (t *GestureTable) Position(label string) int {
	if i, ok := t.index[label]; ok {
		return i
	}
	return -1
}

// Entries returns the entries in enumeration order.
func (t *GestureTable) Entries() []GestureEntry {
	return append([]GestureEntry(nil), t.entries...)
}

// Word returns the word a label contributes. Labels without a configured
// word fall back to the lower-cased label with underscores as spaces.
func (t *GestureTable) Word(label string) string {
	if e, ok := t.Lookup(label); ok && e.Word != "" {
		return e.Word
	}
	return strings.ToLower(strings.ReplaceAll(label, "_", " "))
}

// Rule rewrites a run of part-of-speech tags. Pattern elements match a tag
// exactly, any of several tags separated by "|", or anything with "*".
// Output lists pattern positions in their new order; omitted positions are
// dropped.
type Rule struct {
	Name    string   `json:"name"`
	Pattern []string `json:"pattern"`
	Output  []int    `json:"output"`
}

// Matches reports whether the rule pattern matches tags starting at i.
func (r Rule) Matches(tags []string, i int) bool {
	if len(r.Pattern) == 0 || i+len(r.Pattern) > len(tags) {
		return false
	}
	for k, p := range r.Pattern {
		if !tagMatches(p, tags[i+k]) {
			return false
		}
	}
	return true
}

func tagMatches(pattern, tag string) bool {
	if pattern == "*" {
		return true
	}
	for _, alt := range strings.Split(pattern, "|") {
		if alt == tag {
			return true
		}
	}
	return false
}

// Validate checks that every output index addresses the pattern.
func (r Rule) Validate() error {
	if len(r.Pattern) == 0 {
		return fmt.Errorf("rule %q: empty pattern", r.Name)
	}
	seen := make(map[int]bool, len(r.Output))
	for _, o := range r.Output {
		if o < 0 || o >= len(r.Pattern) {
			return fmt.Errorf("rule %q: output index %d out of range", r.Name, o)
		}
		if seen[o] {
			return fmt.Errorf("rule %q: output index %d repeated", r.Name, o)
		}
		seen[o] = true
	}
	return nil
}

// RuleSet is an ordered list of rewrite rules. Earlier rules win.
type RuleSet struct {
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Validate checks every rule.
func (rs RuleSet) Validate() error {
	for _, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Bundle groups the three tables that make up one vocabulary release.
type Bundle struct {
	Version    string
	Gestures   *GestureTable
	Dictionary *Dictionary
	Rules      RuleSet
}

// document is the JSON layout of a bundle.
type document struct {
	Version  string         `json:"version"`
	Language string         `json:"language"`
	Gestures []GestureEntry `json:"gestures"`
	Glosses  []Entry        `json:"glosses"`
	Rules    []Rule         `json:"rules"`
}

// Parse decodes a JSON bundle.
func Parse(data []byte) (*Bundle, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("decode vocabulary: missing version")
	}
	return NewBundle(doc.Version, doc.Language, doc.Gestures, doc.Glosses, doc.Rules)
}

// NewBundle assembles and validates a bundle.
func NewBundle(version, language string, gestures []GestureEntry, glosses []Entry, rules []Rule) (*Bundle, error) {
	rs := RuleSet{Version: version, Rules: rules}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &Bundle{
		Version:    version,
		Gestures:   NewGestureTable(version, gestures),
		Dictionary: NewDictionary(version, language, glosses),
		Rules:      rs,
	}, nil
}

// Marshal encodes the bundle in the same layout Parse reads.
func (b *Bundle) Marshal() ([]byte, error) {
	doc := document{
		Version:  b.Version,
		Language: b.Dictionary.Language,
		Gestures: b.Gestures.Entries(),
		Glosses:  b.Dictionary.Entries(),
		Rules:    b.Rules.Rules,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// sortedKeys returns map keys in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
