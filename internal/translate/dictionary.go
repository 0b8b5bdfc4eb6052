package translate

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DictionaryTranslator translates known phrases, and otherwise word by word
// when every word is known. It is deterministic and needs no network.
type DictionaryTranslator struct {
	// phrases and words are keyed [source][target][normalized text]
	phrases map[string]map[string]map[string]string
	words   map[string]map[string]map[string]string
}

// NewDictionaryTranslator creates a translator seeded with the default
// English/Hindi tables.
func NewDictionaryTranslator() *DictionaryTranslator {
	d := &DictionaryTranslator{
		phrases: make(map[string]map[string]map[string]string),
		words:   make(map[string]map[string]map[string]string),
	}
	// the first English phrase listed for a Hindi phrase is its reverse
	for _, p := range defaultPhrases {
		d.AddPhrase(English, Hindi, p[0], p[1])
		if _, ok := d.phrases[Hindi][English][normalizePhrase(p[1])]; !ok {
			d.AddPhrase(Hindi, English, p[1], p[0])
		}
	}
	for _, w := range defaultWords {
		d.AddWord(English, Hindi, w[0], w[1])
		d.AddWord(Hindi, English, w[1], w[0])
	}
	return d
}

// AddPhrase registers a whole-text translation.
func (d *DictionaryTranslator) AddPhrase(source, target, text, translated string) {
	put(d.phrases, source, target, normalizePhrase(text), translated)
}

// AddWord registers a single-word translation.
func (d *DictionaryTranslator) AddWord(source, target, word, translated string) {
	put(d.words, source, target, strings.ToLower(word), translated)
}

func put(m map[string]map[string]map[string]string, source, target, key, value string) {
	if m[source] == nil {
		m[source] = make(map[string]map[string]string)
	}
	if m[source][target] == nil {
		m[source][target] = make(map[string]string)
	}
	m[source][target][key] = value
}

// Translate implements Translator.
func (d *DictionaryTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if out, ok := d.phrases[sourceLang][targetLang][normalizePhrase(text)]; ok {
		return out, nil
	}

	table := d.words[sourceLang][targetLang]
	fields := strings.Fields(text)
	if len(fields) == 0 || table == nil {
		return "", fmt.Errorf("%s->%s %q: %w", sourceLang, targetLang, text, ErrUnsupported)
	}

	out := make([]string, len(fields))
	for i, f := range fields {
		core := strings.TrimFunc(f, isPunct)
		w, ok := table[strings.ToLower(core)]
		if !ok {
			return "", fmt.Errorf("%s->%s word %q: %w", sourceLang, targetLang, core, ErrUnsupported)
		}
		// keep surrounding punctuation, mapping the full stop between scripts
		lead := f[:strings.Index(f, core)]
		trail := convertStop(f[len(lead)+len(core):], targetLang)
		out[i] = lead + w + trail
	}
	if targetLang == English {
		out[0] = capitalize(out[0])
	}
	return strings.Join(out, " "), nil
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || r == '।'
}

func convertStop(s, target string) string {
	if target == Hindi {
		return strings.ReplaceAll(s, ".", "।")
	}
	return strings.ReplaceAll(s, "।", ".")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func normalizePhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var defaultPhrases = [][2]string{
	{"Hello, how are you?", "नमस्ते, आप कैसे हैं?"},
	{"Hello how you?", "नमस्ते, आप कैसे हैं?"},
	{"Hello you how?", "नमस्ते, आप कैसे हैं?"},
	{"Thank you.", "धन्यवाद।"},
	{"Good morning.", "सुप्रभात।"},
	{"What is your name?", "आपका नाम क्या है?"},
	{"Your name what?", "आपका नाम क्या है?"},
	{"I am fine.", "मैं ठीक हूँ।"},
	{"I fine.", "मैं ठीक हूँ।"},
	{"Please help.", "कृपया मदद करें।"},
	{"I want water.", "मुझे पानी चाहिए।"},
	{"I want food.", "मुझे खाना चाहिए।"},
	{"Nice to meet you.", "आपसे मिलकर खुशी हुई।"},
	{"Where are you going?", "आप कहाँ जा रहे हैं?"},
	{"Sorry.", "माफ़ कीजिए।"},
}

var defaultWords = [][2]string{
	{"hello", "नमस्ते"},
	{"you", "आप"},
	{"how", "कैसे"},
	{"what", "क्या"},
	{"where", "कहाँ"},
	{"name", "नाम"},
	{"good", "अच्छा"},
	{"morning", "सुबह"},
	{"thanks", "धन्यवाद"},
	{"please", "कृपया"},
	{"sorry", "माफ़ी"},
	{"help", "मदद"},
	{"water", "पानी"},
	{"food", "खाना"},
	{"yes", "हाँ"},
	{"no", "नहीं"},
	{"fine", "ठीक"},
	{"home", "घर"},
	{"school", "विद्यालय"},
	{"i", "मैं"},
	{"my", "मेरा"},
	{"your", "आपका"},
	{"drink", "पियो"},
	{"go", "जाओ"},
	{"come", "आओ"},
	{"meet", "मिलो"},
}
