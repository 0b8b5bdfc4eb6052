// Package translate wraps an English<->Hindi translation capability as a
// best-effort overlay: failures fall back to the original text.
package translate

import (
	"context"
	"errors"
	"unicode"
)

// ErrTranslationUnavailable is returned alongside the original text when the
// translation capability failed or timed out.
var ErrTranslationUnavailable = errors.New("translation unavailable")

// ErrUnsupported is returned by translators for text or language pairs they
// cannot handle.
var ErrUnsupported = errors.New("unsupported translation")

// Language codes.
const (
	English = "en"
	Hindi   = "hi"
)

// Translator is the external translation capability. It must be idempotent
// for identical input.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

// Translate calls f.
func (f TranslatorFunc) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f(ctx, text, sourceLang, targetLang)
}

// Result is the outcome of Adapter.Translate.
type Result struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Translated bool   `json:"translated"`
	Cached     bool   `json:"cached,omitempty"`
}

// DetectLanguage returns Hindi for text containing Devanagari letters and
// English otherwise.
func DetectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Devanagari, r) {
			return Hindi
		}
	}
	return English
}
