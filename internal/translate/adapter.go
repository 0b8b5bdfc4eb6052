package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config bounds calls to the translation capability.
type Config struct {
	Timeout    time.Duration // per attempt
	MaxRetries uint64
	Backoff    time.Duration // Fibonacci base
}

// DefaultConfig returns the default translation limits.
func DefaultConfig() Config {
	return Config{
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		Backoff:    100 * time.Millisecond,
	}
}

// Adapter calls a Translator through a cache with a timeout and a bounded
// retry. It never blocks the caller beyond those bounds.
type Adapter struct {
	translator Translator
	cache      Cache
	config     Config
	logger     *slog.Logger
}

// NewAdapter creates an adapter. A nil cache disables caching.
func NewAdapter(t Translator, cache Cache, config Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = noCache{}
	}
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Backoff <= 0 {
		config.Backoff = defaults.Backoff
	}
	return &Adapter{translator: t, cache: cache, config: config, logger: logger}
}

// Translate translates text into targetLang. On failure it returns the
// original text with ErrTranslationUnavailable.
func (a *Adapter) Translate(ctx context.Context, text, targetLang string) (Result, error) {
	source := DetectLanguage(text)
	res := Result{Text: text, SourceLang: source, TargetLang: targetLang}

	if strings.TrimSpace(text) == "" || targetLang == "" || source == targetLang {
		return res, nil
	}

	key := cacheKey(source, targetLang, text)
	if cached, ok, err := a.cache.Get(ctx, key); err != nil {
		a.logger.Warn("translation cache read failed", "error", err)
	} else if ok {
		res.Text, res.Translated, res.Cached = cached, true, true
		return res, nil
	}

	var out string
	backoff := retry.WithMaxRetries(a.config.MaxRetries, retry.NewFibonacci(a.config.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()

		translated, err := a.translator.Translate(callCtx, text, source, targetLang)
		if err == nil {
			out = translated
			return nil
		}
		if errors.Is(err, ErrUnsupported) || ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		a.logger.Warn("translation failed", "source", source, "target", targetLang, "error", err)
		return res, fmt.Errorf("%w: %v", ErrTranslationUnavailable, err)
	}

	if err := a.cache.Set(ctx, key, out); err != nil {
		a.logger.Warn("translation cache write failed", "error", err)
	}
	res.Text, res.Translated = out, true
	return res, nil
}

func cacheKey(source, target, text string) string {
	sum := sha256.Sum256([]byte(text))
	return source + ":" + target + ":" + hex.EncodeToString(sum[:])
}
