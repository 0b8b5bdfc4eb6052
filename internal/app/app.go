// Package app assembles the VoiceHeard service from its components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ayusman/voiceheard/internal/events"
	"github.com/ayusman/voiceheard/internal/gesture"
	"github.com/ayusman/voiceheard/internal/platform/config"
	"github.com/ayusman/voiceheard/internal/platform/metrics"
	"github.com/ayusman/voiceheard/internal/server"
	"github.com/ayusman/voiceheard/internal/session"
	"github.com/ayusman/voiceheard/internal/store"
	"github.com/ayusman/voiceheard/internal/translate"
	"github.com/ayusman/voiceheard/internal/vocab"
)

// translationCacheTTL bounds how long cached translations are reused.
const translationCacheTTL = 24 * time.Hour

// App owns the long-lived components.
type App struct {
	settings     config.Settings
	log          *slog.Logger
	store        *store.Store
	vocabulary   *vocab.Bundle
	classifier   *gesture.Classifier
	metrics      *metrics.Metrics
	orchestrator *session.Orchestrator
	handler      http.Handler
	closers      []func() error
}

// New opens storage and wires the pipelines and HTTP surface.
func New(ctx context.Context, settings config.Settings, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		settings:   settings,
		log:        log,
		classifier: gesture.NewClassifier(),
		metrics:    metrics.New(),
	}

	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(settings.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	seed, err := vocab.Default()
	if err != nil {
		return fmt.Errorf("load default vocabulary: %w", err)
	}
	a.vocabulary, err = a.store.Vocabularies().LoadOrSeed(ctx, seed)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	a.log.Info("vocabulary loaded", "version", a.vocabulary.Version, "gestures", len(a.vocabulary.Gestures.Entries()))

	if err := a.LoadGestures(ctx); err != nil {
		return err
	}

	translator, err := a.translator(ctx)
	if err != nil {
		return err
	}

	s := a.settings
	a.orchestrator, err = session.New(session.Config{
		Classifier: a.classifier,
		Vocabulary: a.vocabulary,
		Translator: translator,
		History:    a.store.History(),
		Events:     events.Multi(events.LogSink{Logger: a.log}, a.metrics),
		Logger:     a.log,
		Frame:      s.Frame,
		Classify:   s.Classify,
		Segment:    s.Segment,
		EndTimeout: s.UtteranceTimeout,
		TargetLang: s.RecognitionTargetLang,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	a.handler = server.New(server.Config{
		StaticDir:    s.StaticDir,
		Store:        a.store,
		Orchestrator: a.orchestrator,
		Templates:    a.classifier,
		KnownLabel:   a.vocabulary.Gestures.Contains,
		Metrics:      a.metrics,
		Logger:       a.log,
	})
	return nil
}

// LoadGestures installs the stored gesture templates into the classifier.
func (a *App) LoadGestures(ctx context.Context) error {
	gestures, err := a.store.Gestures().List(ctx)
	if err != nil {
		return fmt.Errorf("list gestures: %w", err)
	}

	loaded := 0
	for _, g := range gestures {
		if len(g.Frames) == 0 {
			a.log.Warn("gesture has no trained template", "label", g.Label)
			continue
		}
		if !a.vocabulary.Gestures.Contains(g.Label) {
			a.log.Warn("gesture outside the active vocabulary", "label", g.Label)
		}
		a.classifier.AddTemplate(&gesture.Template{
			Label:     g.Label,
			Frames:    g.Frames,
			Tolerance: g.Tolerance,
		})
		loaded++
	}

	a.log.Info("gestures loaded", "count", loaded)
	return nil
}

// translator picks the translation backend and cache from the settings.
func (a *App) translator(ctx context.Context) (*translate.Adapter, error) {
	s := a.settings

	var backend translate.Translator = translate.NewDictionaryTranslator()
	if s.TranslateURL != "" {
		backend = translate.NewHTTPTranslator(s.TranslateURL, s.TranslateAPIKey, nil)
		a.log.Info("using remote translation", "url", s.TranslateURL)
	}

	var cache translate.Cache = translate.NewMemoryCache(translationCacheTTL)
	if s.RedisAddr != "" {
		rc := translate.NewRedisCache(translate.RedisOptions{
			Address:  s.RedisAddr,
			Password: s.RedisPassword,
			Prefix:   "voiceheard:translate:",
			TTL:      translationCacheTTL,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			rc.Close()
			a.log.Warn("redis unavailable, using in-memory translation cache", "addr", s.RedisAddr, "error", err)
		} else {
			cache = rc
			a.closers = append(a.closers, rc.Close)
		}
	}

	tc := translate.DefaultConfig()
	tc.Timeout = s.TranslateTimeout
	return translate.NewAdapter(backend, cache, tc, a.log), nil
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Orchestrator returns the session orchestrator.
func (a *App) Orchestrator() *session.Orchestrator {
	return a.orchestrator
}

// Shutdown stops any active recognition session.
func (a *App) Shutdown(ctx context.Context) error {
	if a.orchestrator == nil {
		return nil
	}
	return a.orchestrator.Close(ctx)
}

// Close releases storage and cache connections.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
