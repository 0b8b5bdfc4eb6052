// Package server provides the HTTP server of the VoiceHeard service.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/voiceheard/internal/gloss"
	"github.com/ayusman/voiceheard/internal/platform/logger"
	"github.com/ayusman/voiceheard/internal/platform/metrics"
	"github.com/ayusman/voiceheard/internal/sentence"
	"github.com/ayusman/voiceheard/internal/server/api"
	"github.com/ayusman/voiceheard/internal/session"
	"github.com/ayusman/voiceheard/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir    string
	Store        *store.Store
	Orchestrator *session.Orchestrator
	// Templates receives gestures trained through the API.
	Templates api.Templates
	// KnownLabel reports whether a label belongs to the active vocabulary.
	KnownLabel func(label string) bool
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	config Config
	router chi.Router
	log    *slog.Logger
	start  time.Time
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		log:    config.Logger,
		start:  time.Now(),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if config.Metrics != nil && config.Orchestrator != nil {
		config.Orchestrator.OnUtterance(func(_ string, u sentence.Utterance) {
			config.Metrics.IncUtterances(string(u.Reason))
		})
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(logger.RequestLogger(s.log))
	if m := s.config.Metrics; m != nil {
		r.Use(metrics.RequestMiddleware(m))
		r.Get("/metrics", m.Handler(s.updateGauges).ServeHTTP)
	}

	r.Get("/api/health", s.handleHealth)

	if o := s.config.Orchestrator; o != nil {
		gen := api.NewGenerateHandler(o, s.observeTimeline)
		r.Post("/api/generate", gen.Generate)
		r.Get("/api/signs/{sign}", gen.Sign)

		rec := api.NewRecognitionHandler(o)
		r.Route("/api/recognition", func(r chi.Router) {
			r.Post("/start", rec.Start)
			r.Post("/frames", rec.Frames)
			r.Post("/stop", rec.Stop)
			r.Get("/stream", NewRecognitionStream(o, s.log).ServeHTTP)
		})
	}

	if st := s.config.Store; st != nil {
		hist := api.NewHistoryHandler(st)
		r.Get("/api/history", hist.List)
		r.Post("/api/history/{id}/favorite", hist.Favorite)

		if s.config.Templates != nil {
			g := api.NewGestureHandler(st, s.config.Templates, s.config.KnownLabel)
			r.Route("/api/gestures", func(r chi.Router) {
				r.Get("/", g.List)
				r.Get("/{label}", g.Get)
				r.Delete("/{label}", g.Delete)
				r.Get("/{label}/samples", g.Samples)
				r.Post("/{label}/samples", g.AddSamples)
			})
		}
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

func (s *Server) observeTimeline(gloss.Timeline) {
	if s.config.Metrics != nil {
		s.config.Metrics.IncTimelines()
	}
}

func (s *Server) updateGauges() {
	if s.config.Orchestrator == nil {
		return
	}
	active := 0
	if s.config.Orchestrator.Status().Mode == session.ModeRecognition {
		active = 1
	}
	s.config.Metrics.SetActiveSessions(active)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Orchestrator != nil {
		response["session"] = s.config.Orchestrator.Status()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
