package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/voiceheard/internal/gloss"
	"github.com/ayusman/voiceheard/internal/session"
)

// Generator plans sign timelines.
type Generator interface {
	Generate(ctx context.Context, req session.GenerateRequest) (gloss.Timeline, error)
	Sign(ctx context.Context, sign string) (gloss.Timeline, error)
}

// GenerateHandler serves text-to-sign requests.
type GenerateHandler struct {
	generator Generator
	observe   func(gloss.Timeline)
}

// NewGenerateHandler creates a GenerateHandler. observe, if set, is called
// with every timeline served.
func NewGenerateHandler(g Generator, observe func(gloss.Timeline)) *GenerateHandler {
	return &GenerateHandler{generator: g, observe: observe}
}

type generateRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

type timelineResponse struct {
	Glosses           []glossResponse `json:"glosses"`
	DurationMS        int64           `json:"duration_ms"`
	DictionaryVersion string          `json:"dictionary_version"`
	RulesVersion      string          `json:"rules_version"`
	Unmapped          []string        `json:"unmapped,omitempty"`
}

type glossResponse struct {
	ID                   string `json:"id"`
	Word                 string `json:"word,omitempty"`
	StartMS              int64  `json:"start_ms"`
	DurationMS           int64  `json:"duration_ms"`
	Transition           string `json:"transition"`
	TransitionDurationMS int64  `json:"transition_duration_ms,omitempty"`
	FingerSpelled        bool   `json:"finger_spelled,omitempty"`
}

func toTimelineResponse(tl gloss.Timeline) timelineResponse {
	resp := timelineResponse{
		Glosses:           make([]glossResponse, 0, len(tl.Glosses)),
		DurationMS:        tl.Duration.Milliseconds(),
		DictionaryVersion: tl.DictionaryVersion,
		RulesVersion:      tl.RulesVersion,
		Unmapped:          tl.Unmapped,
	}
	for _, g := range tl.Glosses {
		resp.Glosses = append(resp.Glosses, glossResponse{
			ID:                   g.ID,
			Word:                 g.Word,
			StartMS:              g.Start.Milliseconds(),
			DurationMS:           g.Duration.Milliseconds(),
			Transition:           string(g.Transition),
			TransitionDurationMS: g.TransitionDuration.Milliseconds(),
			FingerSpelled:        g.FingerSpelled,
		})
	}
	return resp
}

// Generate handles POST /api/generate.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	tl, err := h.generator.Generate(r.Context(), session.GenerateRequest{Text: req.Text, Lang: req.Lang})
	if err != nil {
		writeErr(w, err, "Failed to generate timeline")
		return
	}
	h.served(tl)
	writeJSON(w, http.StatusOK, toTimelineResponse(tl))
}

// Sign handles GET /api/signs/{sign}.
func (h *GenerateHandler) Sign(w http.ResponseWriter, r *http.Request) {
	tl, err := h.generator.Sign(r.Context(), chi.URLParam(r, "sign"))
	if err != nil {
		writeErr(w, err, "Failed to plan sign")
		return
	}
	h.served(tl)
	writeJSON(w, http.StatusOK, toTimelineResponse(tl))
}

func (h *GenerateHandler) served(tl gloss.Timeline) {
	if h.observe != nil {
		h.observe(tl)
	}
}
