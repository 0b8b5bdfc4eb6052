package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/voiceheard/internal/gesture"
	"github.com/ayusman/voiceheard/internal/store"
)

// Templates receives templates trained from recorded samples.
type Templates interface {
	AddTemplate(t *gesture.Template)
	RemoveTemplate(label string)
}

// GestureHandler handles gesture template resources.
type GestureHandler struct {
	store     *store.Store
	templates Templates
	trainer   *gesture.Trainer
	known     func(label string) bool
}

// NewGestureHandler creates a GestureHandler. known reports whether a label
// belongs to the active vocabulary.
func NewGestureHandler(s *store.Store, templates Templates, known func(label string) bool) *GestureHandler {
	return &GestureHandler{
		store:     s,
		templates: templates,
		trainer:   gesture.NewTrainer(),
		known:     known,
	}
}

type createSamplesRequest struct {
	Samples   []json.RawMessage `json:"samples"`
	Tolerance float64           `json:"tolerance"`
}

type gestureResponse struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Tolerance float64 `json:"tolerance"`
	Samples   int     `json:"samples"`
	Frames    int     `json:"frames"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type listGesturesResponse struct {
	Gestures []gestureResponse `json:"gestures"`
}

type sampleResponse struct {
	ID          int64           `json:"id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

func toResponse(g *store.Gesture) gestureResponse {
	return gestureResponse{
		ID:        g.ID,
		Label:     g.Label,
		Tolerance: g.Tolerance,
		Samples:   g.Samples,
		Frames:    len(g.Frames),
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
		UpdatedAt: g.UpdatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/gestures.
func (h *GestureHandler) List(w http.ResponseWriter, r *http.Request) {
	gestures, err := h.store.Gestures().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list gestures")
		return
	}

	response := listGesturesResponse{
		Gestures: make([]gestureResponse, 0, len(gestures)),
	}
	for _, g := range gestures {
		response.Gestures = append(response.Gestures, toResponse(g))
	}
	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/gestures/{label}.
func (h *GestureHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.store.Gestures().GetByLabel(r.Context(), chi.URLParam(r, "label"))
	if err != nil {
		writeErr(w, err, "Failed to get gesture")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(g))
}

// Delete handles DELETE /api/gestures/{label} and stops matching it.
func (h *GestureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	g, err := h.store.Gestures().GetByLabel(r.Context(), label)
	if err == nil {
		err = h.store.Gestures().Delete(r.Context(), g.ID)
	}
	if err != nil {
		writeErr(w, err, "Failed to delete gesture")
		return
	}
	h.templates.RemoveTemplate(label)
	w.WriteHeader(http.StatusNoContent)
}

// Samples handles GET /api/gestures/{label}/samples.
func (h *GestureHandler) Samples(w http.ResponseWriter, r *http.Request) {
	g, err := h.store.Gestures().GetByLabel(r.Context(), chi.URLParam(r, "label"))
	if err != nil {
		writeErr(w, err, "Failed to get gesture")
		return
	}
	samples, err := h.store.Samples().GetByGestureID(r.Context(), g.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:          s.ID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// AddSamples handles POST /api/gestures/{label}/samples. The gesture is
// created on first use, retrained from all of its samples and its template
// is swapped into the live classifier.
func (h *GestureHandler) AddSamples(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if h.known != nil && !h.known(label) {
		writeError(w, http.StatusBadRequest, "Unknown gesture label")
		return
	}

	var req createSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}
	// validate before anything is stored
	if _, err := h.trainer.Train(label, req.Samples, req.Tolerance); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	gestures := h.store.Gestures()
	g, err := gestures.GetByLabel(ctx, label)
	if errors.Is(err, store.ErrNotFound) {
		g = &store.Gesture{Label: label, Tolerance: req.Tolerance}
		err = gestures.Create(ctx, g)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save gesture")
		return
	}

	count, err := h.store.Samples().Append(ctx, g.ID, req.Samples)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}
	all, err := h.store.Samples().Raw(ctx, g.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load samples")
		return
	}

	if req.Tolerance > 0 {
		g.Tolerance = req.Tolerance
	}
	tmpl, err := h.trainer.Train(label, all, g.Tolerance)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g.Tolerance = tmpl.Tolerance
	g.Frames = tmpl.Frames
	g.Samples = count
	if err := gestures.Update(ctx, g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save gesture")
		return
	}

	h.templates.AddTemplate(tmpl)
	writeJSON(w, http.StatusCreated, toResponse(g))
}
