package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/voiceheard/internal/gesture"
	"github.com/ayusman/voiceheard/internal/store"
)

// newTestStore creates a Store backed by a temporary database.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

type recordingTemplates struct {
	mu      sync.Mutex
	added   []*gesture.Template
	removed []string
}

func (r *recordingTemplates) AddTemplate(t *gesture.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, t)
}

func (r *recordingTemplates) RemoveTemplate(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, label)
}

func gestureRouter(h *GestureHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/gestures", h.List)
	r.Get("/api/gestures/{label}", h.Get)
	r.Delete("/api/gestures/{label}", h.Delete)
	r.Get("/api/gestures/{label}/samples", h.Samples)
	r.Post("/api/gestures/{label}/samples", h.AddSamples)
	return r
}

func knownLabels(labels ...string) func(string) bool {
	return func(l string) bool {
		for _, k := range labels {
			if k == l {
				return true
			}
		}
		return false
	}
}

func sampleJSON(frames [][]float64) json.RawMessage {
	b, _ := json.Marshal(gesture.Sample{Frames: frames})
	return b
}

func postSamples(t *testing.T, h http.Handler, label string, req createSamplesRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/gestures/"+label+"/samples", bytes.NewReader(body)))
	return rec
}

func TestGestureHandler_AddSamplesTrainsTemplate(t *testing.T) {
	s := newTestStore(t)
	templates := &recordingTemplates{}
	h := gestureRouter(NewGestureHandler(s, templates, knownLabels("HELLO")))

	rec := postSamples(t, h, "HELLO", createSamplesRequest{
		Samples: []json.RawMessage{
			sampleJSON([][]float64{{0, 0}, {1, 1}, {2, 2}}),
			sampleJSON([][]float64{{0, 0}, {1, 1}, {2, 2}}),
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp gestureResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Label != "HELLO" || resp.Samples != 2 || resp.Frames != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Tolerance != gesture.DefaultTolerance {
		t.Errorf("expected default tolerance, got %v", resp.Tolerance)
	}
	if len(templates.added) != 1 || templates.added[0].Label != "HELLO" {
		t.Fatalf("expected HELLO template to be installed, got %+v", templates.added)
	}

	// a second batch appends and retrains
	rec = postSamples(t, h, "HELLO", createSamplesRequest{
		Samples:   []json.RawMessage{sampleJSON([][]float64{{0, 0}, {2, 2}})},
		Tolerance: 0.5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	g, err := s.Gestures().GetByLabel(t.Context(), "HELLO")
	if err != nil {
		t.Fatalf("failed to get gesture: %v", err)
	}
	if g.Samples != 3 || g.Tolerance != 0.5 {
		t.Errorf("expected 3 samples at tolerance 0.5, got %d at %v", g.Samples, g.Tolerance)
	}
	if len(templates.added) != 2 {
		t.Errorf("expected template to be replaced, got %d installs", len(templates.added))
	}
}

func TestGestureHandler_AddSamplesValidation(t *testing.T) {
	s := newTestStore(t)
	h := gestureRouter(NewGestureHandler(s, &recordingTemplates{}, knownLabels("HELLO")))

	tests := []struct {
		name  string
		label string
		req   createSamplesRequest
	}{
		{"unknown label", "ZEBRA", createSamplesRequest{Samples: []json.RawMessage{sampleJSON([][]float64{{1}})}}},
		{"no samples", "HELLO", createSamplesRequest{}},
		{"empty sample", "HELLO", createSamplesRequest{Samples: []json.RawMessage{sampleJSON(nil)}}},
		{"invalid sample", "HELLO", createSamplesRequest{Samples: []json.RawMessage{json.RawMessage(`"nope"`)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postSamples(t, h, tt.label, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
			}
		})
	}

	gestures, err := s.Gestures().List(t.Context())
	if err != nil {
		t.Fatalf("failed to list gestures: %v", err)
	}
	if len(gestures) != 0 {
		t.Errorf("expected nothing stored, got %d gestures", len(gestures))
	}
}

func TestGestureHandler_ListGetDelete(t *testing.T) {
	s := newTestStore(t)
	templates := &recordingTemplates{}
	h := gestureRouter(NewGestureHandler(s, templates, nil))

	for _, label := range []string{"YOU", "HELLO"} {
		if err := s.Gestures().Create(t.Context(), &store.Gesture{Label: label, Tolerance: 0.3}); err != nil {
			t.Fatalf("failed to create gesture: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gestures", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	var list listGesturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Gestures) != 2 || list.Gestures[0].Label != "HELLO" {
		t.Errorf("expected HELLO first of 2 gestures, got %+v", list.Gestures)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gestures/YOU", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/gestures/YOU", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if len(templates.removed) != 1 || templates.removed[0] != "YOU" {
		t.Errorf("expected YOU template removed, got %v", templates.removed)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/gestures/YOU", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}

func TestGestureHandler_Samples(t *testing.T) {
	s := newTestStore(t)
	h := gestureRouter(NewGestureHandler(s, &recordingTemplates{}, nil))

	for i := range 2 {
		rec := postSamples(t, h, "WAVE", createSamplesRequest{
			Samples: []json.RawMessage{sampleJSON([][]float64{{float64(i)}, {1}})},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gestures/WAVE/samples", nil))
	var resp listSamplesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(resp.Samples))
	}
	for i, sample := range resp.Samples {
		if sample.SampleIndex != i {
			t.Errorf("sample %d has index %d", i, sample.SampleIndex)
		}
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/gestures/%s/samples", "NOPE"), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
