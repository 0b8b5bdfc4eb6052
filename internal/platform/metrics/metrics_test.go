package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ayusman/voiceheard/internal/events"
)

func TestEmitCountsByKind(t *testing.T) {
	m := New()
	m.Emit(events.Event{Kind: events.LateFrame})
	m.Emit(events.Event{Kind: events.LateFrame})
	m.Emit(events.Event{Kind: events.InputStarvation})

	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues(string(events.LateFrame))); got != 2 {
		t.Errorf("late_frame = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues(string(events.InputStarvation))); got != 1 {
		t.Errorf("input_starvation = %v, want 1", got)
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(m.errorsTotal); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "OK")); got != 1 {
		t.Errorf("GET OK = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncTimelines()
	called := false

	rec := httptest.NewRecorder()
	m.Handler(func() {
		called = true
		m.SetActiveSessions(1)
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !called {
		t.Error("updateGauges not called")
	}
	for _, want := range []string{"voiceheard_timelines_total 1", "voiceheard_active_recognition_sessions 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
