package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/voiceheard/internal/frame"
	"github.com/ayusman/voiceheard/internal/sentence"
)

// Recognizer runs the sign-to-text session.
type Recognizer interface {
	StartRecognition(ctx context.Context) (string, error)
	PushFrame(f frame.FeatureFrame) error
	StopRecognition(ctx context.Context) (sentence.Utterance, error)
}

// FrameMessage is a frame on the wire. Either Vector or Hands is set; hands
// are converted to a feature vector.
type FrameMessage struct {
	TimestampMS float64               `json:"timestamp_ms"`
	Seq         uint64                `json:"seq"`
	Vector      []float64             `json:"vector,omitempty"`
	Hands       []frame.HandLandmarks `json:"hands,omitempty"`
}

// Frame converts the message to a FeatureFrame.
func (m FrameMessage) Frame() (frame.FeatureFrame, error) {
	if m.TimestampMS < 0 {
		return frame.FeatureFrame{}, fmt.Errorf("negative timestamp: %w", frame.ErrMalformedFrame)
	}
	ts := time.Duration(m.TimestampMS * float64(time.Millisecond))
	if len(m.Vector) == 0 && len(m.Hands) > 0 {
		return frame.FromHands(ts, m.Seq, m.Hands), nil
	}
	return frame.FeatureFrame{Timestamp: ts, Vector: m.Vector, Seq: m.Seq}, nil
}

// RecognitionHandler serves the request/response recognition endpoints.
type RecognitionHandler struct {
	recognizer Recognizer
}

// NewRecognitionHandler creates a RecognitionHandler.
func NewRecognitionHandler(r Recognizer) *RecognitionHandler {
	return &RecognitionHandler{recognizer: r}
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

type framesRequest struct {
	Frames []FrameMessage `json:"frames"`
}

type framesResponse struct {
	Accepted int `json:"accepted"`
}

type stopResponse struct {
	Utterance *sentence.Utterance `json:"utterance"`
}

// Start handles POST /api/recognition/start.
func (h *RecognitionHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := h.recognizer.StartRecognition(r.Context())
	if err != nil {
		writeErr(w, err, "Failed to start recognition")
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{SessionID: id})
}

// Frames handles POST /api/recognition/frames. Frames before the first
// rejected one are kept.
func (h *RecognitionHandler) Frames(w http.ResponseWriter, r *http.Request) {
	var req framesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	for i, msg := range req.Frames {
		f, err := msg.Frame()
		if err == nil {
			err = h.recognizer.PushFrame(f)
		}
		if err != nil {
			writeErr(w, fmt.Errorf("frame %d: %w", i, err), "Failed to push frame")
			return
		}
	}
	writeJSON(w, http.StatusOK, framesResponse{Accepted: len(req.Frames)})
}

// Stop handles POST /api/recognition/stop. An empty session returns a null
// utterance.
func (h *RecognitionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	u, err := h.recognizer.StopRecognition(r.Context())
	if errors.Is(err, sentence.ErrEmptyUtterance) {
		writeJSON(w, http.StatusOK, stopResponse{})
		return
	}
	if err != nil {
		writeErr(w, err, "Failed to stop recognition")
		return
	}
	writeJSON(w, http.StatusOK, stopResponse{Utterance: &u})
}
