package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/voiceheard/internal/sentence"
	"github.com/ayusman/voiceheard/internal/server/api"
	"github.com/ayusman/voiceheard/internal/session"
)

const (
	writeWait = 5 * time.Second
	stopWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local UI
	},
}

// StreamRecognizer is a Recognizer that also publishes utterances.
type StreamRecognizer interface {
	api.Recognizer
	OnUtterance(l session.Listener) (remove func())
}

// Client messages.
const (
	msgFrame  = "frame"
	msgFrames = "frames"
	msgStop   = "stop"
)

// Server messages.
const (
	msgStarted   = "started"
	msgUtterance = "utterance"
	msgFinal     = "final"
	msgError     = "error"
)

type clientMessage struct {
	Type   string             `json:"type"`
	Frame  *api.FrameMessage  `json:"frame,omitempty"`
	Frames []api.FrameMessage `json:"frames,omitempty"`
}

type serverMessage struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id,omitempty"`
	Utterance *sentence.Utterance `json:"utterance,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// RecognitionStream runs one recognition session per WebSocket connection.
// The session starts on connect, receives frame messages, pushes each closed
// utterance and stops on a stop message or when the connection closes.
type RecognitionStream struct {
	recognizer StreamRecognizer
	log        *slog.Logger
}

// NewRecognitionStream creates a RecognitionStream.
func NewRecognitionStream(r StreamRecognizer, log *slog.Logger) *RecognitionStream {
	if log == nil {
		log = slog.Default()
	}
	return &RecognitionStream{recognizer: r, log: log}
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg serverMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *RecognitionStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	id, err := h.recognizer.StartRecognition(r.Context())
	if err != nil {
		c.send(serverMessage{Type: msgError, Error: err.Error()})
		return
	}
	log := h.log.With("session_id", id)

	remove := h.recognizer.OnUtterance(func(sessionID string, u sentence.Utterance) {
		if sessionID != id {
			return
		}
		if err := c.send(serverMessage{Type: msgUtterance, SessionID: id, Utterance: &u}); err != nil {
			log.Debug("utterance not delivered", "error", err)
		}
	})
	defer remove()

	c.send(serverMessage{Type: msgStarted, SessionID: id})
	h.read(c, log)

	ctx, cancel := context.WithTimeout(context.Background(), stopWait)
	defer cancel()
	u, err := h.recognizer.StopRecognition(ctx)
	switch {
	case errors.Is(err, sentence.ErrEmptyUtterance):
		c.send(serverMessage{Type: msgFinal, SessionID: id})
	case err != nil:
		log.Error("failed to stop recognition", "error", err)
		c.send(serverMessage{Type: msgError, Error: err.Error()})
	default:
		c.send(serverMessage{Type: msgFinal, SessionID: id, Utterance: &u})
	}
	c.mu.Lock()
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.mu.Unlock()
}

// read consumes client messages until stop or disconnect.
func (h *RecognitionStream) read(c *conn, log *slog.Logger) {
	for {
		var msg clientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("recognition stream closed", "error", err)
			}
			return
		}

		switch msg.Type {
		case msgStop:
			return
		case msgFrame, msgFrames:
			frames := msg.Frames
			if msg.Frame != nil {
				frames = append(frames, *msg.Frame)
			}
			for _, fm := range frames {
				f, err := fm.Frame()
				if err == nil {
					err = h.recognizer.PushFrame(f)
				}
				if err != nil {
					c.send(serverMessage{Type: msgError, Error: err.Error()})
				}
			}
		default:
			c.send(serverMessage{Type: msgError, Error: "unknown message type " + msg.Type})
		}
	}
}
