package frame

import (
	"math"
	"time"
)

// Hand landmark indices following the MediaPipe hand model.
const (
	Wrist        = 0
	ThumbTip     = 4
	IndexMCP     = 5
	IndexTip     = 8
	MiddleMCP    = 9
	MiddleTip    = 12
	RingTip      = 16
	PinkyMCP     = 17
	PinkyTip     = 20
	NumLandmarks = 21
)

// HandsDim is the length of a feature vector built by FromHands: two hands,
// left first, each with NumLandmarks xyz points.
const HandsDim = 2 * NumLandmarks * 3

// Point3D is a landmark position.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one detected hand as reported by a landmark detector.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

func distance3D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Normalize translates the hand so the wrist is at the origin and scales it
// so the wrist to middle-finger MCP distance is 1. This makes features
// independent of where the signer stands and how far from the camera.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
	}

	scale := distance3D(Point3D{}, normalized.Points[MiddleMCP])
	if scale < 1e-10 {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}

// FromHands builds a FeatureFrame from detected hands. Each hand is
// normalized; the left hand fills the first half of the vector and the right
// hand the second. A missing hand leaves its half at zero. When two hands
// claim the same side, the higher-scoring one wins.
func FromHands(ts time.Duration, seq uint64, hands []HandLandmarks) FeatureFrame {
	vec := make([]float64, HandsDim)
	var best [2]float64
	for i := range hands {
		side := 1
		if hands[i].Handedness == "Left" {
			side = 0
		}
		if hands[i].Score < best[side] {
			continue
		}
		best[side] = hands[i].Score

		n := hands[i].Normalize()
		base := side * NumLandmarks * 3
		for j, p := range n.Points {
			vec[base+j*3] = p.X
			vec[base+j*3+1] = p.Y
			vec[base+j*3+2] = p.Z
		}
	}
	return FeatureFrame{Timestamp: ts, Vector: vec, Seq: seq}
}
