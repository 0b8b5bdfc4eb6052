// Package testdata provides landmark and feature-stream fixtures shared by
// tests across packages.
package testdata

import (
	"time"

	"github.com/ayusman/voiceheard/internal/frame"
)

// ThumbsUpLandmarks returns a right hand with the thumb extended upward and
// the other fingers curled.
func ThumbsUpLandmarks() frame.HandLandmarks {
	h := frame.HandLandmarks{Handedness: "Right", Score: 0.95}
	pts := [][3]float64{
		{0.5, 0.8, 0.0},
		{0.55, 0.75, 0.0}, {0.58, 0.65, 0.0}, {0.58, 0.50, 0.0}, {0.58, 0.35, 0.0},
		{0.55, 0.70, -0.02}, {0.55, 0.68, -0.05}, {0.52, 0.70, -0.04}, {0.50, 0.72, -0.02},
		{0.50, 0.68, -0.02}, {0.50, 0.66, -0.05}, {0.47, 0.68, -0.04}, {0.45, 0.70, -0.02},
		{0.45, 0.70, -0.02}, {0.45, 0.68, -0.05}, {0.42, 0.70, -0.04}, {0.40, 0.72, -0.02},
		{0.40, 0.72, -0.02}, {0.40, 0.70, -0.05}, {0.37, 0.72, -0.04}, {0.35, 0.74, -0.02},
	}
	for i, p := range pts {
		h.Points[i] = frame.Point3D{X: p[0], Y: p[1], Z: p[2]}
	}
	return h
}

// OpenPalmLandmarks returns a right hand with all fingers extended.
func OpenPalmLandmarks() frame.HandLandmarks {
	h := frame.HandLandmarks{Handedness: "Right", Score: 0.95}
	pts := [][3]float64{
		{0.5, 0.8, 0.0},
		{0.55, 0.75, 0.02}, {0.62, 0.70, 0.03}, {0.68, 0.65, 0.03}, {0.73, 0.60, 0.03},
		{0.55, 0.68, 0.0}, {0.57, 0.55, 0.0}, {0.58, 0.45, 0.0}, {0.58, 0.35, 0.0},
		{0.50, 0.66, 0.0}, {0.50, 0.52, 0.0}, {0.50, 0.40, 0.0}, {0.50, 0.28, 0.0},
		{0.45, 0.68, 0.0}, {0.43, 0.55, 0.0}, {0.42, 0.45, 0.0}, {0.42, 0.35, 0.0},
		{0.40, 0.70, 0.0}, {0.37, 0.60, 0.0}, {0.35, 0.50, 0.0}, {0.34, 0.42, 0.0},
	}
	for i, p := range pts {
		h.Points[i] = frame.Point3D{X: p[0], Y: p[1], Z: p[2]}
	}
	return h
}

// Stream returns count frames spaced interval apart starting at start, all
// carrying a copy of vec.
func Stream(start, interval time.Duration, count int, vec []float64) []frame.FeatureFrame {
	frames := make([]frame.FeatureFrame, count)
	for i := range frames {
		frames[i] = frame.FeatureFrame{
			Timestamp: start + time.Duration(i)*interval,
			Vector:    append([]float64(nil), vec...),
			Seq:       uint64(i),
		}
	}
	return frames
}

// Constant returns a vector of length n filled with v.
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
