// Package gesture provides a template-matching gesture classifier. It is the
// reference implementation of classify.Classifier: windows of feature frames
// are compared against trained templates with Dynamic Time Warping.
package gesture

import "math"

// DTWDistance calculates the Dynamic Time Warping distance between two
// sequences of feature vectors. Returns infinity if either sequence is empty.
// The distance is normalized by the longer sequence length.
func DTWDistance(a, b [][]float64) float64 {
	n := len(a)
	m := len(b)

	if n == 0 || m == 0 {
		return math.Inf(1)
	}

	// (n+1) x (m+1) cost matrix initialized to infinity
	dtw := make([][]float64, n+1)
	for i := range dtw {
		dtw[i] = make([]float64, m+1)
		for j := range dtw[i] {
			dtw[i][j] = math.Inf(1)
		}
	}
	dtw[0][0] = 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := vectorDistance(a[i-1], b[j-1])
			dtw[i][j] = cost + min(dtw[i-1][j], dtw[i][j-1], dtw[i-1][j-1])
		}
	}

	return dtw[n][m] / float64(max(n, m))
}

// vectorDistance is the RMS difference over the shared prefix of two vectors,
// so distances stay comparable across feature dimensions.
func vectorDistance(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}
