package quality

import "math"

// Pearson returns the Pearson correlation of paired samples. ok is false
// with fewer than two finite pairs or when either side has zero variance.
func Pearson(x, y []float64) (r float64, ok bool) {
	if len(x) != len(y) {
		return 0, false
	}

	var sumX, sumY float64
	n := 0
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		sumX += x[i]
		sumY += y[i]
		n++
	}
	if n < 2 {
		return 0, false
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sumXY, sumXX, sumYY float64
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		dx := x[i] - meanX
		dy := y[i] - meanY
		sumXY += dx * dy
		sumXX += dx * dx
		sumYY += dy * dy
	}
	if sumXX == 0 || sumYY == 0 {
		return 0, false
	}

	r = sumXY / math.Sqrt(sumXX*sumYY)
	if !finite(r) {
		return 0, false
	}
	return r, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
