package dataprocessing

import (
	"time"

	"sbscli/pkg/contracts/domain"
)

const secondsPerDay = 24 * 60 * 60

// DaysSinceEpoch is the interpolation x-axis: elapsed days from the Unix
// epoch to t. Months of different length are therefore weighted by time.
func DaysSinceEpoch(t time.Time) float64 {
	return float64(t.Unix()) / secondsPerDay
}

// Interpolate fills nil entries of ys by linear interpolation over xs
// between the nearest known neighbours. Leading and trailing gaps take the
// nearest known value. xs must be ascending and the same length as ys.
//
// The result is a new slice; ys is not modified. When ys has no known
// value the result is a copy of ys and filled is zero.
func Interpolate(xs []float64, ys []*float64) (out []*float64, filled int) {
	out = make([]*float64, len(ys))
	known := make([]int, 0, len(ys))
	for i, y := range ys {
		out[i] = domain.CopyFloat(y)
		if y != nil {
			known = append(known, i)
		}
	}
	if len(known) == 0 {
		return out, 0
	}

	next := 0 // index into known of the first known point at or after i
	for i := range out {
		for next < len(known) && known[next] < i {
			next++
		}
		if out[i] != nil {
			continue
		}

		switch {
		case next == 0:
			out[i] = domain.CopyFloat(ys[known[0]])
		case next == len(known):
			out[i] = domain.CopyFloat(ys[known[len(known)-1]])
		default:
			l, r := known[next-1], known[next]
			x0, x1 := xs[l], xs[r]
			y0, y1 := *ys[l], *ys[r]
			out[i] = domain.Float(y0 + (y1-y0)*(xs[i]-x0)/(x1-x0))
		}
		filled++
	}
	return out, filled
}

// interpolateSeries fills the gaps of one firm's month-ordered observations in place.
func interpolateSeries(obs []domain.MonthlyObservation) int {
	xs := make([]float64, len(obs))
	ys := make([]*float64, len(obs))
	for i, o := range obs {
		xs[i] = DaysSinceEpoch(o.Month)
		ys[i] = o.Value
	}

	filled, n := Interpolate(xs, ys)
	for i := range obs {
		obs[i].Value = filled[i]
	}
	return n
}
