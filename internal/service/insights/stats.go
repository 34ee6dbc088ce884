package insights

import (
	"math"
	"sort"
)

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// stddev is the sample standard deviation; it needs at least two values
func stddev(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)-1)), true
}

// slope is the least-squares gradient of ys over xs
func slope(xs, ys []float64) (float64, bool) {
	mx, my := mean(xs), mean(ys)
	var cov, varX float64
	for i := range xs {
		dx := xs[i] - mx
		cov += dx * (ys[i] - my)
		varX += dx * dx
	}
	if varX == 0 {
		return 0, false
	}
	return cov / varX, true
}
