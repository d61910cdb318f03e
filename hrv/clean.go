package hrv

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CleanRR removes outlier intervals from rr using the configured method
// and returns the cleaned copy. Fewer than three intervals pass through
// unchanged.
func CleanRR(rr []float64, method CleanMethod, iterations int) []float64 {
	out := append([]float64(nil), rr...)
	if len(out) < 3 {
		return out
	}

	switch method {
	case CleanIQR:
		return cleanIQR(out)
	case CleanZScore:
		return cleanZScore(out, 3)
	default:
		if iterations < 1 {
			iterations = 1
		}

		for i := 0; i < iterations; i++ {
			next := quotientFilter(out)
			if len(next) == len(out) {
				break
			}

			out = next
		}

		return out
	}
}

// quotientFilter keeps intervals within [0.8, 1.2] of the previous kept
// interval. The first interval anchors the chain.
func quotientFilter(rr []float64) []float64 {
	if len(rr) < 2 {
		return rr
	}

	out := make([]float64, 0, len(rr))
	out = append(out, rr[0])

	prev := rr[0]
	for _, v := range rr[1:] {
		if prev > 0 {
			q := v / prev
			if q < 0.8 || q > 1.2 {
				continue
			}
		}

		out = append(out, v)
		prev = v
	}

	return out
}

func cleanIQR(rr []float64) []float64 {
	sorted := append([]float64(nil), rr...)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1

	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	out := make([]float64, 0, len(rr))
	for _, v := range rr {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}

	return out
}

func cleanZScore(rr []float64, threshold float64) []float64 {
	mean := stat.Mean(rr, nil)
	sd := stat.StdDev(rr, nil)

	if sd == 0 || math.IsNaN(sd) {
		return rr
	}

	out := make([]float64, 0, len(rr))
	for _, v := range rr {
		if math.Abs(v-mean)/sd <= threshold {
			out = append(out, v)
		}
	}

	return out
}

// MAD returns the median absolute deviation of data.
func MAD(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	med := median(data)

	dev := make([]float64, len(data))
	for i, v := range data {
		dev[i] = math.Abs(v - med)
	}

	return medianInPlace(dev)
}
