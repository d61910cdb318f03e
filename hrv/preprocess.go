package hrv

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-hrv/dsp/filter/biquad"
)

// movingAverageDetrend subtracts a centered moving-average baseline.
// A window <= 1 returns the input unchanged.
func movingAverageDetrend(x []float64, windowLen int) []float64 {
	if windowLen <= 1 {
		return x
	}

	n := len(x)
	out := make([]float64, n)

	cumsum := make([]float64, n+1)
	for i, v := range x {
		cumsum[i+1] = cumsum[i] + v
	}

	for i := range x {
		start := i - windowLen/2
		if start < 0 {
			start = 0
		}

		end := i + (windowLen - windowLen/2)
		if end > n {
			end = n
		}

		count := end - start
		if count < 1 {
			count = 1
		}

		out[i] = x[i] - (cumsum[end]-cumsum[start])/float64(count)
	}

	return out
}

// bandpassFilter runs the constant-skirt cascade over a copy of x.
// Disabled cutoffs pass the signal through.
func bandpassFilter(x []float64, fs, lowHz, highHz float64, order int) []float64 {
	chain := biquad.BandpassChain(fs, lowHz, highHz, order)
	if chain.NumSections() == 0 {
		return x
	}

	y := append([]float64(nil), x...)
	chain.ProcessBlock(y)

	return y
}

// InterpolateClipping bridges runs of samples at or above threshold with a
// linear ramp between the surrounding unclipped samples. Runs touching the
// signal edge are held at the nearest unclipped value.
func InterpolateClipping(signal []float64, threshold float64) []float64 {
	n := len(signal)
	out := append([]float64(nil), signal...)

	i := 0
	for i < n {
		if out[i] < threshold {
			i++
			continue
		}

		start := i
		for i < n && out[i] >= threshold {
			i++
		}
		end := i // first unclipped sample after the run, or n

		switch {
		case start == 0 && end == n:
			// Fully clipped; nothing to anchor on.
		case start == 0:
			for j := start; j < end; j++ {
				out[j] = out[end]
			}
		case end == n:
			for j := start; j < end; j++ {
				out[j] = out[start-1]
			}
		default:
			left := out[start-1]
			right := out[end]
			span := float64(end - start + 1)
			for j := start; j < end; j++ {
				t := float64(j-start+1) / span
				out[j] = left + t*(right-left)
			}
		}
	}

	return out
}

// HampelFilter replaces samples deviating from the local median by more
// than threshold times the scaled local MAD.
func HampelFilter(signal []float64, windowSize int, threshold float64) []float64 {
	n := len(signal)
	if n == 0 || windowSize < 1 {
		return append([]float64(nil), signal...)
	}

	// 1.4826 scales MAD to the standard deviation of a normal distribution.
	const madScale = 1.4826

	out := append([]float64(nil), signal...)
	local := make([]float64, 0, 2*windowSize+1)
	dev := make([]float64, 0, 2*windowSize+1)

	for i := range signal {
		start := i - windowSize
		if start < 0 {
			start = 0
		}

		end := i + windowSize + 1
		if end > n {
			end = n
		}

		local = append(local[:0], signal[start:end]...)
		med := medianInPlace(local)

		dev = dev[:0]
		for _, v := range signal[start:end] {
			dev = append(dev, math.Abs(v-med))
		}

		mad := medianInPlace(dev)

		if math.Abs(signal[i]-med) > threshold*madScale*mad {
			out[i] = med
		}
	}

	return out
}

// RemoveBaselineWander subtracts a slow moving-average baseline (one
// second wide) from the signal.
func RemoveBaselineWander(signal []float64, fs float64) []float64 {
	win := int(math.Round(fs))
	if win < 3 {
		win = 3
	}

	return movingAverageDetrend(signal, win)
}

// EnhancePeaks sharpens systolic peaks by band-passing around the cardiac
// band and squaring. The output is the squared magnitude, so it is
// non-negative and the sign of the band-passed signal is not kept.
func EnhancePeaks(signal []float64, fs float64) []float64 {
	y := bandpassFilter(movingAverageDetrend(signal, int(math.Round(0.75*fs))), fs, 0.5, 5, 2)

	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = v * v
	}

	return out
}

// ScaleData rescales the signal linearly to [newMin, newMax]. A constant
// signal maps to newMin.
func ScaleData(signal []float64, newMin, newMax float64) []float64 {
	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}

	lo, hi := signal[0], signal[0]
	for _, v := range signal {
		if v < lo {
			lo = v
		}

		if v > hi {
			hi = v
		}
	}

	if hi == lo {
		for i := range out {
			out[i] = newMin
		}

		return out
	}

	scale := (newMax - newMin) / (hi - lo)
	for i, v := range signal {
		out[i] = newMin + (v-lo)*scale
	}

	return out
}

// medianInPlace sorts v and returns its median. Empty input returns 0.
func medianInPlace(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}

	sort.Float64s(v)

	mid := len(v) / 2
	if len(v)%2 == 1 {
		return v[mid]
	}

	return 0.5 * (v[mid-1] + v[mid])
}

// median returns the median of v without mutating it.
func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}

	tmp := append([]float64(nil), v...)

	return medianInPlace(tmp)
}
