// Package welch estimates power spectral density with Welch's method:
// overlapping Hamming-windowed segments, averaged modified periodograms.
package welch

import (
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-hrv/dsp/window"
)

// Result holds a one-sided power spectral density estimate. Freqs and PSD
// have length nfft/2 + 1; both are empty when the input was too short.
type Result struct {
	Freqs []float64
	PSD   []float64
}

// Empty reports whether the estimate carries no data.
func (r Result) Empty() bool {
	return len(r.PSD) == 0
}

// Df returns the bin spacing in Hz, or 0 for an empty result.
func (r Result) Df() float64 {
	if len(r.Freqs) < 2 {
		return 0
	}

	return r.Freqs[1] - r.Freqs[0]
}

// PSD computes the Welch periodogram of x sampled at fs.
//
// Segments are nfft samples long, Hamming windowed, and advanced by
// nfft - round(overlap*nfft) samples. Each segment periodogram is scaled
// by 1/(nfft * fs * winNorm^2) where winNorm is the window coherent gain,
// then averaged. When len(x) < nfft the result is empty; callers treat
// that as "not enough data yet" rather than an error.
func PSD(x []float64, fs float64, nfft int, overlap float64) Result {
	if nfft <= 0 {
		nfft = 256
	}

	n := len(x)
	if n < nfft || fs <= 0 {
		return Result{}
	}

	hop := nfft - int(math.Round(overlap*float64(nfft)))
	if hop < 1 {
		hop = 1
	}

	coeffs := window.Generate(window.TypeHamming, nfft)
	winNorm := window.CoherentGain(coeffs)

	plan, err := algofft.NewPlan64(nfft)
	if err != nil {
		return Result{}
	}

	kmax := nfft/2 + 1
	psd := make([]float64, kmax)

	in := make([]complex128, nfft)
	out := make([]complex128, nfft)
	re := make([]float64, kmax)
	im := make([]float64, kmax)
	power := make([]float64, kmax)

	nseg := 1 + (n-nfft)/hop
	scale := 1 / (float64(nfft) * fs * winNorm * winNorm)

	for s := 0; s < nseg; s++ {
		start := s * hop
		for t := 0; t < nfft; t++ {
			in[t] = complex(x[start+t]*coeffs[t], 0)
		}

		if err := plan.Forward(out, in); err != nil {
			return Result{}
		}

		for k := 0; k < kmax; k++ {
			re[k] = real(out[k])
			im[k] = imag(out[k])
		}

		vecmath.Power(power, re, im)

		for k := 0; k < kmax; k++ {
			psd[k] += power[k] * scale
		}
	}

	inv := 1 / float64(nseg)
	for k := range psd {
		psd[k] *= inv
	}

	freqs := make([]float64, kmax)
	for k := range freqs {
		freqs[k] = fs * float64(k) / float64(nfft)
	}

	return Result{Freqs: freqs, PSD: psd}
}

// IntegrateBand integrates the PSD over [lo, hi] Hz with trapezoidal
// weighting, counting only bin endpoints that fall inside the band.
func IntegrateBand(r Result, lo, hi float64) float64 {
	var area float64

	for i := 1; i < len(r.Freqs); i++ {
		f1, f2 := r.Freqs[i-1], r.Freqs[i]
		if f2 < lo || f1 > hi {
			continue
		}

		w1, w2 := 0.0, 0.0
		if f1 >= lo && f1 <= hi {
			w1 = 1
		}

		if f2 >= lo && f2 <= hi {
			w2 = 1
		}

		area += (f2 - f1) * 0.5 * (r.PSD[i-1]*w1 + r.PSD[i]*w2)
	}

	return area
}

// PeakFrequency returns the frequency of the largest PSD bin within
// [lo, hi] Hz, or 0 when no bin falls inside the band.
func PeakFrequency(r Result, lo, hi float64) float64 {
	best := -1.0
	freq := 0.0

	for i, f := range r.Freqs {
		if f < lo || f > hi {
			continue
		}

		if r.PSD[i] > best {
			best = r.PSD[i]
			freq = f
		}
	}

	return freq
}

// PowerAt returns the PSD value at the bin closest to f Hz, or 0 for an
// empty result or non-positive frequency.
func PowerAt(r Result, f float64) float64 {
	if r.Empty() || f <= 0 {
		return 0
	}

	df := r.Df()
	if df <= 0 {
		return 0
	}

	k := int(math.Round(f / df))
	if k < 0 {
		k = 0
	}

	if k >= len(r.PSD) {
		k = len(r.PSD) - 1
	}

	return r.PSD[k]
}
