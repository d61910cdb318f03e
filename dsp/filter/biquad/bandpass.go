package biquad

import "math"

// minQ is the lower clamp for the section quality factor. Narrow
// passbands at low center frequencies can otherwise produce unstable
// or useless sections.
const minQ = 0.2

// Bandpass designs a band-pass coefficient set centered at f0 with
// quality factor q (RBJ cookbook form, 0 dB peak gain).
func Bandpass(fs, f0, q float64) Coefficients {
	w0 := 2 * math.Pi * f0 / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	a0 := 1 + alpha

	return Coefficients{
		B0: alpha / a0,
		B1: 0,
		B2: -alpha / a0,
		A1: -2 * cosw0 / a0,
		A2: (1 - alpha) / a0,
	}
}

// BandpassChain designs a cascade of identical band-pass sections spanning
// [lowHz, highHz]. The center frequency is the passband midpoint and
// Q = f0/bw, clamped to at least 0.2. order counts second-order sections.
//
// When both cutoffs are <= 0 the returned chain is empty and passes
// samples through unchanged.
func BandpassChain(fs, lowHz, highHz float64, order int) *Chain {
	if lowHz <= 0 && highHz <= 0 {
		return NewChain(nil)
	}

	sections := order
	if sections < 1 {
		sections = 1
	}

	f0 := (lowHz + highHz) / 2
	bw := highHz - lowHz

	q := 0.707
	if bw > 0 && f0 > 0 {
		q = f0 / bw
	}

	if q < minQ {
		q = minQ
	}

	f0 = clampFreq(f0, 0.001, fs*0.45)

	coeffs := make([]Coefficients, sections)
	for i := range coeffs {
		coeffs[i] = Bandpass(fs, f0, q)
	}

	return NewChain(coeffs)
}

func clampFreq(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
