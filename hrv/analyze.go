package hrv

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AnalyzeSignal runs the one-shot pipeline on a raw PPG segment: optional
// preprocessing, moving-average detrend, causal bandpass, adaptive peak
// detection, interval filtering, and the full metric set.
//
// It is a pure function of its inputs and owns no state between calls.
func AnalyzeSignal(signal []float64, fs float64, opt Options) (HeartMetrics, error) {
	var m HeartMetrics

	if len(signal) == 0 {
		return m, optErrf(CodeEmptySignal, "signal", "signal must not be empty")
	}

	if err := opt.Validate(fs); err != nil {
		return m, err
	}

	x := append([]float64(nil), signal...)

	if opt.InterpClipping {
		x = InterpolateClipping(x, opt.ClippingThreshold)
	}

	if opt.HampelCorrect {
		x = HampelFilter(x, opt.HampelWindow, opt.HampelThreshold)
	}

	if opt.RemoveBaselineWander {
		x = RemoveBaselineWander(x, fs)
	}

	if opt.EnhancePeaks {
		x = EnhancePeaks(x, fs)
	}

	detrendWin := int(math.Round(0.75 * fs))
	if detrendWin < 5 {
		detrendWin = 5
	}

	x = movingAverageDetrend(x, detrendWin)
	x = bandpassFilter(x, fs, opt.LowHz, opt.HighHz, opt.IIROrder)

	peaks := detectPeaksAdaptive(x, fs, opt.RefractoryMs, opt.ThresholdScale)

	effFs := fs
	if opt.HighPrecision && opt.HighPrecisionFs > fs {
		peaks = InterpolatePeaks(x, peaks, fs, opt.HighPrecisionFs)
		effFs = opt.HighPrecisionFs
	}

	m.PeakList = peaks
	m.PeakListRaw = append([]int(nil), peaks...)

	finishMetrics(&m, peaks, effFs, opt)

	return m, nil
}

// AnalyzeRR runs the metric pipeline directly on an RR interval sequence
// in milliseconds, skipping the signal stages.
func AnalyzeRR(rrMs []float64, opt Options) (HeartMetrics, error) {
	var m HeartMetrics

	if len(rrMs) == 0 {
		return m, optErrf(CodeEmptySignal, "rr", "rr sequence must not be empty")
	}

	rr := append([]float64(nil), rrMs...)
	if opt.CleanRR {
		rr = CleanRR(rr, opt.CleanMethod, opt.CleanIterations)
	}

	m.IBIMs = append([]float64(nil), rr...)
	m.RRList = rr

	if len(rr) > 0 {
		if mean := stat.Mean(rr, nil); mean > 0 {
			m.BPM = 60000 / mean
		}
	}

	var rejected []bool
	if opt.ThresholdRR {
		rejected = thresholdRRMask(rr)
	}

	timeDomain(&m, rr, rejected, opt)
	applyQuality(&m, rejected, opt)

	freqDomain(&m, rr, cumulativeBeatTimes(rr), opt)

	return m, nil
}

// finishMetrics derives intervals, BPM, quality, and the time/frequency
// metric set from a peak list at the given effective sample rate.
func finishMetrics(m *HeartMetrics, peaks []int, fs float64, opt Options) {
	if len(peaks) < 2 {
		m.BinaryPeakMask = ones(len(peaks))
		m.Quality.GoodQuality = true

		return
	}

	ibiAll := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		ibiAll[i-1] = float64(peaks[i]-peaks[i-1]) * 1000 / fs
	}

	// Physiological range gate.
	rangeOK := make([]bool, len(ibiAll))
	ibi := make([]float64, 0, len(ibiAll))

	for i, v := range ibiAll {
		if v > 250 && v < 2000 {
			rangeOK[i] = true

			ibi = append(ibi, v)
		}
	}

	m.IBIMs = ibi

	rr := ibi
	if opt.CleanRR {
		rr = CleanRR(ibi, opt.CleanMethod, opt.CleanIterations)
	}

	m.RRList = rr

	if len(rr) > 0 {
		if mean := stat.Mean(rr, nil); mean > 0 {
			m.BPM = 60000 / mean
		}
	}

	var rejected []bool
	if opt.ThresholdRR || opt.RejectSegmentwise {
		rejected = thresholdRRMask(rr)
	}

	timeDomain(m, rr, rejected, opt)
	applyQuality(m, rejected, opt)

	// Peak mask: first peak always accepted; interval i closes at peak i+1.
	mask := ones(len(peaks))
	for i, ok := range rangeOK {
		if !ok {
			mask[i+1] = 0
		}
	}

	if rejected != nil && len(rr) == len(ibiAll) {
		for i, r := range rejected {
			if r {
				mask[i+1] = 0
			}
		}
	}

	m.BinaryPeakMask = mask

	beatTimes := cumulativeBeatTimes(rr)
	if len(rr) == len(ibiAll) {
		beatTimes = beatTimes[:0]
		for _, p := range peaks[1:] {
			beatTimes = append(beatTimes, float64(p)/fs)
		}
	}

	freqDomain(m, rr, beatTimes, opt)
}

// cumulativeBeatTimes reconstructs beat times in seconds from intervals.
func cumulativeBeatTimes(rr []float64) []float64 {
	out := make([]float64, len(rr))

	t := 0.0
	for i, v := range rr {
		t += v / 1000

		out[i] = t
	}

	return out
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}

	return out
}

// detectPeaksAdaptive finds three-sample local maxima exceeding a
// centered-window adaptive threshold mean + scale*sd, spaced at least the
// refractory distance apart.
func detectPeaksAdaptive(x []float64, fs, refractoryMs, scale float64) []int {
	n := len(x)
	if n < 3 {
		return nil
	}

	refSamples := int(math.Round(refractoryMs * 0.001 * fs))

	win := int(math.Round(0.5 * fs))
	if win < 5 {
		win = 5
	}

	cumsum := make([]float64, n+1)
	cumsq := make([]float64, n+1)

	for i, v := range x {
		cumsum[i+1] = cumsum[i] + v
		cumsq[i+1] = cumsq[i] + v*v
	}

	var peaks []int

	lastPeak := -refSamples - 1
	for i := 1; i < n-1; i++ {
		start := i - win
		if start < 0 {
			start = 0
		}

		end := i + win
		if end > n {
			end = n
		}

		count := end - start
		mean := (cumsum[end] - cumsum[start]) / float64(count)

		variance := (cumsq[end]-cumsq[start])/float64(count) - mean*mean
		if variance < 0 {
			variance = 0
		}

		thr := mean + scale*math.Sqrt(variance)

		if x[i] > thr && x[i] > x[i-1] && x[i] >= x[i+1] && i-lastPeak >= refSamples {
			peaks = append(peaks, i)
			lastPeak = i
		}
	}

	return peaks
}

// InterpolatePeaks refines peak positions to a finer grid by fitting a
// parabola through each peak and its neighbors, then mapping the vertex
// onto the targetFs grid.
func InterpolatePeaks(x []float64, peaks []int, originalFs, targetFs float64) []int {
	if targetFs <= originalFs || len(x) < 3 {
		return append([]int(nil), peaks...)
	}

	ratio := targetFs / originalFs
	out := make([]int, 0, len(peaks))

	for _, p := range peaks {
		pos := float64(p)

		if p > 0 && p < len(x)-1 {
			y0, y1, y2 := x[p-1], x[p], x[p+1]

			denom := y0 - 2*y1 + y2
			if denom != 0 {
				delta := 0.5 * (y0 - y2) / denom
				if delta > -1 && delta < 1 {
					pos += delta
				}
			}
		}

		out = append(out, int(math.Round(pos*ratio)))
	}

	return out
}
