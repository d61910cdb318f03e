package realtime

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-hrv/hrv"
)

// Repair caps: at most this fraction of peaks may be removed per poll by
// each mechanism. Pair coalescing always uses repairRemovalCap. The
// tighter repairRemovalCapRRFB is handed to periodic suppression when RR
// fallback is the sole trigger, and the analyzer skips periodic
// suppression in that state.
const (
	repairRemovalCap     = 0.40
	repairRemovalCapRRFB = 0.25
	repairMaxPasses      = 10
)

// periodicSuppression sweeps the peak list with the expected period
// periodSec, keeping the strongest peak per window [t+0.5T, t+1.5T] and
// marking the rest for removal. Among window members it prefers the
// strongest candidate within tol*T of the expected beat time. Removals
// stop once the cap fraction of the starting count has been dropped.
func periodicSuppression(peaks []peak, effectiveFs, periodSec, tol, capFrac float64) []peak {
	if len(peaks) < 3 || periodSec <= 0 {
		return peaks
	}

	timeOf := func(p peak) float64 {
		return float64(p.abs) / effectiveFs
	}

	maxRemovals := int(capFrac * float64(len(peaks)))
	removed := 0

	kept := make([]peak, 0, len(peaks))
	kept = append(kept, peaks[0])

	anchor := timeOf(peaks[0])
	i := 1

	for i < len(peaks) {
		lo := anchor + 0.5*periodSec
		hi := anchor + 1.5*periodSec

		// Peaks before the window open are inside the current beat's
		// shadow; they are doubling candidates but the pair-coalescing
		// pass handles them. Keep them here.
		for i < len(peaks) && timeOf(peaks[i]) < lo {
			kept = append(kept, peaks[i])
			anchor = timeOf(peaks[i])
			i++
		}

		start := i
		for i < len(peaks) && timeOf(peaks[i]) <= hi {
			i++
		}

		if start == i {
			if i < len(peaks) {
				kept = append(kept, peaks[i])
				anchor = timeOf(peaks[i])
				i++
			}

			continue
		}

		winPeaks := peaks[start:i]
		keep := strongestNear(winPeaks, effectiveFs, anchor+periodSec, tol*periodSec)

		for j, p := range winPeaks {
			if j == keep {
				kept = append(kept, p)
				anchor = timeOf(p)

				continue
			}

			if removed < maxRemovals {
				removed++
			} else {
				kept = append(kept, p)
			}
		}
	}

	return kept
}

// strongestNear returns the index of the strongest peak whose time is
// within tolSec of targetSec, falling back to the strongest overall.
func strongestNear(peaks []peak, effectiveFs, targetSec, tolSec float64) int {
	bestNear, bestAny := -1, 0

	for j, p := range peaks {
		t := float64(p.abs) / effectiveFs

		if p.amp > peaks[bestAny].amp {
			bestAny = j
		}

		if math.Abs(t-targetSec) <= tolSec {
			if bestNear < 0 || p.amp > peaks[bestNear].amp {
				bestNear = j
			}
		}
	}

	if bestNear >= 0 {
		return bestNear
	}

	return bestAny
}

// coalesceShortPairs merges adjacent short RR pairs by deleting the
// middle peak, per the doubling-repair acceptance bands. Returns the
// repaired list and the number of peaks removed.
func coalesceShortPairs(peaks []peak, effectiveFs float64, opt hrv.Options, anyFlag bool) ([]peak, int) {
	if len(peaks) < 3 {
		return peaks, 0
	}

	startCount := len(peaks)
	maxRemovals := int(repairRemovalCap * float64(startCount))
	totalRemoved := 0

	for pass := 0; pass < repairMaxPasses; pass++ {
		rr := make([]float64, len(peaks)-1)
		for i := 1; i < len(peaks); i++ {
			rr[i-1] = float64(peaks[i].abs-peaks[i-1].abs) / effectiveFs * 1000
		}

		if len(rr) < 2 {
			break
		}

		m := medianOf(rr)
		if m <= 0 {
			break
		}

		deleted := make([]bool, len(peaks))
		removedThisPass := 0

		for i := 0; i+1 < len(rr); i++ {
			if totalRemoved+removedThisPass >= maxRemovals {
				break
			}

			mid := i + 1
			if deleted[mid] || deleted[i] || deleted[i+2] {
				continue
			}

			r1, r2 := rr[i], rr[i+1]
			sum := r1 + r2

			classic := r1 < 0.65*m && sum >= 0.8*m && sum <= 1.2*m

			active := anyFlag &&
				math.Min(r1, r2) < 0.9*m &&
				sum >= 0.8*2*m && sum <= 1.2*2*m

			// The merged interval must stay physiologically plausible,
			// otherwise a regular rhythm would merge with itself.
			equalPair := r1 >= opt.RRMergeEqualBandLow*m && r1 <= opt.RRMergeEqualBandHigh*m &&
				r2 >= opt.RRMergeEqualBandLow*m && r2 <= opt.RRMergeEqualBandHigh*m &&
				sum >= opt.RRMergeBandLow*2*m && sum <= opt.RRMergeBandHigh*2*m &&
				sum <= opt.MinRRCeiling

			if !classic && !active && !equalPair {
				continue
			}

			// The middle peak must not dominate its neighbors.
			if peaks[mid].amp > math.Max(peaks[i].amp, peaks[i+2].amp) {
				continue
			}

			deleted[mid] = true
			removedThisPass++
		}

		if removedThisPass == 0 {
			break
		}

		next := peaks[:0]
		for j, p := range peaks {
			if !deleted[j] {
				next = append(next, p)
			}
		}

		peaks = next
		totalRemoved += removedThisPass
	}

	return peaks, totalRemoved
}

// pairFraction returns the fraction of adjacent RR pairs whose sum lands
// within the merge band around longMs.
func pairFraction(rr []float64, longMs float64, opt hrv.Options) float64 {
	if len(rr) < 2 || longMs <= 0 {
		return 0
	}

	hits := 0
	for i := 0; i+1 < len(rr); i++ {
		sum := rr[i] + rr[i+1]
		if sum >= opt.RRMergeBandLow*longMs && sum <= opt.RRMergeBandHigh*longMs {
			hits++
		}
	}

	return float64(hits) / float64(len(rr)-1)
}

// shortFraction returns the fraction of intervals below 0.9x the median.
func shortFraction(rr []float64) float64 {
	if len(rr) == 0 {
		return 0
	}

	m := medianOf(rr)
	if m <= 0 {
		return 0
	}

	short := 0
	for _, v := range rr {
		if v < 0.9*m {
			short++
		}
	}

	return float64(short) / float64(len(rr))
}

// longRRMs returns the mean of intervals at or above 0.8x the median.
func longRRMs(rr []float64) float64 {
	if len(rr) == 0 {
		return 0
	}

	m := medianOf(rr)

	var sum float64
	var n int

	for _, v := range rr {
		if v >= 0.8*m {
			sum += v
			n++
		}
	}

	if n == 0 {
		return 0
	}

	return sum / float64(n)
}

func medianOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}

	tmp := append([]float64(nil), v...)
	sort.Float64s(tmp)

	mid := len(tmp) / 2
	if len(tmp)%2 == 1 {
		return tmp[mid]
	}

	return 0.5 * (tmp[mid-1] + tmp[mid])
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}

	return stat.Mean(v, nil)
}

// cvOf returns the coefficient of variation (sd/mean), or 0 for
// degenerate input.
func cvOf(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}

	mean := stat.Mean(v, nil)
	if mean == 0 {
		return 0
	}

	return stat.StdDev(v, nil) / mean
}
