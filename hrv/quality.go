package hrv

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// thresholdRRMask flags intervals deviating from the mean by more than
// max(0.3*mean, 300 ms). Returns nil for fewer than two intervals.
func thresholdRRMask(rr []float64) []bool {
	if len(rr) < 2 {
		return nil
	}

	mean := stat.Mean(rr, nil)

	limit := 0.3 * mean
	if limit < 300 {
		limit = 300
	}

	rejected := make([]bool, len(rr))
	for i, v := range rr {
		rejected[i] = math.Abs(v-mean) > limit
	}

	return rejected
}

// binarySegments slides full-size beat windows over the rejection mask.
// Each window is accepted iff its rejected count is at most maxRejects.
func binarySegments(rejected []bool, windowBeats, maxRejects int, overlap float64) []BinarySegment {
	if windowBeats < 1 || len(rejected) < windowBeats {
		return nil
	}

	step := int(math.Round(float64(windowBeats) * (1 - overlap)))
	if step < 1 {
		step = 1
	}

	var segs []BinarySegment

	for start := 0; start+windowBeats <= len(rejected); start += step {
		count := 0
		for _, r := range rejected[start : start+windowBeats] {
			if r {
				count++
			}
		}

		segs = append(segs, BinarySegment{
			Index:         len(segs),
			StartBeat:     start,
			EndBeat:       start + windowBeats,
			TotalBeats:    windowBeats,
			RejectedBeats: count,
			Accepted:      count <= maxRejects,
		})
	}

	return segs
}

// applyQuality fills the rejection bookkeeping on m from the interval
// mask and attaches the binary segments.
func applyQuality(m *HeartMetrics, rejected []bool, opt Options) {
	m.Quality.TotalBeats = len(m.RRList)
	m.Quality.GoodQuality = true

	if rejected == nil {
		return
	}

	for i, r := range rejected {
		if r {
			m.Quality.RejectedBeats++
			m.Quality.RejectedIndices = append(m.Quality.RejectedIndices, i)
		}
	}

	if m.Quality.TotalBeats > 0 {
		m.Quality.RejectionRate = float64(m.Quality.RejectedBeats) / float64(m.Quality.TotalBeats)
	}

	if m.Quality.RejectionRate > opt.SegmentRejectThreshold {
		m.Quality.GoodQuality = false
		m.Quality.QualityWarning = "high beat rejection rate"
	}

	m.BinarySegments = binarySegments(rejected, opt.SegmentRejectWindowBeats, opt.SegmentRejectMaxRejects, opt.SegmentRejectOverlap)
}
