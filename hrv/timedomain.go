package hrv

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// timeDomain fills the time-domain and Poincaré fields of m from the RR
// sequence, honoring the per-interval rejection mask (true = rejected).
// A nil mask accepts every interval.
func timeDomain(m *HeartMetrics, rr []float64, rejected []bool, opt Options) {
	accepted := rr
	if rejected != nil {
		accepted = make([]float64, 0, len(rr))
		for i, v := range rr {
			if !rejected[i] {
				accepted = append(accepted, v)
			}
		}
	}

	if len(accepted) == 0 {
		return
	}

	if len(accepted) >= 2 {
		m.SDNN = stat.StdDev(accepted, nil)
	}

	m.MAD = MAD(accepted)

	// Successive differences over adjacent accepted pairs.
	diffs := make([]float64, 0, len(rr))
	for i := 1; i < len(rr); i++ {
		if rejected != nil && (rejected[i-1] || rejected[i]) {
			continue
		}

		diffs = append(diffs, rr[i]-rr[i-1])
	}

	if len(diffs) == 0 {
		return
	}

	var sumSq float64
	var nn20, nn50 int

	for _, d := range diffs {
		sumSq += d * d

		if math.Abs(d) > 20 {
			nn20++
		}

		if math.Abs(d) > 50 {
			nn50++
		}
	}

	m.RMSSD = math.Sqrt(sumSq / float64(len(diffs)))
	m.NN20 = float64(nn20)
	m.NN50 = float64(nn50)

	pnnScale := 1.0
	if opt.PNNAsPercent {
		pnnScale = 100
	}

	m.PNN20 = pnnScale * float64(nn20) / float64(len(diffs))
	m.PNN50 = pnnScale * float64(nn50) / float64(len(diffs))

	sdsdInput := diffs
	if opt.SDSDMode == SDSDAbs {
		sdsdInput = make([]float64, len(diffs))
		for i, d := range diffs {
			sdsdInput[i] = math.Abs(d)
		}
	}

	if len(sdsdInput) >= 2 {
		m.SDSD = stat.StdDev(sdsdInput, nil)
	}

	poincare(m, accepted, diffs, opt)
}

// poincare derives the short/long Poincaré axes. The masked mode uses the
// variance of accepted pairs directly; the formula mode uses the classic
// RMSSD/SDNN identities. SD2 is clamped at zero in both.
func poincare(m *HeartMetrics, accepted, diffs []float64, opt Options) {
	var sd1, sd2 float64

	switch opt.PoincareMode {
	case PoincareFormula:
		sd1 = m.RMSSD / math.Sqrt2

		arg := 2*m.SDNN*m.SDNN - 0.5*m.SDSD*m.SDSD
		if arg < 0 {
			arg = 0
		}

		sd2 = math.Sqrt(arg)
	default:
		if len(diffs) < 2 || len(accepted) < 2 {
			return
		}

		varDiff := stat.Variance(diffs, nil)
		varRR := stat.Variance(accepted, nil)

		sd1 = math.Sqrt(0.5 * varDiff)

		arg := 2*varRR - 0.5*varDiff
		if arg < 0 {
			arg = 0
		}

		sd2 = math.Sqrt(arg)
	}

	m.SD1 = sd1
	m.SD2 = sd2

	if sd2 > 0 {
		m.SD1SD2Ratio = sd1 / sd2
	}

	m.EllipseArea = math.Pi * sd1 * sd2
}
