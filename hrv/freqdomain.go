package hrv

import (
	"math"

	"github.com/cwbudde/algo-hrv/dsp/welch"
)

// rrResampleHz is the uniform grid rate the RR tachogram is interpolated
// onto before spectral estimation.
const rrResampleHz = 4.0

// resampleRR interpolates the RR tachogram onto a uniform grid.
// beatTimes holds the time of each interval's closing beat in seconds and
// must be strictly increasing with len(beatTimes) == len(rr).
func resampleRR(rr, beatTimes []float64) []float64 {
	if len(rr) < 3 || len(beatTimes) != len(rr) {
		return nil
	}

	duration := beatTimes[len(beatTimes)-1] - beatTimes[0]
	n := int(math.Floor(duration * rrResampleHz))
	if n < 4 {
		return nil
	}

	out := make([]float64, n)
	dt := 1.0 / rrResampleHz

	k := 1
	for i := range out {
		t := beatTimes[0] + float64(i)*dt

		for k < len(beatTimes)-1 && beatTimes[k] < t {
			k++
		}

		t1, t2 := beatTimes[k-1], beatTimes[k]
		v1, v2 := rr[k-1], rr[k]

		alpha := 0.0
		if t2 > t1 {
			alpha = (t - t1) / (t2 - t1)
		}

		out[i] = v1 + alpha*(v2-v1)
	}

	return out
}

// freqDomain fills the VLF/LF/HF band powers and the breathing rate from
// the RR tachogram. With too little data for a full Welch segment all
// frequency metrics stay zero.
func freqDomain(m *HeartMetrics, rr, beatTimes []float64, opt Options) {
	reg := resampleRR(rr, beatTimes)
	if reg == nil {
		return
	}

	reg = movingAverageDetrend(reg, int(math.Round(2*rrResampleHz)))

	r := welch.PSD(reg, rrResampleHz, opt.NFFT, opt.Overlap)
	if r.Empty() {
		return
	}

	m.VLF = welch.IntegrateBand(r, 0.0033, 0.04)
	m.LF = welch.IntegrateBand(r, 0.04, 0.15)
	m.HF = welch.IntegrateBand(r, 0.15, 0.40)

	if m.HF > 1e-12 {
		m.LFHF = m.LF / m.HF
	}

	m.TotalPower = m.VLF + m.LF + m.HF

	if sum := m.LF + m.HF; sum > 1e-12 {
		m.LFNorm = 100 * m.LF / sum
		m.HFNorm = 100 * m.HF / sum
	}

	breathing := welch.PeakFrequency(r, 0.1, 0.4)
	if opt.BreathingAsBpm {
		breathing *= 60
	}

	m.BreathingRate = breathing
}
