package realtime

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-hrv/dsp/welch"
	"github.com/cwbudde/algo-hrv/hrv"
)

// Noise estimation band and band guard in Hz.
const (
	noiseBandLowHz  = 0.4
	noiseBandHighHz = 5.0
	bandGuardHz     = 0.03
)

// Confidence mapping parameters: logistic midpoint/steepness per mode,
// CV penalty slope, and the very-clean bonus.
const (
	confMidPassive   = 6.0
	confSlopePassive = 0.8
	confMidActive    = 5.2
	confSlopeActive  = 1 / 1.2
	confCVPassive    = 1.0
	confCVActive     = 0.5
	confCleanBonus   = 1.1
)

// snrEstimator maintains the band-integrated SNR EMA and the derived
// confidence score across PSD updates.
type snrEstimator struct {
	opt hrv.Options

	snrEma     float64
	emaInit    bool
	lastUpdate float64
	lastActive bool

	confidence float64

	lastF0Used float64
}

func newSNREstimator(opt hrv.Options) *snrEstimator {
	return &snrEstimator{opt: opt}
}

// snrInputs is the per-update environment for the SNR estimator.
type snrInputs struct {
	now float64
	age float64

	psd welch.Result
	f0  float64

	active bool // harmonic-active band width and time constant
	remap  bool // doubling: score f0/2 as the fundamental
	beats  int

	rejection float64
	cv        float64

	activeSecs float64 // seconds since harmonic activation, 0 if inactive
}

// bandPower sums PSD bins whose frequency lies within [f-half, f+half].
func bandPower(r welch.Result, f, half float64) float64 {
	var sum float64

	for i, freq := range r.Freqs {
		if freq >= f-half && freq <= f+half {
			sum += r.PSD[i]
		}
	}

	return sum
}

// noiseBaseline returns the median PSD value over [0.4, 5.0] Hz after
// excluding the guarded fundamental and second-harmonic bands.
func noiseBaseline(r welch.Result, f0, half float64) float64 {
	excl := half + bandGuardHz

	var bins []float64

	for i, f := range r.Freqs {
		if f < noiseBandLowHz || f > noiseBandHighHz {
			continue
		}

		if math.Abs(f-f0) <= excl || math.Abs(f-2*f0) <= excl {
			continue
		}

		bins = append(bins, r.PSD[i])
	}

	if len(bins) == 0 {
		return 0
	}

	sort.Float64s(bins)

	mid := len(bins) / 2
	if len(bins)%2 == 1 {
		return bins[mid]
	}

	return 0.5 * (bins[mid-1] + bins[mid])
}

// update recomputes the instantaneous SNR and folds it into the EMA.
// A degenerate fundamental or empty PSD leaves the previous smoothed
// value in place.
func (s *snrEstimator) update(in snrInputs) {
	defer func() {
		s.confidence = s.mapConfidence(in)
	}()

	if in.psd.Empty() || in.f0 <= 0 {
		return
	}

	df := in.psd.Df()
	if df <= 0 {
		return
	}

	f0 := in.f0
	if in.remap {
		f0 = in.f0 / 2
	}

	half := s.opt.SNRBandPassive
	if in.active {
		half = s.opt.SNRBandActive
	}

	if 2*df > half {
		half = 2 * df
	}

	signalPow := bandPower(in.psd, f0, half) + bandPower(in.psd, 2*f0, half)

	baseline := noiseBaseline(in.psd, f0, half)
	if baseline <= 0 || signalPow <= 0 {
		return
	}

	noisePow := baseline * (2 * half / df)

	inst := 10 * math.Log10(signalPow/noisePow)
	if math.IsNaN(inst) || math.IsInf(inst, 0) {
		inst = 0
	}

	if !s.emaInit {
		s.snrEma = inst
		s.emaInit = true
		s.lastUpdate = in.now
		s.lastActive = in.active
		s.lastF0Used = f0

		return
	}

	// A band-width mode switch steps the instantaneous estimate; blend
	// part-way toward it so the EMA does not carry the bias.
	if in.active != s.lastActive {
		s.snrEma += s.opt.SNRBandBlendFactor * (inst - s.snrEma)
		s.lastActive = in.active
	}

	tau := s.opt.SNRTauSec
	if in.active {
		tau = s.opt.SNRActiveTauSec
	}

	dt := in.now - s.lastUpdate
	if dt < 0 {
		dt = 0
	}

	alpha := 1 - math.Exp(-dt/tau)
	s.snrEma += alpha * (inst - s.snrEma)

	if math.IsNaN(s.snrEma) || math.IsInf(s.snrEma, 0) {
		s.snrEma = inst
	}

	s.lastUpdate = in.now
	s.lastF0Used = f0
}

// mapConfidence converts the smoothed SNR into a 0..1 confidence with
// rejection and CV penalties. Before warm-up it is forced to zero.
func (s *snrEstimator) mapConfidence(in snrInputs) float64 {
	if in.age < 15 && in.beats < 15 {
		return 0
	}

	if !s.emaInit {
		return 0
	}

	mid, slope, kcv := confMidPassive, confSlopePassive, confCVPassive
	if in.active {
		mid, slope, kcv = confMidActive, confSlopeActive, confCVActive
	}

	conf := 1 / (1 + math.Exp(-slope*(s.snrEma-mid)))
	conf *= 1 - in.rejection

	cvPenalty := 1 - kcv*in.cv
	if cvPenalty < 0 {
		cvPenalty = 0
	}

	conf *= cvPenalty

	veryClean := in.rejection < 0.03 && in.cv < 0.12
	if veryClean && in.active && in.activeSecs >= 8 {
		conf *= confCleanBonus
	}

	if conf > 1 {
		conf = 1
	}

	if conf < 0 || math.IsNaN(conf) {
		conf = 0
	}

	return conf
}
