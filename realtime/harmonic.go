package realtime

import (
	"math"

	"github.com/cwbudde/algo-hrv/hrv"
)

// Harmonic hold and persistence constants (seconds).
const (
	softDeactivateSec = 5
	softToHardSec     = 8
	hardHoldSec       = 8
	hardFallbackSec   = 3
	hintHoldPSDSec    = 12
	hintHoldOtherSec  = 8
	psdLowDwellSec    = 6
	highBpmDwellSec   = 8
	autoClearSec      = 5
	lowBpmDwellSec    = 3
)

// psdObservation is one snapshot of the spectral and rhythm state,
// produced on each PSD update.
type psdObservation struct {
	now float64
	age float64

	ratio  float64 // P(f0/2) / P(f0)
	halfF0 float64 // Hz

	rejection  float64
	cv         float64
	medianRRms float64
	bpm        float64

	maPercActive float64
	warm         bool
}

// harmonicState is the three-tier doubling state machine. All timers are
// per instance, including the PSD-low dwell timer.
type harmonicState struct {
	opt hrv.Options

	soft               bool
	softSince          float64
	softViolationSince float64
	softStreak         int

	hard          bool
	hardHoldUntil float64

	hint          bool
	hintHoldUntil float64

	rrFallbackDrivingHint bool
	rrFallbackStreak      int

	psdLowSince    float64
	highBpmSince   float64
	lowBpmSince    float64
	autoClearSince float64

	chokeRelaxUntil float64

	halfF0Hist []float64

	doublingLongRRms float64
	lastF0Hz         float64
	lastRatio        float64

	lastActivation float64

	// Set on hard activation; consumed by the façade to raise the
	// detector refractory.
	pendingFallbackUntil float64
}

func newHarmonicState(opt hrv.Options) *harmonicState {
	return &harmonicState{opt: opt}
}

func (h *harmonicState) anyActive(now float64) bool {
	return h.soft || h.hard || h.hintActive(now)
}

func (h *harmonicState) hintActive(now float64) bool {
	return now < h.hintHoldUntil
}

func (h *harmonicState) chokeRelaxed(now float64) bool {
	return now < h.chokeRelaxUntil
}

// halfF0Stable tests the drift of the recent half-fundamental estimates
// against the warm or cold tolerance.
func (h *harmonicState) halfF0Stable(tolHz float64) bool {
	n := len(h.halfF0Hist)
	if n < 2 {
		return false
	}

	lo, hi := h.halfF0Hist[0], h.halfF0Hist[0]
	for _, v := range h.halfF0Hist {
		if v < lo {
			lo = v
		}

		if v > hi {
			hi = v
		}
	}

	return hi-lo <= tolHz
}

func (h *harmonicState) pushHalfF0(f float64) {
	if f <= 0 {
		return
	}

	h.halfF0Hist = append(h.halfF0Hist, f)

	maxLen := h.opt.HalfF0HistLen
	if maxLen < 1 {
		maxLen = 5
	}

	if len(h.halfF0Hist) > maxLen {
		h.halfF0Hist = h.halfF0Hist[len(h.halfF0Hist)-maxLen:]
	}
}

// update advances all three flags from one PSD observation. longRRms is
// the mean of intervals at or above 0.8x the median, used as the long-RR
// cache on hard activation.
func (h *harmonicState) update(o psdObservation, longRRms float64) {
	opt := h.opt

	h.lastRatio = o.ratio
	h.pushHalfF0(o.halfF0)

	stableWarm := h.halfF0Stable(opt.HalfF0TolHzWarm)
	stableCold := h.halfF0Stable(opt.HalfF0TolHzCold)

	if o.bpm > 120 {
		if h.highBpmSince == 0 {
			h.highBpmSince = o.now
		}
	} else {
		h.highBpmSince = 0
	}

	// --- Soft flag ---
	softOK := o.warm &&
		o.ratio >= opt.PHalfOverFundThresholdSoft &&
		stableWarm &&
		o.rejection <= 0.05 &&
		o.cv <= 0.30

	if softOK {
		h.softStreak++
		h.softViolationSince = 0

		if !h.soft {
			h.soft = true
			h.softSince = o.now
			h.lastActivation = o.now
		}
	} else {
		h.softStreak = 0

		if h.soft {
			if h.softViolationSince == 0 {
				h.softViolationSince = o.now
			} else if o.now-h.softViolationSince >= softDeactivateSec {
				h.soft = false
			}
		}
	}

	// --- Hard flag ---
	highBpmPersistent := h.highBpmSince > 0 && o.now-h.highBpmSince >= highBpmDwellSec

	hardOK := h.soft &&
		o.now-h.softSince >= softToHardSec &&
		highBpmPersistent &&
		o.maPercActive < 25 &&
		o.ratio >= 2 &&
		stableWarm &&
		o.rejection <= 0.05 &&
		o.cv <= 0.20

	if hardOK && !h.hard {
		h.hard = true
		h.hardHoldUntil = o.now + hardHoldSec
		h.lastActivation = o.now

		if longRRms > 0 {
			h.doublingLongRRms = longRRms
		}

		fallback := math.Min(hardFallbackSec, h.hardHoldUntil-o.now)
		h.pendingFallbackUntil = o.now + fallback
	}

	if h.hard && o.now > h.hardHoldUntil && !hardOK {
		h.hard = false
	}

	// --- Hint flag ---
	psdDriven := false

	if o.warm && o.ratio >= opt.PHalfOverFundThresholdSoft && stableWarm &&
		o.rejection <= 0.05 && o.cv <= 0.30 {
		h.hintHoldUntil = math.Max(h.hintHoldUntil, o.now+hintHoldPSDSec)
		h.lastActivation = o.now
		psdDriven = true
	}

	if o.ratio >= opt.PHalfOverFundThresholdLow {
		if h.psdLowSince == 0 {
			h.psdLowSince = o.now
		} else if o.warm && o.now-h.psdLowSince >= psdLowDwellSec && stableCold {
			h.hintHoldUntil = math.Max(h.hintHoldUntil, o.now+hintHoldOtherSec)
			h.lastActivation = o.now
			psdDriven = true
		}
	} else {
		h.psdLowSince = 0
	}

	rrFallbackOK := o.warm &&
		highBpmPersistent &&
		o.medianRRms >= 370 && o.medianRRms <= 450 &&
		o.cv <= 0.10 &&
		o.rejection <= 0.03

	if rrFallbackOK {
		h.rrFallbackStreak++
	} else {
		h.rrFallbackStreak = 0
	}

	if h.rrFallbackStreak >= 3 {
		h.hintHoldUntil = math.Max(h.hintHoldUntil, o.now+hintHoldOtherSec)
		h.lastActivation = o.now

		if !psdDriven {
			h.rrFallbackDrivingHint = true
		}
	}

	if psdDriven || !h.hintActive(o.now) {
		h.rrFallbackDrivingHint = false
	}

	h.hint = h.hintActive(o.now)

	// --- Choke protection ---
	if h.anyActive(o.now) && o.age >= 20 && o.bpm > 0 && o.bpm < 40 {
		if h.lowBpmSince == 0 {
			h.lowBpmSince = o.now
		} else if o.now-h.lowBpmSince >= lowBpmDwellSec {
			relax := opt.ChokeRelaxBaseSec
			if o.bpm < opt.ChokeBPMThreshold {
				relax = opt.ChokeRelaxLowBpmSec
			}

			h.chokeRelaxUntil = o.now + relax
		}
	} else {
		h.lowBpmSince = 0
	}

	// --- Auto-clear ---
	violation := o.ratio < 1.5 || !stableWarm || o.cv > 0.20 || o.rejection > 0.05
	if violation {
		if h.autoClearSince == 0 {
			h.autoClearSince = o.now
		} else if o.now-h.autoClearSince >= autoClearSec {
			h.soft = false
			h.hard = false
		}
	} else {
		h.autoClearSince = 0
	}
}

// longEstMs derives the long-interval estimate used to raise the min-RR
// gate while any flag is active, clamped to [600, ceiling].
func (h *harmonicState) longEstMs(medianRRms float64) float64 {
	est := h.doublingLongRRms

	if v := 2 * medianRRms; v > est {
		est = v
	}

	if h.lastF0Hz > 0 {
		if v := 1000 / h.lastF0Hz; v > est {
			est = v
		}
	}

	if est <= 0 {
		return 0
	}

	return clamp(est, 600, h.opt.MinRRCeiling)
}

// softSecs returns how long the soft flag has been continuously active.
func (h *harmonicState) softSecs(now float64) float64 {
	if !h.soft {
		return 0
	}

	return now - h.softSince
}
