package hrv

import (
	"fmt"
	"math"
)

// CleanMethod selects the RR outlier rejection strategy.
type CleanMethod int

const (
	CleanQuotientFilter CleanMethod = iota
	CleanIQR
	CleanZScore
)

// SDSDMode selects whether successive-difference statistics use signed or
// absolute differences.
type SDSDMode int

const (
	SDSDAbs SDSDMode = iota
	SDSDSigned
)

// PoincareMode selects how the Poincaré axes are derived.
type PoincareMode int

const (
	// PoincareMasked derives SD1/SD2 from the variance of accepted
	// successive RR pairs.
	PoincareMasked PoincareMode = iota
	// PoincareFormula uses SD1 = RMSSD/sqrt(2) and
	// SD2 = sqrt(2*SDNN^2 - 0.5*SDSD^2).
	PoincareFormula
)

// Options configures both the batch analyzer and the streaming analyzer.
// The zero value is not useful; start from DefaultOptions.
type Options struct {
	// Bandpass filtering. Both cutoffs <= 0 disables the filter.
	LowHz    float64
	HighHz   float64
	IIROrder int

	// Welch PSD geometry.
	NFFT           int
	Overlap        float64
	WelchWindowSec float64

	// Peak detection bounds.
	RefractoryMs   float64
	ThresholdScale float64
	BPMMin         float64
	BPMMax         float64

	// HP-style thresholding (rolling-mean lift).
	UseHPThreshold bool
	MAPerc         float64
	AdaptiveMAPerc bool

	// Min-RR gating.
	MinRRGateFactor   float64
	MinRRFloorRelaxed float64
	MinRRFloorStrict  float64
	MinRRCeiling      float64

	// Periodic suppression half-width, as a fraction of the expected period.
	PeriodicSuppressionTol float64

	// RR-pair coalescing acceptance bands.
	RRMergeBandLow       float64
	RRMergeBandHigh      float64
	RRMergeEqualBandLow  float64
	RRMergeEqualBandHigh float64

	// PSD half/fundamental ratio thresholds.
	PHalfOverFundThresholdSoft float64
	PHalfOverFundThresholdLow  float64

	// SNR band and EMA behavior.
	SNRBandPassive     float64
	SNRBandActive      float64
	SNRTauSec          float64
	SNRActiveTauSec    float64
	SNRBandBlendFactor float64

	// Half-fundamental drift stability.
	HalfF0HistLen   int
	HalfF0TolHzWarm float64
	HalfF0TolHzCold float64

	// Oversuppression (choke) recovery.
	ChokeRelaxBaseSec   float64
	ChokeRelaxLowBpmSec float64
	ChokeBPMThreshold   float64

	// Preprocessing.
	InterpClipping       bool
	ClippingThreshold    float64
	HampelCorrect        bool
	HampelWindow         int
	HampelThreshold      float64
	RemoveBaselineWander bool
	EnhancePeaks         bool

	// High precision peak refinement.
	HighPrecision   bool
	HighPrecisionFs float64

	// Binary quality windowing.
	RejectSegmentwise        bool
	SegmentRejectThreshold   float64
	SegmentRejectWindowBeats int
	SegmentRejectMaxRejects  int
	SegmentRejectOverlap     float64

	// RR cleaning.
	CleanRR         bool
	CleanMethod     CleanMethod
	CleanIterations int

	// Per-interval RR thresholding.
	ThresholdRR bool

	// Metric computation modes.
	SDSDMode       SDSDMode
	PoincareMode   PoincareMode
	PNNAsPercent   bool
	BreathingAsBpm bool
}

// DefaultOptions returns the canonical configuration for mobile PPG.
func DefaultOptions() Options {
	return Options{
		LowHz:    0.5,
		HighHz:   5.0,
		IIROrder: 2,

		NFFT:           256,
		Overlap:        0.5,
		WelchWindowSec: 240,

		RefractoryMs:   250,
		ThresholdScale: 0.5,
		BPMMin:         40,
		BPMMax:         180,

		UseHPThreshold: false,
		MAPerc:         30,
		AdaptiveMAPerc: true,

		MinRRGateFactor:   0.86,
		MinRRFloorRelaxed: 400,
		MinRRFloorStrict:  500,
		MinRRCeiling:      1200,

		PeriodicSuppressionTol: 0.24,

		RRMergeBandLow:       0.75,
		RRMergeBandHigh:      1.25,
		RRMergeEqualBandLow:  0.85,
		RRMergeEqualBandHigh: 1.15,

		PHalfOverFundThresholdSoft: 2.0,
		PHalfOverFundThresholdLow:  1.6,

		SNRBandPassive:     0.12,
		SNRBandActive:      0.18,
		SNRTauSec:          10,
		SNRActiveTauSec:    7,
		SNRBandBlendFactor: 0.30,

		HalfF0HistLen:   5,
		HalfF0TolHzWarm: 0.06,
		HalfF0TolHzCold: 0.10,

		ChokeRelaxBaseSec:   5,
		ChokeRelaxLowBpmSec: 7,
		ChokeBPMThreshold:   35,

		ClippingThreshold: 1020,
		HampelWindow:      6,
		HampelThreshold:   3,

		HighPrecisionFs: 1000,

		SegmentRejectThreshold:   0.3,
		SegmentRejectWindowBeats: 10,
		SegmentRejectMaxRejects:  3,
		SegmentRejectOverlap:     0,

		CleanMethod:     CleanQuotientFilter,
		CleanIterations: 2,

		SDSDMode:     SDSDAbs,
		PoincareMode: PoincareMasked,
		PNNAsPercent: true,
	}
}

// PresetTorch returns opt adjusted for torch-lit fingertip capture:
// narrow passband, HP-style thresholding, longer refractory.
func PresetTorch(opt Options) Options {
	opt.LowHz = 0.7
	opt.HighHz = 3.0
	opt.UseHPThreshold = true

	if opt.RefractoryMs < 300 {
		opt.RefractoryMs = 300
	}

	return opt
}

// PresetAmbient returns opt adjusted for ambient-light capture: slightly
// wider passband, stronger adaptive threshold, longer refractory.
func PresetAmbient(opt Options) Options {
	opt.LowHz = 0.5
	opt.HighHz = 3.5

	if opt.ThresholdScale < 0.5 {
		opt.ThresholdScale = 0.5
	}

	if opt.RefractoryMs < 320 {
		opt.RefractoryMs = 320
	}

	return opt
}

// Validation error codes. These are part of the API contract and never
// change between releases.
const (
	CodeFSRange         = "fs_range"
	CodeBandpassRange   = "bandpass_range"
	CodeRefractoryRange = "refractory_range"
	CodeBPMRange        = "bpm_range"
	CodeNFFTRange       = "nfft_range"
	CodeNonFinite       = "non_finite"
	CodeEmptySignal     = "empty_signal"
)

// OptionError reports an invalid option or construction argument with a
// stable machine-readable code.
type OptionError struct {
	Code    string
	Field   string
	Message string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("hrv: invalid option %s (%s): %s", e.Field, e.Code, e.Message)
}

func optErrf(code, field, format string, args ...any) *OptionError {
	return &OptionError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the options against the sample rate fs. It returns a
// *OptionError describing the first violation, or nil. Validation never
// mutates the receiver.
func (o Options) Validate(fs float64) error {
	if !(fs >= 1 && fs <= 10000) {
		return optErrf(CodeFSRange, "fs", "sample rate must be in [1, 10000]: %g", fs)
	}

	bandpassDisabled := o.LowHz <= 0 && o.HighHz <= 0
	if !bandpassDisabled {
		if !(o.LowHz >= 0 && o.LowHz < o.HighHz && o.HighHz <= fs/2) {
			return optErrf(CodeBandpassRange, "lowHz/highHz",
				"bandpass must satisfy 0 <= low < high <= fs/2: low=%g high=%g fs=%g", o.LowHz, o.HighHz, fs)
		}
	}

	if !(o.RefractoryMs >= 50 && o.RefractoryMs <= 2000) {
		return optErrf(CodeRefractoryRange, "refractoryMs", "refractory must be in [50, 2000] ms: %g", o.RefractoryMs)
	}

	if !(o.BPMMin >= 30 && o.BPMMin < o.BPMMax && o.BPMMax <= 240) {
		return optErrf(CodeBPMRange, "bpmMin/bpmMax", "BPM range must satisfy 30 <= min < max <= 240: min=%g max=%g", o.BPMMin, o.BPMMax)
	}

	if o.NFFT < 64 || o.NFFT > 16384 {
		return optErrf(CodeNFFTRange, "nfft", "nfft must be in [64, 16384]: %d", o.NFFT)
	}

	finite := []struct {
		field string
		value float64
	}{
		{"overlap", o.Overlap},
		{"highPrecisionFs", o.HighPrecisionFs},
		{"segmentRejectThreshold", o.SegmentRejectThreshold},
		{"segmentRejectOverlap", o.SegmentRejectOverlap},
	}
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return optErrf(CodeNonFinite, f.field, "value must be finite: %v", f.value)
		}
	}

	return nil
}
