// Package realtime implements the streaming PPG analyzer: sliding-window
// ingest, causal bandpass, incremental peak detection with RR gating,
// harmonic-doubling detection and repair, and continuous SNR/confidence
// estimation. A single Analyzer owns all mutable state and is not
// internally synchronized; push and poll must not overlap.
package realtime

import (
	"math"

	"github.com/cwbudde/algo-hrv/dsp/buffer"
	"github.com/cwbudde/algo-hrv/dsp/filter/biquad"
	"github.com/cwbudde/algo-hrv/dsp/rolling"
	"github.com/cwbudde/algo-hrv/dsp/welch"
	"github.com/cwbudde/algo-hrv/hrv"
)

// Default cadence and window geometry.
const (
	defaultWindowSec    = 60.0
	defaultUpdateSec    = 1.0
	defaultPSDUpdateSec = 2.0

	// effectiveFs EMA weight for timestamped pushes.
	fsEMAAlpha = 0.1

	// Seconds after a harmonic activation during which the SNR keeps the
	// active band width.
	activeBandLingerSec = 5.0
)

// Analyzer is the streaming façade. Construct with New, feed with Push or
// PushTimestamped, and read metrics with Poll.
type Analyzer struct {
	fs          float64
	effectiveFs float64
	opt         hrv.Options

	windowSec    float64
	updateSec    float64
	psdUpdateSec float64
	displayHz    float64

	filter *biquad.Chain

	raw     *buffer.Buffer
	filt    *buffer.Buffer
	display []float64

	statsSigned *rolling.Window
	statsRect   *rolling.Window

	firstAbs uint64
	totalAbs uint64

	now       float64
	startTime float64
	started   bool
	lastEmit  float64
	lastPSD   float64

	det  *detector
	harm *harmonicState
	snr  *snrEstimator
	hp   *hpCalibrator

	// Threshold computed at the previous sample; applies to that sample
	// when it becomes the local-max candidate.
	pendingThr  float64
	havePending bool

	// Gate environment refreshed on PSD updates and polls.
	gateActive  bool
	gateLongEst float64

	prevPollBPM float64
	lastF0      float64

	scratch []float64

	lastTs float64
	haveTs bool

	brakeReverted bool
}

// New constructs a streaming analyzer for the given sample rate. The
// options are validated up front; construction fails with a typed
// *hrv.OptionError and no state is retained on failure.
func New(fs float64, opt hrv.Options) (*Analyzer, error) {
	if err := opt.Validate(fs); err != nil {
		return nil, err
	}

	a := &Analyzer{
		fs:          fs,
		effectiveFs: fs,
		opt:         opt,

		windowSec:    defaultWindowSec,
		updateSec:    defaultUpdateSec,
		psdUpdateSec: defaultPSDUpdateSec,

		det:  newDetector(opt),
		harm: newHarmonicState(opt),
		snr:  newSNREstimator(opt),
		hp:   newHPCalibrator(opt),
	}

	a.filter = biquad.BandpassChain(fs, opt.LowHz, opt.HighHz, opt.IIROrder)

	capHint := int(a.windowSec*fs) + int(8*fs)
	a.raw = buffer.New(capHint)
	a.filt = buffer.New(capHint)

	statsLen := int(math.Round(0.75 * fs))
	if statsLen < 5 {
		statsLen = 5
	}

	a.statsSigned = rolling.New(statsLen)
	a.statsRect = rolling.New(statsLen)

	return a, nil
}

// SetWindowSeconds adjusts the sliding window length (minimum 1 s) and
// trims immediately.
func (a *Analyzer) SetWindowSeconds(sec float64) {
	if sec < 1 {
		sec = 1
	}

	a.windowSec = sec
	a.trimToWindow()
}

// SetUpdateIntervalSeconds adjusts the poll emission cadence (minimum 0.1 s).
func (a *Analyzer) SetUpdateIntervalSeconds(sec float64) {
	if sec < 0.1 {
		sec = 0.1
	}

	a.updateSec = sec
}

// SetPSDUpdateSeconds adjusts the spectral update cadence (minimum 0.5 s).
func (a *Analyzer) SetPSDUpdateSeconds(sec float64) {
	if sec < 0.5 {
		sec = 0.5
	}

	a.psdUpdateSec = sec
}

// SetDisplayHz sets the decimated display view rate. Zero or negative
// keeps the display at the full sample rate.
func (a *Analyzer) SetDisplayHz(hz float64) {
	if hz < 0 {
		hz = 0
	}

	a.displayHz = hz
	a.rebuildDisplay()
}

// ApplyPresetTorch switches to the torch capture preset. The bandpass is
// redesigned, which restarts the filter state.
func (a *Analyzer) ApplyPresetTorch() {
	a.applyOptions(hrv.PresetTorch(a.opt))
}

// ApplyPresetAmbient switches to the ambient-light capture preset. The
// bandpass is redesigned, which restarts the filter state.
func (a *Analyzer) ApplyPresetAmbient() {
	a.applyOptions(hrv.PresetAmbient(a.opt))
}

func (a *Analyzer) applyOptions(opt hrv.Options) {
	a.opt = opt
	a.filter = biquad.BandpassChain(a.fs, opt.LowHz, opt.HighHz, opt.IIROrder)
	a.det.opt = opt
	a.harm.opt = opt
	a.snr.opt = opt
	a.hp.opt = opt

	if a.hp.maPerc < opt.MAPerc && !opt.AdaptiveMAPerc {
		a.hp.maPerc = opt.MAPerc
	}
}

// Options returns a copy of the active options.
func (a *Analyzer) Options() hrv.Options {
	return a.opt
}

// EffectiveFs returns the current effective sample rate estimate.
func (a *Analyzer) EffectiveFs() float64 {
	return a.effectiveFs
}

// DisplayBuffer returns the decimated view of the filtered window.
func (a *Analyzer) DisplayBuffer() []float64 {
	return a.display
}

// LatestPeaks returns the current absolute peak indices.
func (a *Analyzer) LatestPeaks() []int {
	return a.peakIndices()
}

// Push appends raw samples, timing them from the sample counter at the
// effective sample rate.
func (a *Analyzer) Push(samples []float64) {
	a.ingest(samples, nil)
}

// PushTimestamped appends raw samples with their capture timestamps in
// seconds. The effective sample rate follows the observed inter-sample
// spacing through an EMA; the stream clock follows the last timestamp.
func (a *Analyzer) PushTimestamped(samples, timestamps []float64) {
	if len(timestamps) != len(samples) {
		a.ingest(samples, nil)

		return
	}

	a.ingest(samples, timestamps)
}

func (a *Analyzer) ingest(samples, timestamps []float64) {
	if len(samples) == 0 {
		return
	}

	if timestamps != nil {
		a.updateEffectiveFs(timestamps)
	}

	if !a.started {
		a.started = true

		if timestamps != nil {
			a.startTime = timestamps[0]
			a.now = timestamps[0]
		}
	}

	for i, x := range samples {
		y := a.filter.ProcessSample(x)

		a.raw.Append(x)
		a.filt.Append(y)

		a.statsSigned.Push(y)
		a.statsRect.Push(math.Abs(y))

		absIdx := a.totalAbs
		a.totalAbs++

		if timestamps != nil {
			a.now = timestamps[i]
		} else {
			a.now += 1 / a.effectiveFs
		}

		evalThr := a.pendingThr
		haveThr := a.havePending

		a.pendingThr = a.currentThreshold()
		a.havePending = true

		if !haveThr {
			continue
		}

		env := gateEnv{
			effectiveFs:    a.effectiveFs,
			now:            a.now,
			age:            a.age(),
			marginUnit:     a.marginUnit(),
			harmonicActive: a.gateActive,
			longEstMs:      a.gateLongEst,
		}

		a.det.processSample(absIdx, y, evalThr, env)
	}

	a.trimToWindow()
	a.rebuildDisplay()
}

func (a *Analyzer) updateEffectiveFs(timestamps []float64) {
	first := timestamps[0]

	prev := first
	if a.haveTs {
		prev = a.lastTs
	}

	last := timestamps[len(timestamps)-1]

	n := len(timestamps)
	if !a.haveTs {
		n--
	}

	span := last - prev
	if n > 0 && span > 0 {
		inst := float64(n) / span
		if !math.IsNaN(inst) && !math.IsInf(inst, 0) && inst > 0 {
			a.effectiveFs += fsEMAAlpha * (inst - a.effectiveFs)
		}
	}

	a.lastTs = last
	a.haveTs = true
}

// currentThreshold computes the peak threshold in raw filtered units for
// the sample just pushed, per the active policy.
func (a *Analyzer) currentThreshold() float64 {
	if !a.opt.UseHPThreshold {
		return a.statsSigned.Mean() + a.opt.ThresholdScale*a.statsSigned.SD()
	}

	lo, hi := a.statsSigned.Min(), a.statsSigned.Max()
	if hi <= lo {
		return math.Inf(1)
	}

	// HP-style: rescale the window to [0, 1024], lift the mean by
	// ma_perc percent (plus a temporary boost during rejection storms),
	// then map back to raw units.
	scale := hpScaleMax / (hi - lo)
	rm := (a.statsSigned.Mean() - lo) * scale

	lift := rm / 100 * a.hp.maPerc
	if a.now < a.det.tempRefractoryUntil {
		lift += 50
	}

	return lo + (rm+lift)/scale
}

func (a *Analyzer) marginUnit() float64 {
	if a.opt.UseHPThreshold {
		return a.statsRect.SD()
	}

	return a.statsSigned.SD()
}

func (a *Analyzer) trimToWindow() {
	maxSamples := int(a.windowSec * a.effectiveFs)
	if maxSamples < 1 || a.raw.Len() <= maxSamples {
		return
	}

	drop := a.raw.Len() - maxSamples

	a.raw.DropFront(drop)
	a.filt.DropFront(drop)

	a.firstAbs += uint64(drop)
	a.det.prunePeaksBefore(a.firstAbs)
}

func (a *Analyzer) rebuildDisplay() {
	src := a.filt.Samples()

	if a.displayHz <= 0 || a.displayHz >= a.effectiveFs {
		a.display = append(a.display[:0], src...)

		return
	}

	step := a.effectiveFs / a.displayHz

	a.display = a.display[:0]
	for pos := 0.0; int(pos) < len(src); pos += step {
		a.display = append(a.display, src[int(pos)])
	}
}

func (a *Analyzer) peakIndices() []int {
	out := make([]int, len(a.det.peaks))
	for i, p := range a.det.peaks {
		out[i] = int(p.abs)
	}

	return out
}

// Poll assembles and returns a metrics bundle when at least the update
// interval has elapsed since the last emission. The boolean reports
// whether a bundle was produced.
func (a *Analyzer) Poll() (hrv.HeartMetrics, bool) {
	var out hrv.HeartMetrics

	if a.now-a.lastEmit < a.updateSec || a.filt.Len() == 0 {
		return out, false
	}

	a.lastEmit = a.now
	a.brakeReverted = false

	a.scratch = a.filt.CopyTo(a.scratch)

	// Batch baseline over the filtered window. The bandpass already ran
	// causally, so the batch stage runs with filtering disabled.
	batchOpt := a.opt
	batchOpt.LowHz = 0
	batchOpt.HighHz = 0

	if m, err := hrv.AnalyzeSignal(a.scratch, a.effectiveFs, batchOpt); err == nil {
		out = m
	}

	if a.now-a.lastPSD >= a.psdUpdateSec {
		a.psdTick(out.BPM)
		a.lastPSD = a.now
	}

	if a.opt.UseHPThreshold && a.opt.AdaptiveMAPerc {
		rr := a.det.rrList(a.effectiveFs)
		a.hp.calibrate(a.scratch, a.effectiveFs, a.now, a.det.bpmEMA, cvOf(rr))
	}

	rawPeaks := a.peakIndices()

	a.repair()
	a.refreshGateEnv()

	a.assemble(&out, rawPeaks)

	a.prevPollBPM = out.BPM

	return out, true
}

// psdTick runs the spectral path: Welch PSD over the current window,
// harmonic state transitions, and the SNR/confidence update.
func (a *Analyzer) psdTick(batchBPM float64) {
	rr := a.det.rrList(a.effectiveFs)

	f0 := a.lastF0

	if mean := meanOf(rr); mean > 0 {
		f0 = 1000 / mean
	} else if batchBPM > 0 {
		f0 = batchBPM / 60
	}

	if f0 <= 0 {
		return
	}

	psd := welch.PSD(a.scratch, a.effectiveFs, a.opt.NFFT, a.opt.Overlap)
	if psd.Empty() {
		return
	}

	a.lastF0 = f0

	pFund := welch.PowerAt(psd, f0)
	pHalf := welch.PowerAt(psd, f0/2)

	ratio := 0.0
	if pFund > 0 {
		ratio = pHalf / pFund
	}

	medianRR := medianOf(rr)

	bpm := 0.0
	if medianRR > 0 {
		bpm = 60000 / medianRR
	}

	obs := psdObservation{
		now:          a.now,
		age:          a.age(),
		ratio:        ratio,
		halfF0:       f0 / 2,
		rejection:    a.det.rejectionRate(a.now),
		cv:           cvOf(rr),
		medianRRms:   medianRR,
		bpm:          bpm,
		maPercActive: a.activeMAPerc(),
		warm:         a.det.warm(a.age()),
	}

	a.harm.lastF0Hz = f0
	a.harm.update(obs, longRRMs(rr))

	if a.harm.pendingFallbackUntil > a.det.hardFallbackUntil {
		a.det.hardFallbackUntil = a.harm.pendingFallbackUntil
	}

	a.harm.pendingFallbackUntil = 0

	active := a.harm.anyActive(a.now) ||
		(a.harm.lastActivation > 0 && a.now-a.harm.lastActivation < activeBandLingerSec)

	remap := a.harm.anyActive(a.now) ||
		(ratio >= a.opt.PHalfOverFundThresholdSoft && a.harm.halfF0Stable(a.opt.HalfF0TolHzWarm))

	a.snr.update(snrInputs{
		now:        a.now,
		age:        a.age(),
		psd:        psd,
		f0:         f0,
		active:     active,
		remap:      remap,
		beats:      a.det.acceptedTotal,
		rejection:  obs.rejection,
		cv:         obs.cv,
		activeSecs: a.activeSecs(),
	})

	a.refreshGateEnv()
}

// age returns seconds of stream observed since the first sample.
func (a *Analyzer) age() float64 {
	return a.now - a.startTime
}

func (a *Analyzer) activeSecs() float64 {
	if !a.harm.anyActive(a.now) || a.harm.lastActivation == 0 {
		return 0
	}

	return a.now - a.harm.lastActivation
}

func (a *Analyzer) activeMAPerc() float64 {
	if a.opt.UseHPThreshold {
		return a.hp.maPerc
	}

	return a.opt.MAPerc
}

func (a *Analyzer) refreshGateEnv() {
	a.gateActive = a.harm.anyActive(a.now)

	if a.gateActive {
		a.gateLongEst = a.harm.longEstMs(medianOf(a.det.rrList(a.effectiveFs)))
	} else {
		a.gateLongEst = 0
	}
}

// repair runs the doubling-repair stages on the live peak list, guarded
// by the safety brake.
func (a *Analyzer) repair() {
	if !a.harm.anyActive(a.now) {
		return
	}

	snapshot := append([]peak(nil), a.det.peaks...)

	rrFallbackOnly := a.harm.rrFallbackDrivingHint

	capFrac := repairRemovalCap
	if rrFallbackOnly {
		capFrac = repairRemovalCapRRFB
	}

	a.det.peaks, _ = coalesceShortPairs(a.det.peaks, a.effectiveFs, a.opt, true)

	skipPeriodic := rrFallbackOnly || a.harm.chokeRelaxed(a.now)
	if !skipPeriodic {
		period := a.harm.doublingLongRRms / 1000
		if period <= 0 && a.lastF0 > 0 {
			period = 1 / a.lastF0
		}

		if period > 0 {
			a.det.peaks = periodicSuppression(a.det.peaks, a.effectiveFs,
				period, a.opt.PeriodicSuppressionTol, capFrac)
		}
	}

	// Safety brake: an active RR-fallback repair must not collapse a
	// previously high rate below the physiological floor.
	if rrFallbackOnly && a.prevPollBPM > 100 {
		post := 60000 / meanOf(a.det.rrList(a.effectiveFs))
		if post > 0 && post < 50 {
			a.det.peaks = snapshot
			a.brakeReverted = true
		}
	}
}

// assemble overrides the batch baseline with streaming state: BPM, RR
// list, peak lists, masked time-domain metrics, binary segments, and the
// quality diagnostics.
func (a *Analyzer) assemble(out *hrv.HeartMetrics, rawPeaks []int) {
	rr := a.det.rrList(a.effectiveFs)

	out.PeakList = a.peakIndices()
	out.PeakListRaw = rawPeaks
	out.RRList = rr
	out.IBIMs = rr

	rrOpt := a.opt
	rrOpt.CleanRR = false

	if len(rr) > 0 {
		if rrOut, err := hrv.AnalyzeRR(rr, rrOpt); err == nil {
			out.BPM = rrOut.BPM

			out.SDNN = rrOut.SDNN
			out.RMSSD = rrOut.RMSSD
			out.SDSD = rrOut.SDSD
			out.PNN20 = rrOut.PNN20
			out.PNN50 = rrOut.PNN50
			out.NN20 = rrOut.NN20
			out.NN50 = rrOut.NN50
			out.MAD = rrOut.MAD

			out.SD1 = rrOut.SD1
			out.SD2 = rrOut.SD2
			out.SD1SD2Ratio = rrOut.SD1SD2Ratio
			out.EllipseArea = rrOut.EllipseArea

			out.BinarySegments = rrOut.BinarySegments

			out.Quality.RejectedIndices = rrOut.Quality.RejectedIndices
		}
	} else {
		out.BPM = 0
	}

	mask := make([]int, len(out.PeakList))
	for i := range mask {
		mask[i] = 1
	}

	if a.opt.ThresholdRR && len(rr) >= 2 {
		for _, idx := range out.Quality.RejectedIndices {
			if idx+1 < len(mask) {
				mask[idx+1] = 0
			}
		}
	}

	out.BinaryPeakMask = mask

	q := &out.Quality

	q.TotalBeats = a.det.acceptedTotal
	q.RejectedBeats = a.det.shortRejectCount
	q.RejectionRate = a.det.rejectionRate(a.now)
	q.GoodQuality = q.RejectionRate <= a.opt.SegmentRejectThreshold

	if !q.GoodQuality {
		q.QualityWarning = "high beat rejection rate"
	}

	if a.snr.emaInit {
		q.SNRDb = sanitize(a.snr.snrEma)
	}

	q.Confidence = sanitize(a.snr.confidence)

	q.F0Hz = a.snr.lastF0Used
	if q.F0Hz == 0 {
		q.F0Hz = a.lastF0
	}

	q.MAPercActive = a.activeMAPerc()

	q.DoublingFlag = a.harm.hard
	q.SoftDoublingFlag = a.harm.soft
	q.DoublingHintFlag = a.harm.hintActive(a.now)
	q.HardFallbackActive = a.now < a.det.hardFallbackUntil
	q.RRFallbackModeActive = a.harm.rrFallbackDrivingHint || a.brakeReverted

	q.RefractoryMsActive = a.det.lastRefractoryMs
	if q.RefractoryMsActive == 0 {
		q.RefractoryMsActive = a.opt.RefractoryMs
	}

	q.MinRRBoundMs = a.det.lastMinRRBoundMs

	longEst := a.harm.doublingLongRRms
	if longEst <= 0 {
		longEst = longRRMs(rr)
	}

	q.RRLongMs = longEst
	q.PairFrac = pairFraction(rr, longEst, a.opt)
	q.RRShortFrac = shortFraction(rr)
	q.PHalfOverFund = a.harm.lastRatio

	q.SoftStreak = a.harm.softStreak
	q.SoftSecs = a.harm.softSecs(a.now)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}
