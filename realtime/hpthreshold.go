package realtime

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-hrv/hrv"
)

// HP-style threshold calibration cadence and acceptance parameters.
const (
	maUpdateSec      = 3.0
	maChangeDwellSec = 6.0
	maImproveFrac    = 0.15
	hpScaleMax       = 1024.0
	highBpmThresh    = 120.0
)

// maGrid is the candidate lift-percentage grid searched at calibration.
var maGrid = []float64{10, 15, 20, 25, 30, 35, 40, 50, 60}

// hpCalibrator periodically re-picks the HP-style lift percentage by
// scoring each grid candidate on the current window.
type hpCalibrator struct {
	opt hrv.Options

	maPerc float64

	lastCalib  float64
	lastChange float64

	highBpmSince float64
	bpm130Since  float64
	cvHighSince  float64
}

func newHPCalibrator(opt hrv.Options) *hpCalibrator {
	return &hpCalibrator{opt: opt, maPerc: opt.MAPerc, lastChange: -maChangeDwellSec}
}

// hpDetect runs HP-style peak detection over a full window: rescale to
// [0, 1024], lift the rolling mean by ma percent, pick local maxima above
// the lifted mean, and consolidate within the refractory distance
// keeping the strongest.
func hpDetect(windowData []float64, fs, ma, refractoryMs float64) []int {
	n := len(windowData)
	if n < 3 {
		return nil
	}

	scaled := hrv.ScaleData(windowData, 0, hpScaleMax)

	meanWin := int(math.Round(0.75 * fs))
	if meanWin < 5 {
		meanWin = 5
	}

	cumsum := make([]float64, n+1)
	for i, v := range scaled {
		cumsum[i+1] = cumsum[i] + v
	}

	rollMean := func(i int) float64 {
		start := i - meanWin/2
		if start < 0 {
			start = 0
		}

		end := i + (meanWin - meanWin/2)
		if end > n {
			end = n
		}

		return (cumsum[end] - cumsum[start]) / float64(end-start)
	}

	refSamples := int(math.Round(refractoryMs * 0.001 * fs))
	if refSamples < 1 {
		refSamples = 1
	}

	var peaks []int

	for i := 1; i < n-1; i++ {
		rm := rollMean(i)
		thr := rm + rm/100*ma

		if !(scaled[i] > thr && scaled[i] > scaled[i-1] && scaled[i] >= scaled[i+1]) {
			continue
		}

		if len(peaks) > 0 && i-peaks[len(peaks)-1] < refSamples {
			// Within refractory: strongest wins.
			if scaled[i] > scaled[peaks[len(peaks)-1]] {
				peaks[len(peaks)-1] = i
			}

			continue
		}

		peaks = append(peaks, i)
	}

	return peaks
}

// scoreCandidate evaluates one ma_perc candidate on the window. Lower is
// better; candidates yielding implausible rates are heavily penalized.
func (c *hpCalibrator) scoreCandidate(windowData []float64, fs, ma float64) float64 {
	const outOfRangePenalty = 500.0

	peaks := hpDetect(windowData, fs, ma, c.opt.RefractoryMs)
	if len(peaks) < 3 {
		return outOfRangePenalty * 2
	}

	rr := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		rr[i-1] = float64(peaks[i]-peaks[i-1]) * 1000 / fs
	}

	mean := stat.Mean(rr, nil)
	if mean <= 0 {
		return outOfRangePenalty * 2
	}

	bpm := 60000 / mean
	sd := stat.StdDev(rr, nil)

	score := sd * (1 + 0.4*math.Max(0, (bpm-highBpmThresh)/40))

	if bpm < c.opt.BPMMin || bpm > c.opt.BPMMax {
		score += outOfRangePenalty
	}

	if bpm > highBpmThresh && ma < 25 {
		score += sd
	}

	return score
}

// calibrate re-runs the grid search when due and applies the acceptance,
// bias, and floor rules. Returns the active ma_perc.
func (c *hpCalibrator) calibrate(windowData []float64, fs, now, bpmEMA, cv float64) float64 {
	if now-c.lastCalib < maUpdateSec {
		return c.maPerc
	}

	c.lastCalib = now

	c.trackDwell(now, bpmEMA, cv)

	if len(windowData) >= int(2*fs) {
		oldScore := c.scoreCandidate(windowData, fs, c.maPerc)

		bestMa, bestScore := c.maPerc, oldScore
		for _, ma := range maGrid {
			if ma == c.maPerc {
				continue
			}

			if s := c.scoreCandidate(windowData, fs, ma); s < bestScore {
				bestMa, bestScore = ma, s
			}
		}

		improved := oldScore > 0 && (oldScore-bestScore)/oldScore >= maImproveFrac
		if improved && bestMa != c.maPerc && now-c.lastChange >= maChangeDwellSec {
			c.maPerc = bestMa
			c.lastChange = now
		}
	}

	// Sustained high heart rate with a low lift invites harmonic
	// lock-on; bias upward and enforce floors.
	if c.highBpmSince > 0 && now-c.highBpmSince >= 10 && c.maPerc < 25 {
		c.maPerc += 10
		c.lastChange = now
	}

	if c.cvHighSince > 0 && now-c.cvHighSince >= 6 && c.maPerc < 15 {
		c.maPerc = 15
	}

	if c.bpm130Since > 0 && now-c.bpm130Since >= 10 && c.maPerc < 20 {
		c.maPerc = 20
	}

	return c.maPerc
}

func (c *hpCalibrator) trackDwell(now, bpmEMA, cv float64) {
	if bpmEMA > highBpmThresh {
		if c.highBpmSince == 0 {
			c.highBpmSince = now
		}
	} else {
		c.highBpmSince = 0
	}

	if bpmEMA > 130 {
		if c.bpm130Since == 0 {
			c.bpm130Since = now
		}
	} else {
		c.bpm130Since = 0
	}

	if bpmEMA > highBpmThresh && cv > 0.15 {
		if c.cvHighSince == 0 {
			c.cvHighSince = now
		}
	} else {
		c.cvHighSince = 0
	}
}
