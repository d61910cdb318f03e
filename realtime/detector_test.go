package realtime

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-hrv/hrv"
)

func TestDetector_FloorSwitchesAfterWarmup(t *testing.T) {
	d := newDetector(hrv.DefaultOptions())

	if got := d.floorMs(5); got != 500 {
		t.Fatalf("cold floor = %v, want strict 500", got)
	}

	d.acceptedTotal = 12

	if got := d.floorMs(20); got != 400 {
		t.Fatalf("warm floor = %v, want relaxed 400", got)
	}

	// Enough beats but not enough stream age stays strict.
	if got := d.floorMs(10); got != 500 {
		t.Fatalf("early floor = %v, want strict 500", got)
	}
}

func TestDetector_RefractoryFromBPM(t *testing.T) {
	d := newDetector(hrv.DefaultOptions())

	// No EMA yet: the configured refractory applies.
	if got := d.refractoryMs(850, 0); got != 250 {
		t.Fatalf("initial refractory = %v, want 250", got)
	}

	d.bpmEMA = 72
	d.bpmEMAInit = true

	// 0.4 * 833 = 333 ms, inside the [280, 450] clamp.
	got := d.refractoryMs(60000/72.0, 10)
	if math.Abs(got-333.33) > 0.5 {
		t.Fatalf("refractory = %v, want ~333", got)
	}

	// Very slow rhythm clamps at 450.
	if got := d.refractoryMs(2000, 10); got != 450 {
		t.Fatalf("slow-rhythm refractory = %v, want 450", got)
	}

	// Hard fallback raises to min(450, 0.5*rrPrior).
	d.hardFallbackUntil = 100
	if got := d.refractoryMs(800, 10); got != 400 {
		t.Fatalf("fallback refractory = %v, want 400", got)
	}
}

func TestDetector_TempRefractoryAfterRejectionStorm(t *testing.T) {
	d := newDetector(hrv.DefaultOptions())

	for i := 0; i < 4; i++ {
		d.reject(10 + float64(i)*0.5)
	}

	if d.tempRefractoryUntil <= 11.5 {
		t.Fatal("4 rejections within 3 s must arm the temporary refractory")
	}

	// With the boost armed and a short prior RR, the effective
	// refractory is lifted toward 350 ms.
	d.bpmEMA = 180
	d.bpmEMAInit = true

	got := d.refractoryMs(d.rrPriorMs(), 12)
	if got < 349 {
		t.Fatalf("boosted refractory = %v, want >= 350", got)
	}
}

func TestDetector_BPMEMAFollowsRate(t *testing.T) {
	d := newDetector(hrv.DefaultOptions())

	env := gateEnv{effectiveFs: 50, now: 0, age: 30, marginUnit: 0.1}

	// Feed regular 800 ms beats straight into the gate.
	var abs uint64
	for i := 0; i < 20; i++ {
		env.now = float64(i) * 0.8
		d.gate(abs, 1.0, env)

		abs += 40 // 800 ms at 50 Hz
	}

	if !d.bpmEMAInit {
		t.Fatal("EMA must initialize after the first interval")
	}

	if math.Abs(d.bpmEMA-75) > 1 {
		t.Fatalf("bpm EMA = %v, want ~75", d.bpmEMA)
	}

	rr := d.rrList(50)
	for i, v := range rr {
		if v != 800 {
			t.Fatalf("rr[%d] = %v, want 800", i, v)
		}
	}
}

func TestDetector_ShortRRNeedsAmplitudeMargin(t *testing.T) {
	opt := hrv.DefaultOptions()
	d := newDetector(opt)

	env := gateEnv{effectiveFs: 50, now: 100, age: 100, marginUnit: 0.1}

	// Establish a 75 BPM rhythm.
	var abs uint64
	for i := 0; i < 12; i++ {
		env.now = 100 + float64(i)*0.8
		d.gate(abs, 1.0, env)

		abs += 40
	}

	before := len(d.peaks)

	// A candidate at 440 ms (below min RR ~560) with no amplitude edge
	// is rejected.
	env.now += 0.44
	d.gate(abs-40+22, 1.0, env)

	if len(d.peaks) != before {
		t.Fatal("weak short-RR candidate must be rejected")
	}

	if d.shortRejectCount == 0 {
		t.Fatal("rejection must be counted")
	}

	// The same interval with a decisive amplitude edge is accepted.
	env.now += 0.01
	d.gate(abs-40+23, 2.0, env)

	if len(d.peaks) != before+1 {
		t.Fatal("strong short-RR candidate must be accepted")
	}
}

func TestDetector_HarmonicGateRaisesMinRR(t *testing.T) {
	opt := hrv.DefaultOptions()
	d := newDetector(opt)

	env := gateEnv{effectiveFs: 50, now: 100, age: 100, marginUnit: 0.1}

	var abs uint64
	for i := 0; i < 12; i++ {
		env.now = 100 + float64(i)*0.8
		d.gate(abs, 1.0, env)

		abs += 40
	}

	env.harmonicActive = true
	env.longEstMs = 840

	// 0.86 * 840 = 722 ms bound: a 640 ms candidate now falls short.
	env.now += 0.64
	d.gate(abs-40+32, 1.0, env)

	if d.lastMinRRBoundMs < 700 {
		t.Fatalf("min RR bound = %v, want raised above 700", d.lastMinRRBoundMs)
	}
}

func TestDetector_PrunePeaks(t *testing.T) {
	d := newDetector(hrv.DefaultOptions())
	d.peaks = []peak{{abs: 10}, {abs: 50}, {abs: 90}}

	d.prunePeaksBefore(50)

	if len(d.peaks) != 2 || d.peaks[0].abs != 50 {
		t.Fatalf("peaks after prune = %v", d.peaks)
	}
}
