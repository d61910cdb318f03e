package realtime

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-hrv/dsp/welch"
	"github.com/cwbudde/algo-hrv/hrv"
)

// flatPSD builds a synthetic one-sided PSD with unit noise floor and
// spikes of the given powers at f0 and 2*f0.
func flatPSD(f0, pFund, pHarm float64) welch.Result {
	n := 128
	r := welch.Result{
		Freqs: make([]float64, n),
		PSD:   make([]float64, n),
	}

	for i := range r.Freqs {
		r.Freqs[i] = float64(i) * 0.05
		r.PSD[i] = 1
	}

	set := func(f, p float64) {
		k := int(math.Round(f / 0.05))
		if k >= 0 && k < n {
			r.PSD[k] = p
		}
	}

	set(f0, pFund)
	set(2*f0, pHarm)

	return r
}

func TestSNR_StrongSignalHighConfidence(t *testing.T) {
	s := newSNREstimator(hrv.DefaultOptions())

	in := snrInputs{
		now:   20,
		age:   20,
		psd:   flatPSD(1.2, 500, 100),
		f0:    1.2,
		beats: 25,
	}

	s.update(in)

	if !s.emaInit {
		t.Fatal("EMA must initialize on the first finite estimate")
	}

	if s.snrEma < 10 {
		t.Fatalf("snr = %v dB, want strong (>= 10)", s.snrEma)
	}

	if s.confidence < 0.9 || s.confidence > 1 {
		t.Fatalf("confidence = %v, want in [0.9, 1]", s.confidence)
	}
}

func TestSNR_WarmupForcesZeroConfidence(t *testing.T) {
	s := newSNREstimator(hrv.DefaultOptions())

	in := snrInputs{
		now:   5,
		age:   5,
		psd:   flatPSD(1.2, 500, 100),
		f0:    1.2,
		beats: 6,
	}

	s.update(in)

	if s.confidence != 0 {
		t.Fatalf("confidence = %v before warm-up, want 0", s.confidence)
	}
}

func TestSNR_DegenerateF0PersistsPrevious(t *testing.T) {
	s := newSNREstimator(hrv.DefaultOptions())

	s.update(snrInputs{now: 20, age: 20, psd: flatPSD(1.2, 500, 100), f0: 1.2, beats: 25})
	prev := s.snrEma

	s.update(snrInputs{now: 22, age: 22, psd: flatPSD(1.2, 500, 100), f0: 0, beats: 26})

	if s.snrEma != prev {
		t.Fatalf("snr changed on degenerate f0: %v -> %v", prev, s.snrEma)
	}
}

func TestSNR_EmptyPSDPersistsPrevious(t *testing.T) {
	s := newSNREstimator(hrv.DefaultOptions())

	s.update(snrInputs{now: 20, age: 20, psd: flatPSD(1.2, 500, 100), f0: 1.2, beats: 25})
	prev := s.snrEma

	s.update(snrInputs{now: 22, age: 22, psd: welch.Result{}, f0: 1.2, beats: 26})

	if s.snrEma != prev {
		t.Fatalf("snr changed on empty PSD: %v -> %v", prev, s.snrEma)
	}
}

func TestSNR_RemapScoresHalfFundamental(t *testing.T) {
	s := newSNREstimator(hrv.DefaultOptions())

	// Doubling: the detected rate sits at 2.4 Hz, true fundamental at 1.2.
	in := snrInputs{
		now:   20,
		age:   20,
		psd:   flatPSD(1.2, 500, 100),
		f0:    2.4,
		remap: true,
		beats: 25,
	}

	s.update(in)

	if s.lastF0Used != 1.2 {
		t.Fatalf("f0 used = %v, want remapped 1.2", s.lastF0Used)
	}
}

func TestSNR_ConfidencePenalties(t *testing.T) {
	s := newSNREstimator(hrv.DefaultOptions())

	clean := snrInputs{now: 20, age: 20, psd: flatPSD(1.2, 500, 100), f0: 1.2, beats: 25}
	s.update(clean)

	full := s.confidence

	noisy := clean
	noisy.now = 22
	noisy.rejection = 0.5
	noisy.cv = 0.4

	s.update(noisy)

	if s.confidence >= full {
		t.Fatalf("confidence %v must drop under rejection/CV penalties (was %v)", s.confidence, full)
	}

	if s.confidence < 0 || s.confidence > 1 {
		t.Fatal("confidence out of [0, 1]")
	}
}

func TestSNR_EMASmoothing(t *testing.T) {
	s := newSNREstimator(hrv.DefaultOptions())

	s.update(snrInputs{now: 20, age: 20, psd: flatPSD(1.2, 500, 100), f0: 1.2, beats: 25})
	high := s.snrEma

	// A sudden collapse moves the EMA only part-way within one step.
	s.update(snrInputs{now: 22, age: 22, psd: flatPSD(1.2, 1.5, 1.2), f0: 1.2, beats: 27})

	if s.snrEma >= high {
		t.Fatal("EMA must move toward the collapsed estimate")
	}

	inst := 10 * math.Log10((1.5+4+1.2+4)/4.8) // collapsed instant estimate: two 5-bin bands over a unit floor
	if s.snrEma <= inst {
		t.Fatalf("EMA = %v jumped fully to the instant estimate", s.snrEma)
	}
}
