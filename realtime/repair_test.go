package realtime

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-hrv/hrv"
)

// doubledPeaks builds a 2.4 Hz peak train at 50 Hz with alternating
// strong/weak amplitudes: the weak peaks are the harmonic doubles.
func doubledPeaks(n int) []peak {
	out := make([]peak, n)

	for i := range out {
		amp := 3.0
		if i%2 == 1 {
			amp = 1.0
		}

		out[i] = peak{abs: uint64(i * 21), amp: amp} // 420 ms spacing
	}

	return out
}

func TestCoalesce_ClassicDoubling(t *testing.T) {
	// One premature beat splits a regular 800 ms rhythm into 300+520.
	peaks := []peak{
		{abs: 0, amp: 3},
		{abs: 40, amp: 3},
		{abs: 55, amp: 1}, // 300 ms after its predecessor
		{abs: 81, amp: 3},
		{abs: 121, amp: 3},
		{abs: 161, amp: 3},
	}

	out, removed := coalesceShortPairs(peaks, 50, hrv.DefaultOptions(), false)

	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	for _, p := range out {
		if p.abs == 55 {
			t.Fatal("premature middle peak survived")
		}
	}
}

func TestCoalesce_EqualPairDoubling(t *testing.T) {
	peaks := doubledPeaks(9)

	out, removed := coalesceShortPairs(peaks, 50, hrv.DefaultOptions(), true)

	// The cap allows int(0.4*9) = 3 removals in this pass.
	if removed != 3 {
		t.Fatalf("removed = %d, want 3 (cap)", removed)
	}

	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}

	// All strong anchors survive; exactly one weak peak remains because
	// the removal cap was reached.
	weak := 0
	for _, p := range out {
		if p.amp == 1 {
			weak++
		}
	}

	if weak != 1 {
		t.Fatalf("weak survivors = %d, want 1", weak)
	}
}

func TestCoalesce_StrongMiddleProtected(t *testing.T) {
	// The middle peak dominates both neighbors: never deleted.
	peaks := []peak{
		{abs: 0, amp: 1},
		{abs: 40, amp: 1},
		{abs: 55, amp: 5},
		{abs: 81, amp: 1},
		{abs: 121, amp: 1},
		{abs: 161, amp: 1},
	}

	out, removed := coalesceShortPairs(peaks, 50, hrv.DefaultOptions(), false)

	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}

	if len(out) != len(peaks) {
		t.Fatal("peak list changed")
	}
}

func TestPeriodicSuppression_KeepsStrongest(t *testing.T) {
	// Doubled train, expected period 840 ms: each sweep window holds a
	// weak double and a strong true beat.
	peaks := doubledPeaks(11)

	out := periodicSuppression(peaks, 50, 0.84, 0.24, 0.40)

	if len(out) >= len(peaks) {
		t.Fatal("suppression removed nothing")
	}

	removed := len(peaks) - len(out)
	maxRemovals := int(0.40 * float64(len(peaks)))

	if removed > maxRemovals {
		t.Fatalf("removed %d, cap is %d", removed, maxRemovals)
	}

	// The first three survivors are strong beats: the weak doubles
	// between them were removed.
	for _, p := range out[:3] {
		if p.amp != 3 && p.abs != 0 {
			t.Fatalf("strong beat removed near %d", p.abs)
		}
	}
}

func TestPeriodicSuppression_Degenerate(t *testing.T) {
	peaks := doubledPeaks(2)

	out := periodicSuppression(peaks, 50, 0.84, 0.24, 0.40)
	if len(out) != 2 {
		t.Fatal("fewer than 3 peaks must pass through")
	}

	out = periodicSuppression(doubledPeaks(5), 50, 0, 0.24, 0.40)
	if len(out) != 5 {
		t.Fatal("non-positive period must pass through")
	}
}

func TestPairFraction(t *testing.T) {
	// Doubled rhythm: every adjacent pair sums to ~840.
	rr := []float64{420, 420, 420, 420}

	if got := pairFraction(rr, 840, hrv.DefaultOptions()); got != 1 {
		t.Fatalf("pairFrac = %v, want 1", got)
	}

	if got := pairFraction(rr, 0, hrv.DefaultOptions()); got != 0 {
		t.Fatalf("pairFrac with no long estimate = %v, want 0", got)
	}
}

func TestShortFraction(t *testing.T) {
	rr := []float64{800, 810, 400, 805, 795}

	got := shortFraction(rr)
	if math.Abs(got-0.2) > 1e-12 {
		t.Fatalf("shortFrac = %v, want 0.2", got)
	}
}

func TestLongRRMs(t *testing.T) {
	// Median 800: the 400 ms interval sits below 0.8*median and is
	// excluded from the long-interval mean.
	rr := []float64{800, 820, 400, 780, 800}

	got := longRRMs(rr)
	if math.Abs(got-800) > 1e-9 {
		t.Fatalf("longRR = %v, want 800", got)
	}
}
