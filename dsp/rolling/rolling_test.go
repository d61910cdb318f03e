package rolling

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-hrv/internal/testutil"
)

// bruteStats recomputes window statistics directly for cross-checking.
func bruteStats(tail []float64) (mean, variance, minV, maxV float64) {
	if len(tail) == 0 {
		return 0, 0, 0, 0
	}

	minV, maxV = tail[0], tail[0]

	var sum, sumSq float64
	for _, x := range tail {
		sum += x
		sumSq += x * x

		if x < minV {
			minV = x
		}

		if x > maxV {
			maxV = x
		}
	}

	n := float64(len(tail))
	mean = sum / n

	variance = sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	return mean, variance, minV, maxV
}

func TestWindow_MatchesBruteForce(t *testing.T) {
	const size = 37

	w := New(size)
	samples := testutil.DeterministicNoise(11, 5.0, 500)

	for i, x := range samples {
		w.Push(x)

		lo := i + 1 - size
		if lo < 0 {
			lo = 0
		}

		tail := samples[lo : i+1]
		mean, variance, minV, maxV := bruteStats(tail)

		if math.Abs(w.Mean()-mean) > 1e-9 {
			t.Fatalf("sample %d: mean = %v, want %v", i, w.Mean(), mean)
		}

		if math.Abs(w.Variance()-variance) > 1e-9 {
			t.Fatalf("sample %d: variance = %v, want %v", i, w.Variance(), variance)
		}

		if w.Min() != minV {
			t.Fatalf("sample %d: min = %v, want %v", i, w.Min(), minV)
		}

		if w.Max() != maxV {
			t.Fatalf("sample %d: max = %v, want %v", i, w.Max(), maxV)
		}
	}
}

func TestWindow_Empty(t *testing.T) {
	w := New(8)

	if w.Mean() != 0 || w.Variance() != 0 || w.Min() != 0 || w.Max() != 0 {
		t.Fatal("empty window statistics must be zero")
	}

	if w.Len() != 0 || w.Full() {
		t.Fatal("empty window must report zero length")
	}
}

func TestWindow_MinSize(t *testing.T) {
	w := New(0)
	if w.Size() != 1 {
		t.Fatalf("size clamped to %d, want 1", w.Size())
	}

	w.Push(3)
	w.Push(7)

	if w.Mean() != 7 || w.Min() != 7 || w.Max() != 7 {
		t.Fatal("single-slot window must track only the last sample")
	}
}

func TestWindow_VarianceFloor(t *testing.T) {
	w := New(16)
	for i := 0; i < 32; i++ {
		w.Push(1e9)
	}

	if v := w.Variance(); v < 0 {
		t.Fatalf("variance = %v, must be floored at 0", v)
	}
}

func TestWindow_Reset(t *testing.T) {
	w := New(4)
	for _, x := range []float64{1, 2, 3, 4, 5} {
		w.Push(x)
	}

	w.Reset()

	if w.Len() != 0 || w.Mean() != 0 {
		t.Fatal("reset did not clear window")
	}

	w.Push(2)
	if w.Mean() != 2 || w.Max() != 2 {
		t.Fatal("window unusable after reset")
	}
}
