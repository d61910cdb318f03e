package window

import (
	"math"
	"testing"
)

func TestGenerate_Lengths(t *testing.T) {
	if Generate(TypeHamming, 0) != nil {
		t.Fatal("length 0 should return nil")
	}

	if Generate(TypeHamming, -3) != nil {
		t.Fatal("negative length should return nil")
	}

	one := Generate(TypeHann, 1)
	if len(one) != 1 || one[0] != 1 {
		t.Fatalf("length 1: got %v, want [1]", one)
	}
}

func TestGenerate_Hamming(t *testing.T) {
	w := Generate(TypeHamming, 64)

	if len(w) != 64 {
		t.Fatalf("len = %d, want 64", len(w))
	}

	// Symmetric endpoints at 0.08, peak 1.0 at the center.
	if math.Abs(w[0]-0.08) > 1e-12 || math.Abs(w[63]-0.08) > 1e-12 {
		t.Errorf("endpoints: %v, %v, want 0.08", w[0], w[63])
	}

	for i := range w {
		if math.Abs(w[i]-w[len(w)-1-i]) > 1e-12 {
			t.Fatalf("asymmetric at %d: %v vs %v", i, w[i], w[len(w)-1-i])
		}
	}
}

func TestGenerate_Rectangular(t *testing.T) {
	for _, v := range Generate(TypeRectangular, 16) {
		if v != 1 {
			t.Fatalf("rectangular coefficient %v, want 1", v)
		}
	}
}

func TestCoherentGain(t *testing.T) {
	if g := CoherentGain(nil); g != 0 {
		t.Fatalf("empty gain = %v, want 0", g)
	}

	if g := CoherentGain(Generate(TypeRectangular, 32)); math.Abs(g-1) > 1e-12 {
		t.Fatalf("rectangular gain = %v, want 1", g)
	}

	g := CoherentGain(Generate(TypeHamming, 256))
	if math.Abs(g-0.54) > 0.01 {
		t.Fatalf("hamming gain = %v, want ~0.54", g)
	}
}

func TestApply(t *testing.T) {
	samples := []float64{1, 2, 3, 4}
	coeffs := []float64{0.5, 0.5, 2, 0}
	dst := make([]float64, 4)

	Apply(dst, samples, coeffs)

	want := []float64{0.5, 1, 6, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}
