package buffer

import "testing"

func TestAppendAndLen(t *testing.T) {
	b := New(8)

	if b.Len() != 0 {
		t.Fatalf("new buffer len = %d, want 0", b.Len())
	}

	b.Append(1, 2, 3)
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}

	b.Append(4)
	if got := b.Samples(); got[3] != 4 {
		t.Fatalf("tail sample = %v, want 4", got[3])
	}
}

func TestDropFront(t *testing.T) {
	b := FromSlice([]float64{1, 2, 3, 4, 5})

	b.DropFront(2)

	want := []float64{3, 4, 5}
	got := b.Samples()

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDropFront_Clamped(t *testing.T) {
	b := FromSlice([]float64{1, 2})

	b.DropFront(10)
	if b.Len() != 0 {
		t.Fatalf("len = %d, want 0 after over-drop", b.Len())
	}

	b.DropFront(-1)
	if b.Len() != 0 {
		t.Fatal("negative drop must be a no-op")
	}
}

func TestTail(t *testing.T) {
	b := FromSlice([]float64{1, 2, 3, 4})

	tail := b.Tail(2)
	if len(tail) != 2 || tail[0] != 3 || tail[1] != 4 {
		t.Fatalf("Tail(2) = %v, want [3 4]", tail)
	}

	if got := b.Tail(100); len(got) != 4 {
		t.Fatalf("over-long tail len = %d, want 4", len(got))
	}

	if got := b.Tail(0); got != nil {
		t.Fatalf("Tail(0) = %v, want nil", got)
	}
}

func TestGrowPreservesData(t *testing.T) {
	b := FromSlice([]float64{1, 2, 3})

	b.Grow(100)
	if b.Cap() < 100 {
		t.Fatalf("cap = %d, want >= 100", b.Cap())
	}

	got := b.Samples()
	if got[0] != 1 || got[2] != 3 {
		t.Fatal("grow lost data")
	}
}

func TestCopyTo(t *testing.T) {
	b := FromSlice([]float64{1, 2, 3})

	dst := b.CopyTo(nil)
	dst[0] = 99

	if b.At(0) != 1 {
		t.Fatal("CopyTo must not alias the buffer")
	}

	// Reuses capacity when possible.
	big := make([]float64, 0, 16)
	out := b.CopyTo(big)
	if len(out) != 3 || out[2] != 3 {
		t.Fatalf("CopyTo reuse = %v", out)
	}
}
