// Package buffer provides a growable sample FIFO used as the backing
// store for sliding analysis windows: samples append at the tail and the
// oldest prefix drops when the window trims.
package buffer

// Buffer wraps a float64 slice with append-and-trim semantics.
// DSP functions accept raw []float64; use Samples() to bridge.
type Buffer struct {
	samples []float64
}

// New returns an empty Buffer with capacity reserved for capHint samples.
func New(capHint int) *Buffer {
	if capHint < 0 {
		capHint = 0
	}
	return &Buffer{samples: make([]float64, 0, capHint)}
}

// FromSlice wraps an existing slice without copying.
// Mutations to the slice are visible through the Buffer and vice versa.
func FromSlice(s []float64) *Buffer {
	return &Buffer{samples: s}
}

// Samples returns the underlying slice.
func (b *Buffer) Samples() []float64 {
	return b.samples
}

// Len returns the current number of samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Cap returns the current capacity of the backing slice.
func (b *Buffer) Cap() int {
	return cap(b.samples)
}

// Append adds samples at the tail, growing the backing array as needed.
func (b *Buffer) Append(samples ...float64) {
	b.samples = append(b.samples, samples...)
}

// DropFront removes the oldest n samples by shifting the remainder down,
// keeping the backing array. n is clamped to the current length.
func (b *Buffer) DropFront(n int) {
	if n <= 0 {
		return
	}

	if n >= len(b.samples) {
		b.samples = b.samples[:0]
		return
	}

	copy(b.samples, b.samples[n:])
	b.samples = b.samples[:len(b.samples)-n]
}

// Tail returns the most recent n samples without copying.
// n is clamped to the current length.
func (b *Buffer) Tail(n int) []float64 {
	if n <= 0 {
		return nil
	}

	if n > len(b.samples) {
		n = len(b.samples)
	}

	return b.samples[len(b.samples)-n:]
}

// At returns the sample at index i (0 = oldest).
func (b *Buffer) At(i int) float64 {
	return b.samples[i]
}

// Grow ensures capacity is at least n, preserving existing data.
// If the current capacity is already >= n this is a no-op.
func (b *Buffer) Grow(n int) {
	if n <= cap(b.samples) {
		return
	}
	grown := make([]float64, len(b.samples), n)
	copy(grown, b.samples)
	b.samples = grown
}

// Reset empties the buffer while keeping the backing array.
func (b *Buffer) Reset() {
	b.samples = b.samples[:0]
}

// CopyTo copies the current contents into dst, resizing dst as needed,
// and returns it. A nil dst allocates.
func (b *Buffer) CopyTo(dst []float64) []float64 {
	if cap(dst) < len(b.samples) {
		dst = make([]float64, len(b.samples))
	} else {
		dst = dst[:len(b.samples)]
	}

	copy(dst, b.samples)
	return dst
}
