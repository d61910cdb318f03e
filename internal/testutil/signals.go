package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Tone is one sinusoidal component of a synthetic PPG trace.
type Tone struct {
	FreqHz    float64
	Amplitude float64
}

// PPG generates a deterministic pulse-like trace: a DC baseline plus the
// given sinusoidal components, sampled at sampleRate.
func PPG(sampleRate, dc float64, length int, tones ...Tone) []float64 {
	out := make([]float64, length)
	for i := range out {
		t := float64(i) / sampleRate

		v := dc
		for _, tone := range tones {
			v += tone.Amplitude * math.Sin(2*math.Pi*tone.FreqHz*t)
		}

		out[i] = v
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}
