// Package biquad implements second-order IIR filter sections and cascades
// in Direct Form II Transposed, plus the constant-skirt band-pass design
// used for causal PPG prefiltering.
package biquad
