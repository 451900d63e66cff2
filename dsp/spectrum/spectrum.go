package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-vecmath"
)

// Magnitude returns |X[k]| for each complex spectrum bin.
//
// This function uses SIMD-optimized implementations when available (AVX2, SSE2, NEON)
// for improved performance on large spectrum arrays.
func Magnitude(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	re := make([]float64, len(in))
	im := make([]float64, len(in))

	MagnitudeInto(out, re, im, in)

	return out
}

// MagnitudeInto computes |X[k]| into dst, using re and im as scratch for the
// split real/imaginary parts. All slices must have the same length as in.
// It does not allocate.
//
// Bins whose squared parts overflow are recomputed with math.Hypot, so every
// finite bin yields a finite magnitude.
func MagnitudeInto(dst, re, im []float64, in []complex128) {
	splitParts(re, im, in)
	vecmath.Magnitude(dst, re, im)

	for i, m := range dst {
		if math.IsInf(m, 1) {
			dst[i] = math.Hypot(re[i], im[i])
		}
	}
}

// splitParts copies the real and imaginary parts of in into re and im.
func splitParts(re, im []float64, in []complex128) {
	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}
}

// Phase returns arg(X[k]) for each complex spectrum bin in radians.
func Phase(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	for i, c := range in {
		out[i] = cmplx.Phase(c)
	}

	return out
}

// FractionalOctaveEdges computes, for every bin k of a one-sided spectrum of
// len(lo) bins, the half-open range [lo[k], hi[k]) of bins whose center
// frequency lies within 1/(2*fraction) octave of bin k. The DC bin only
// covers itself.
//
// Band edges depend on bin index ratios only, so they are independent of the
// sample rate.
func FractionalOctaveEdges(lo, hi []int, fraction int) error {
	if len(lo) == 0 || len(lo) != len(hi) {
		return fmt.Errorf("fractional-octave edges require equal non-empty slices: %d != %d", len(lo), len(hi))
	}

	if fraction <= 0 {
		return fmt.Errorf("fractional-octave fraction must be > 0: %d", fraction)
	}

	bins := len(lo)
	halfBand := math.Pow(2, 1/(2*float64(fraction)))

	lo[0], hi[0] = 0, 1

	for k := 1; k < bins; k++ {
		fLo := float64(k) / halfBand
		fHi := float64(k) * halfBand

		l := max(int(math.Ceil(fLo)), 1)
		h := min(int(math.Floor(fHi))+1, bins)

		lo[k] = min(l, k)
		hi[k] = max(h, k+1)
	}

	return nil
}
