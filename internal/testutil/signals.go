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

// DeterministicSpectrum generates complex bins with magnitudes uniform in
// [0, maxMagnitude) and uniformly distributed phase, using a fixed seed.
func DeterministicSpectrum(seed int64, maxMagnitude float64, bins int) []complex128 {
	out := make([]complex128, bins)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		mag := rng.Float64() * maxMagnitude
		phase := (rng.Float64()*2 - 1) * math.Pi
		out[i] = complex(mag*math.Cos(phase), mag*math.Sin(phase))
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
