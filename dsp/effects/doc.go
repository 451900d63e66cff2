// Package effects provides the SpectralCompressor effect: a streaming STFT
// around a per-bin compressor bank with lock-free parameters, input/output
// gain, latency-compensated dry/wet mix and bypass.
//
// Subpackages:
//   - github.com/cwbudde/algo-speccomp/dsp/effects/dynamics
//
// The effect is designed for real-time processing: ProcessInPlace does not
// allocate and takes no locks, and the setters may be called from any
// goroutine while audio is running.
package effects
