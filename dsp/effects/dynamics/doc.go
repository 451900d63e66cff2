// Package dynamics provides per-bin spectral dynamics processing.
//
// Included components:
//   - EnvelopeFollower: asymmetric one-pole attack/release smoothing running
//     once per STFT frame.
//   - Curve: downward/upward threshold and ratio gain law evaluated in the dB
//     domain relative to a target level.
//   - TargetEstimator: per-frame reference level (broadband RMS, 1/N-octave
//     smoothed spectrum, or sidechain spectrum) that thresholds are relative to.
//   - CompressorBank: owns envelope state for every (channel, bin) pair and
//     applies the gain law to complex spectra in place.
//   - Params, ParamStore, ParamSmoother: the six user-facing knobs, a
//     lock-free holder for cross-thread automation and per-frame smoothing.
//
// Process paths never allocate, lock or log. Setup calls (constructors,
// Initialize, Set*) may allocate and must not run concurrently with Process.
package dynamics
