// Package spectrum provides FFT-adjacent spectrum-domain utilities.
//
// The package intentionally does not implement FFT itself. It operates on
// complex spectrum bins produced by external FFT backends and provides
// magnitude, power and phase extraction plus fractional-octave band layout
// for per-bin smoothing. The *Into variants write to caller-owned slices and
// never allocate, so they are safe to call from real-time audio callbacks.
package spectrum
