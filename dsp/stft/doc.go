// Package stft provides a streaming short-time Fourier transform with
// windowed overlap-add resynthesis.
//
// An STFT accepts arbitrarily sized blocks of multi-channel audio, frames
// them every hop samples, hands the one-sided spectra (fftSize/2+1 bins per
// channel) to a callback for in-place modification, and reconstructs the
// time-domain signal. Analysis and synthesis use the same periodic window; the
// overlap-add gain is normalized so an untouched spectrum reconstructs the
// input exactly, delayed by Latency samples.
//
// Optional sidechain channels are analyzed with the same framing but never
// resynthesized.
//
// Process does not allocate and is intended to be called from a real-time
// audio thread. An STFT is not safe for concurrent use.
package stft
