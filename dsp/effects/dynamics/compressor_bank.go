package dynamics

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-speccomp/dsp/core"
	"github.com/cwbudde/algo-speccomp/dsp/spectrum"
)

const maxBankChannels = 64

// Errors returned by the process path. They are preallocated so rejecting a
// malformed block does not allocate.
var (
	ErrChannelMismatch   = errors.New("dynamics: spectrum channel count does not match bank")
	ErrBinMismatch       = errors.New("dynamics: spectrum bin count does not match bank")
	ErrSidechainMismatch = errors.New("dynamics: sidechain channel count does not match bank")
	ErrInvalidFrameRate  = errors.New("dynamics: sample rate and hop size must be positive and finite")
	ErrChannelIndex      = errors.New("dynamics: channel index out of range")
)

// Metrics holds per-block metering of a CompressorBank.
type Metrics struct {
	// MaxAttenuationDB is the largest gain reduction applied to any bin, as a
	// non-negative dB value.
	MaxAttenuationDB float64
	// MaxBoostDB is the largest gain increase applied to any bin, as a
	// non-negative dB value.
	MaxBoostDB float64
}

type channelMetrics struct {
	minGain float64
	maxGain float64
}

// CompressorBank applies an independent compressor to every (channel, bin)
// pair of an STFT frame.
//
// Envelope state persists across frames; target levels and gains are
// recomputed every frame. Process, ProcessSidechain and ProcessChannel do not
// allocate. The bank is not safe for concurrent use except that distinct
// channels may be processed in parallel through ProcessChannel after Prepare.
type CompressorBank struct {
	sampleRate float64
	fftSize    int
	channels   int
	bins       int

	targetMode        TargetMode
	smoothingFraction int
	targetSmoothingMs float64
	estimator         *TargetEstimator

	envelopes     []float64
	targetHistory []float64
	targetPrimed  []bool

	// Per-channel scratch, indexed ch*bins+bin.
	magnitudes []float64
	sideMags   []float64
	targets    []float64
	gains      []float64
	re, im     []float64
	prefix     []float64

	follower    EnvelopeFollower
	curve       Curve
	targetCoeff float64

	metrics []channelMetrics
}

// NewCompressorBank creates a bank for frames of fftSize/2+1 bins.
func NewCompressorBank(sampleRate float64, fftSize, channels int) (*CompressorBank, error) {
	b := &CompressorBank{
		targetMode:        TargetBroadband,
		smoothingFraction: defaultSmoothingFraction,
	}

	err := b.Initialize(sampleRate, fftSize, channels)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// Initialize resizes the bank and clears all state. On error the previous
// configuration and state are kept.
func (b *CompressorBank) Initialize(sampleRate float64, fftSize, channels int) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("compressor bank sample rate must be positive and finite: %f", sampleRate)
	}

	if fftSize < 2 || fftSize%2 != 0 {
		return fmt.Errorf("compressor bank fft size must be an even number >= 2: %d", fftSize)
	}

	if channels <= 0 || channels > maxBankChannels {
		return fmt.Errorf("compressor bank channels must be in [1, %d]: %d", maxBankChannels, channels)
	}

	bins := fftSize/2 + 1

	estimator, err := NewTargetEstimator(bins, b.targetMode, b.smoothingFraction)
	if err != nil {
		return err
	}

	n := channels * bins

	b.sampleRate = sampleRate
	b.fftSize = fftSize
	b.channels = channels
	b.bins = bins
	b.estimator = estimator
	b.envelopes = make([]float64, n)
	b.targetHistory = make([]float64, n)
	b.targetPrimed = make([]bool, channels)
	b.magnitudes = make([]float64, n)
	b.sideMags = make([]float64, n)
	b.targets = make([]float64, n)
	b.gains = make([]float64, n)
	b.re = make([]float64, n)
	b.im = make([]float64, n)
	b.prefix = make([]float64, channels*estimator.ScratchLen())
	b.metrics = make([]channelMetrics, channels)
	b.follower = EnvelopeFollower{}

	b.Reset()

	return nil
}

// Reset zeroes every envelope, the target smoothing history and the metrics.
func (b *CompressorBank) Reset() {
	core.Zero(b.envelopes)
	core.Zero(b.targetHistory)
	core.Zero(b.gains)

	for i := range b.targetPrimed {
		b.targetPrimed[i] = false
	}

	b.resetMetrics()
}

// SampleRate returns the configured sample rate.
func (b *CompressorBank) SampleRate() float64 { return b.sampleRate }

// FFTSize returns the configured FFT size.
func (b *CompressorBank) FFTSize() int { return b.fftSize }

// Channels returns the configured channel count.
func (b *CompressorBank) Channels() int { return b.channels }

// Bins returns the number of bins per channel.
func (b *CompressorBank) Bins() int { return b.bins }

// TargetMode returns the target estimation mode.
func (b *CompressorBank) TargetMode() TargetMode { return b.targetMode }

// SmoothingFraction returns the 1/N-octave resolution of TargetSmoothed.
func (b *CompressorBank) SmoothingFraction() int { return b.smoothingFraction }

// TargetSmoothing returns the cross-frame target smoothing time in ms.
func (b *CompressorBank) TargetSmoothing() float64 { return b.targetSmoothingMs }

// SetTargetMode switches the target estimation mode.
func (b *CompressorBank) SetTargetMode(mode TargetMode) error {
	estimator, err := NewTargetEstimator(b.bins, mode, b.smoothingFraction)
	if err != nil {
		return err
	}

	b.targetMode = mode
	b.estimator = estimator
	b.clearTargetHistory()

	return nil
}

// SetSmoothingFraction sets the 1/N-octave resolution used by TargetSmoothed.
func (b *CompressorBank) SetSmoothingFraction(fraction int) error {
	estimator, err := NewTargetEstimator(b.bins, b.targetMode, fraction)
	if err != nil {
		return err
	}

	b.smoothingFraction = fraction
	b.estimator = estimator
	b.clearTargetHistory()

	return nil
}

// SetTargetSmoothing sets a symmetric one-pole time constant applied to the
// target level across frames. Zero disables it.
func (b *CompressorBank) SetTargetSmoothing(ms float64) error {
	if ms < MinTimeMs || ms > MaxTimeMs || !core.IsFinite(ms) {
		return fmt.Errorf("target smoothing must be in [%f, %f]: %f", MinTimeMs, MaxTimeMs, ms)
	}

	b.targetSmoothingMs = ms

	return nil
}

// Metrics returns metering for the most recent block across all channels.
func (b *CompressorBank) Metrics() Metrics {
	minGain, maxGain := 1.0, 1.0
	for _, m := range b.metrics {
		minGain = math.Min(minGain, m.minGain)
		maxGain = math.Max(maxGain, m.maxGain)
	}

	return Metrics{
		MaxAttenuationDB: math.Max(0, -core.FlooredLinearToDB(minGain)),
		MaxBoostDB:       math.Max(0, core.FlooredLinearToDB(maxGain)),
	}
}

// LastGains returns the linear gains applied to channel ch in the most recent
// block. The slice aliases bank scratch and is overwritten by the next block.
// It returns nil for an out-of-range channel.
func (b *CompressorBank) LastGains(ch int) []float64 {
	if ch < 0 || ch >= b.channels {
		return nil
	}

	return b.gains[ch*b.bins : (ch+1)*b.bins]
}

// Envelope returns the envelope state of channel ch. The slice aliases bank
// state. It returns nil for an out-of-range channel.
func (b *CompressorBank) Envelope(ch int) []float64 {
	if ch < 0 || ch >= b.channels {
		return nil
	}

	return b.envelopes[ch*b.bins : (ch+1)*b.bins]
}

// Process compresses every channel of spectra in place. spectra must hold
// Channels slices of Bins elements each.
func (b *CompressorBank) Process(spectra [][]complex128, params Params, sampleRate float64, hopSize int) error {
	return b.ProcessSidechain(spectra, nil, params, sampleRate, hopSize)
}

// ProcessSidechain is Process with a sidechain spectrum used by
// TargetSidechain. sidechain may be nil, hold one channel shared by every main
// channel, or hold one channel per main channel.
func (b *CompressorBank) ProcessSidechain(spectra, sidechain [][]complex128, params Params, sampleRate float64, hopSize int) error {
	if len(spectra) != b.channels {
		return ErrChannelMismatch
	}

	if sidechain != nil && len(sidechain) != 1 && len(sidechain) != b.channels {
		return ErrSidechainMismatch
	}

	for _, s := range spectra {
		if len(s) != b.bins {
			return ErrBinMismatch
		}
	}

	for _, s := range sidechain {
		if len(s) != b.bins {
			return ErrBinMismatch
		}
	}

	err := b.Prepare(params, sampleRate, hopSize)
	if err != nil {
		return err
	}

	for ch, s := range spectra {
		var side []complex128

		switch len(sidechain) {
		case 0:
		case 1:
			side = sidechain[0]
		default:
			side = sidechain[ch]
		}

		b.processChannel(ch, s, side)
	}

	return nil
}

// Prepare loads the per-block gain law and coefficients. It must precede
// ProcessChannel calls for a block.
func (b *CompressorBank) Prepare(params Params, sampleRate float64, hopSize int) error {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 1) || hopSize <= 0 {
		return ErrInvalidFrameRate
	}

	frameRate := sampleRate / float64(hopSize)

	b.follower.SetTimes(params.AttackMs, params.ReleaseMs, frameRate)
	b.curve = CurveFromParams(params)
	b.targetCoeff = TimeConstantCoefficient(b.targetSmoothingMs, frameRate)

	return nil
}

// ProcessChannel compresses one channel of a block prepared with Prepare.
// sidechain may be nil. Distinct channels may run on separate goroutines.
func (b *CompressorBank) ProcessChannel(ch int, spec, sidechain []complex128) error {
	if ch < 0 || ch >= b.channels {
		return ErrChannelIndex
	}

	if len(spec) != b.bins || (sidechain != nil && len(sidechain) != b.bins) {
		return ErrBinMismatch
	}

	b.processChannel(ch, spec, sidechain)

	return nil
}

func (b *CompressorBank) processChannel(ch int, spec, sidechain []complex128) {
	lo, hi := ch*b.bins, (ch+1)*b.bins

	mags := b.magnitudes[lo:hi]
	re := b.re[lo:hi]
	im := b.im[lo:hi]
	spectrum.MagnitudeInto(mags, re, im, spec)

	var side []float64
	if sidechain != nil {
		side = b.sideMags[lo:hi]
		spectrum.MagnitudeInto(side, re, im, sidechain)
	}

	scratchLen := b.estimator.ScratchLen()
	targets := b.targets[lo:hi]
	b.estimator.Estimate(targets, mags, side, b.prefix[ch*scratchLen:(ch+1)*scratchLen])
	b.smoothTargets(ch, targets)

	env := b.envelopes[lo:hi]
	b.follower.ProcessBlock(env, mags)

	gains := b.gains[lo:hi]
	m := channelMetrics{minGain: 1, maxGain: 1}

	if b.curve.Disengaged() {
		for k := range gains {
			gains[k] = 1
		}

		b.metrics[ch] = m

		return
	}

	for k, x := range spec {
		g := b.curve.Gain(env[k], targets[k])
		gains[k] = g

		if g != 1 {
			spec[k] = complex(real(x)*g, imag(x)*g)
		}

		m.minGain = math.Min(m.minGain, g)
		m.maxGain = math.Max(m.maxGain, g)
	}

	b.metrics[ch] = m
}

func (b *CompressorBank) smoothTargets(ch int, targets []float64) {
	if b.targetCoeff == 0 {
		return
	}

	history := b.targetHistory[ch*b.bins : (ch+1)*b.bins]

	if !b.targetPrimed[ch] {
		copy(history, targets)
		b.targetPrimed[ch] = true

		return
	}

	c := b.targetCoeff
	for k, t := range targets {
		s := core.FlushDenormals(c*history[k] + (1-c)*t)
		history[k] = s
		targets[k] = s
	}
}

func (b *CompressorBank) clearTargetHistory() {
	core.Zero(b.targetHistory)

	for i := range b.targetPrimed {
		b.targetPrimed[i] = false
	}
}

func (b *CompressorBank) resetMetrics() {
	for i := range b.metrics {
		b.metrics[i] = channelMetrics{minGain: 1, maxGain: 1}
	}
}
