package stft

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-speccomp/dsp/core"
	"github.com/cwbudde/algo-speccomp/dsp/window"
	"github.com/cwbudde/algo-vecmath"
)

const (
	// MinFFTSize is the smallest supported frame length.
	MinFFTSize = 32
	// MaxFFTSize is the largest supported frame length.
	MaxFFTSize = 1 << 16
)

var (
	// ErrChannelMismatch is returned when a block has the wrong channel count.
	ErrChannelMismatch = errors.New("stft: channel count mismatch")
	// ErrLengthMismatch is returned when channels of one block differ in length.
	ErrLengthMismatch = errors.New("stft: channel length mismatch")
)

// SpectrumFunc receives the one-sided spectra of the current frame. main
// holds one slice of fftSize/2+1 bins per processed channel and may be
// modified in place; side holds the sidechain spectra (nil when the STFT has no
// sidechain channels) and must be treated as read-only.
type SpectrumFunc func(main, side [][]complex128) error

// Option configures an STFT.
type Option func(*config)

type config struct {
	windowType   window.Type
	sideChannels int
}

// WithWindow selects the analysis/synthesis window. Default: Hann.
func WithWindow(t window.Type) Option {
	return func(c *config) {
		c.windowType = t
	}
}

// WithSidechainChannels enables n analysis-only sidechain channels.
func WithSidechainChannels(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.sideChannels = n
		}
	}
}

// STFT is a streaming multi-channel analysis/resynthesis engine.
type STFT struct {
	fftSize    int
	hopSize    int
	bins       int
	channels   int
	windowType window.Type

	plan *algofft.Plan[complex128]

	analysisWindow  []float64
	synthesisWindow []float64

	input     [][]float64
	output    [][]float64
	sideInput [][]float64

	frames      [][]complex128
	sideFrames  [][]complex128
	spectra     [][]complex128
	sideSpectra [][]complex128
	timeFrame   []complex128
	grain       []float64

	pos        int
	hopCounter int
}

// New creates an STFT with the given frame length, hop size and channel
// count. fftSize must be a power of two in [MinFFTSize, MaxFFTSize] and hop
// must divide fftSize.
func New(fftSize, hopSize, channels int, opts ...Option) (*STFT, error) {
	cfg := config{windowType: window.TypeHann}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if fftSize < MinFFTSize || fftSize > MaxFFTSize || !isPowerOf2(fftSize) {
		return nil, fmt.Errorf("stft fft size must be a power of two in [%d, %d]: %d", MinFFTSize, MaxFFTSize, fftSize)
	}

	if hopSize <= 0 || hopSize > fftSize || fftSize%hopSize != 0 {
		return nil, fmt.Errorf("stft hop size must divide fft size %d: %d", fftSize, hopSize)
	}

	if channels <= 0 {
		return nil, fmt.Errorf("stft channel count must be > 0: %d", channels)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("stft: failed to create FFT plan: %w", err)
	}

	coeffs := window.Generate(cfg.windowType, fftSize, window.WithPeriodic())

	norm, err := window.OverlapAddNormalization(coeffs, hopSize)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	synthesis := make([]float64, fftSize)
	vecmath.ScaleBlock(synthesis, coeffs, norm)

	s := &STFT{
		fftSize:         fftSize,
		hopSize:         hopSize,
		bins:            fftSize/2 + 1,
		channels:        channels,
		windowType:      cfg.windowType,
		plan:            plan,
		analysisWindow:  coeffs,
		synthesisWindow: synthesis,
		timeFrame:       make([]complex128, fftSize),
		grain:           make([]float64, fftSize),
	}

	s.input, s.frames, s.spectra = s.allocChannels(channels)
	s.output, _, _ = s.allocChannels(channels)

	if cfg.sideChannels > 0 {
		s.sideInput, s.sideFrames, s.sideSpectra = s.allocChannels(cfg.sideChannels)
	}

	return s, nil
}

func (s *STFT) allocChannels(n int) ([][]float64, [][]complex128, [][]complex128) {
	rings := make([][]float64, n)
	frames := make([][]complex128, n)
	views := make([][]complex128, n)

	for ch := range n {
		rings[ch] = make([]float64, s.fftSize)
		frames[ch] = make([]complex128, s.fftSize)
		views[ch] = frames[ch][:s.bins]
	}

	return rings, frames, views
}

// FFTSize returns the frame length in samples.
func (s *STFT) FFTSize() int { return s.fftSize }

// HopSize returns the hop between frames in samples.
func (s *STFT) HopSize() int { return s.hopSize }

// Bins returns the number of one-sided spectrum bins per channel.
func (s *STFT) Bins() int { return s.bins }

// Channels returns the number of resynthesized channels.
func (s *STFT) Channels() int { return s.channels }

// SidechainChannels returns the number of analysis-only channels.
func (s *STFT) SidechainChannels() int { return len(s.sideInput) }

// WindowType returns the analysis/synthesis window type.
func (s *STFT) WindowType() window.Type { return s.windowType }

// Latency returns the input-to-output delay in samples.
func (s *STFT) Latency() int { return s.fftSize }

// HopRate returns the frame rate in Hz at the given sample rate. Envelope
// followers driven once per frame run at this rate.
func (s *STFT) HopRate(sampleRate float64) float64 {
	return sampleRate / float64(s.hopSize)
}

// Reset clears all buffered audio.
func (s *STFT) Reset() {
	for ch := range s.input {
		core.Zero(s.input[ch])
		core.Zero(s.output[ch])
	}

	for ch := range s.sideInput {
		core.Zero(s.sideInput[ch])
	}

	s.pos = 0
	s.hopCounter = 0
}

// Process streams main through the STFT in place. Every hop samples fn is
// called with the spectra of the newest frame. side may be nil, in which case
// sidechain channels see silence. Processing stops at the first error
// returned by fn.
func (s *STFT) Process(main, side [][]float64, fn SpectrumFunc) error {
	if len(main) != s.channels {
		return ErrChannelMismatch
	}

	n := len(main[0])
	for ch := 1; ch < len(main); ch++ {
		if len(main[ch]) != n {
			return ErrLengthMismatch
		}
	}

	if side != nil {
		if len(side) != len(s.sideInput) {
			return ErrChannelMismatch
		}

		for ch := range side {
			if len(side[ch]) != n {
				return ErrLengthMismatch
			}
		}
	}

	for i := range n {
		for ch := range main {
			x := main[ch][i]
			main[ch][i] = s.output[ch][s.pos]
			s.output[ch][s.pos] = 0
			s.input[ch][s.pos] = x
		}

		for ch := range s.sideInput {
			x := 0.0
			if side != nil {
				x = side[ch][i]
			}

			s.sideInput[ch][s.pos] = x
		}

		s.pos++
		if s.pos == s.fftSize {
			s.pos = 0
		}

		s.hopCounter++
		if s.hopCounter < s.hopSize {
			continue
		}

		s.hopCounter = 0

		err := s.processFrame(fn)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *STFT) processFrame(fn SpectrumFunc) error {
	for ch := range s.input {
		err := s.analyze(s.frames[ch], s.input[ch])
		if err != nil {
			return err
		}
	}

	for ch := range s.sideInput {
		err := s.analyze(s.sideFrames[ch], s.sideInput[ch])
		if err != nil {
			return err
		}
	}

	if fn != nil {
		err := fn(s.spectra, s.sideSpectra)
		if err != nil {
			return err
		}
	}

	for ch := range s.output {
		err := s.synthesize(s.output[ch], s.frames[ch])
		if err != nil {
			return err
		}
	}

	return nil
}

// analyze unwraps the ring (oldest sample first), applies the analysis window
// and transforms into frame.
func (s *STFT) analyze(frame []complex128, ring []float64) error {
	head := s.fftSize - s.pos
	copy(s.grain[:head], ring[s.pos:])
	copy(s.grain[head:], ring[:s.pos])

	vecmath.MulBlockInPlace(s.grain, s.analysisWindow)

	for i, v := range s.grain {
		frame[i] = complex(v, 0)
	}

	err := s.plan.Forward(frame, frame)
	if err != nil {
		return fmt.Errorf("stft: forward FFT failed: %w", err)
	}

	return nil
}

// synthesize restores Hermitian symmetry, inverse transforms frame and
// overlap-adds the windowed result into ring aligned with the analysis frame.
func (s *STFT) synthesize(ring []float64, frame []complex128) error {
	half := s.fftSize / 2

	frame[0] = complex(real(frame[0]), 0)
	frame[half] = complex(real(frame[half]), 0)

	for k := 1; k < half; k++ {
		v := frame[k]
		frame[s.fftSize-k] = complex(real(v), -imag(v))
	}

	err := s.plan.Inverse(s.timeFrame, frame)
	if err != nil {
		return fmt.Errorf("stft: inverse FFT failed: %w", err)
	}

	for i, v := range s.timeFrame {
		s.grain[i] = real(v)
	}

	vecmath.MulBlockInPlace(s.grain, s.synthesisWindow)

	head := s.fftSize - s.pos
	vecmath.AddBlockInPlace(ring[s.pos:], s.grain[:head])

	if s.pos > 0 {
		vecmath.AddBlockInPlace(ring[:s.pos], s.grain[head:])
	}

	return nil
}

func isPowerOf2(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
