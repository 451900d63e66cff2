package effects

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-speccomp/dsp/core"
	"github.com/cwbudde/algo-speccomp/dsp/delay"
	"github.com/cwbudde/algo-speccomp/dsp/effects/dynamics"
	"github.com/cwbudde/algo-speccomp/dsp/stft"
	"github.com/cwbudde/algo-speccomp/dsp/window"
	"github.com/cwbudde/algo-vecmath"
)

const (
	defaultSpectralCompressorFFTSize = 2048
	defaultSpectralCompressorOverlap = 4

	minSpectralCompressorGainDB  = -50.0
	maxSpectralCompressorGainDB  = 50.0
	maxSpectralCompressorOverlap = 32
)

// SpectralCompressorOption mutates spectral compressor construction parameters.
type SpectralCompressorOption func(*spectralCompressorConfig) error

type spectralCompressorConfig struct {
	processor         core.ProcessorConfig
	windowType        window.Type
	targetMode        dynamics.TargetMode
	smoothingFraction int
	sidechainChannels int
	paramSmoothingMs  float64
	params            dynamics.Params
}

func defaultSpectralCompressorConfig(sampleRate float64, channels int) spectralCompressorConfig {
	return spectralCompressorConfig{
		processor: core.ApplyProcessorOptions(
			core.WithSampleRate(sampleRate),
			core.WithChannels(channels),
			core.WithFFTSize(defaultSpectralCompressorFFTSize),
			core.WithOverlap(defaultSpectralCompressorOverlap),
		),
		windowType:        window.TypeHann,
		targetMode:        dynamics.TargetBroadband,
		smoothingFraction: 3,
		paramSmoothingMs:  20,
		params:            dynamics.DefaultParams(),
	}
}

// WithSpectralCompressorFFTSize sets the STFT frame length. Must be a power of
// two in [stft.MinFFTSize, stft.MaxFFTSize].
func WithSpectralCompressorFFTSize(size int) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		if size < stft.MinFFTSize || size > stft.MaxFFTSize || size&(size-1) != 0 {
			return fmt.Errorf("spectral compressor fft size must be a power of two in [%d, %d]: %d",
				stft.MinFFTSize, stft.MaxFFTSize, size)
		}

		core.WithFFTSize(size)(&cfg.processor)

		return nil
	}
}

// WithSpectralCompressorOverlap sets how many frames overlap each sample. Must
// be a power of two in [1, 32].
func WithSpectralCompressorOverlap(overlap int) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		if overlap < 1 || overlap > maxSpectralCompressorOverlap || overlap&(overlap-1) != 0 {
			return fmt.Errorf("spectral compressor overlap must be a power of two in [1, %d]: %d",
				maxSpectralCompressorOverlap, overlap)
		}

		core.WithOverlap(overlap)(&cfg.processor)

		return nil
	}
}

// WithSpectralCompressorBlockSize sets the expected host block size. Larger
// blocks are accepted but grow internal scratch on first use.
func WithSpectralCompressorBlockSize(size int) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		if size <= 0 {
			return fmt.Errorf("spectral compressor block size must be > 0: %d", size)
		}

		core.WithBlockSize(size)(&cfg.processor)

		return nil
	}
}

// WithSpectralCompressorWindow sets the analysis/synthesis window.
func WithSpectralCompressorWindow(t window.Type) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		if window.Info(t).Name == "" {
			return fmt.Errorf("spectral compressor window type invalid: %d", t)
		}

		cfg.windowType = t

		return nil
	}
}

// WithSpectralCompressorTargetMode sets how the per-bin reference level is
// derived.
func WithSpectralCompressorTargetMode(mode dynamics.TargetMode) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		if !mode.Valid() {
			return fmt.Errorf("spectral compressor target mode invalid: %d", mode)
		}

		cfg.targetMode = mode

		return nil
	}
}

// WithSpectralCompressorSmoothingFraction sets the 1/N-octave resolution of
// the smoothed target mode.
func WithSpectralCompressorSmoothingFraction(fraction int) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		if fraction <= 0 {
			return fmt.Errorf("spectral compressor smoothing fraction must be > 0: %d", fraction)
		}

		cfg.smoothingFraction = fraction

		return nil
	}
}

// WithSpectralCompressorSidechain enables a sidechain input with the given
// channel count: 1 (shared key) or the main channel count.
func WithSpectralCompressorSidechain(channels int) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		if channels < 0 {
			return fmt.Errorf("spectral compressor sidechain channels must be >= 0: %d", channels)
		}

		cfg.sidechainChannels = channels

		return nil
	}
}

// WithSpectralCompressorParamSmoothing sets the knob smoothing time in ms.
func WithSpectralCompressorParamSmoothing(ms float64) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		if ms < 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
			return fmt.Errorf("spectral compressor param smoothing must be >= 0: %f", ms)
		}

		cfg.paramSmoothingMs = ms

		return nil
	}
}

// WithSpectralCompressorParams sets the initial knob values.
func WithSpectralCompressorParams(p dynamics.Params) SpectralCompressorOption {
	return func(cfg *spectralCompressorConfig) error {
		err := p.Validate()
		if err != nil {
			return fmt.Errorf("spectral compressor: %w", err)
		}

		cfg.params = p

		return nil
	}
}

// SpectralCompressor is a streaming multi-channel spectral compressor: an
// STFT front end feeding a dynamics.CompressorBank, with input/output gain,
// latency-compensated dry/wet mix and bypass.
//
// Knob setters, gain, mix and bypass may be called from any goroutine; the
// processing goroutine reads them once per block without locking.
// ProcessInPlace, ProcessSidechainInPlace, Reset, SetSampleRate and Metrics
// must be called from a single goroutine. Processing does not allocate as
// long as blocks are no longer than the configured block size.
type SpectralCompressor struct {
	sampleRate        float64
	channels          int
	sidechainChannels int
	fftSize           int
	overlap           int
	windowType        window.Type

	engine   *stft.STFT
	bank     *dynamics.CompressorBank
	store    *dynamics.ParamStore
	smoother *dynamics.ParamSmoother

	dryLines []*delay.Line
	dry      [][]float64

	inputGainDB  atomicFloat64
	outputGainDB atomicFloat64
	mix          atomicFloat64
	bypass       atomic.Bool

	// Processing goroutine state.
	bypassed   bool
	target     dynamics.Params
	haveSide   bool
	spectrumFn stft.SpectrumFunc
}

// NewSpectralCompressor creates a spectral compressor for the given sample
// rate and channel count.
func NewSpectralCompressor(sampleRate float64, channels int, opts ...SpectralCompressorOption) (*SpectralCompressor, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("spectral compressor sample rate must be positive and finite: %f", sampleRate)
	}

	if channels <= 0 {
		return nil, fmt.Errorf("spectral compressor channels must be > 0: %d", channels)
	}

	cfg := defaultSpectralCompressorConfig(sampleRate, channels)
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		err := opt(&cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.sidechainChannels != 0 && cfg.sidechainChannels != 1 && cfg.sidechainChannels != channels {
		return nil, fmt.Errorf("spectral compressor sidechain channels must be 0, 1 or %d: %d",
			channels, cfg.sidechainChannels)
	}

	if cfg.processor.Overlap > cfg.processor.FFTSize {
		return nil, fmt.Errorf("spectral compressor overlap %d exceeds fft size %d",
			cfg.processor.Overlap, cfg.processor.FFTSize)
	}

	engine, err := stft.New(cfg.processor.FFTSize, cfg.processor.HopSize(), channels,
		stft.WithWindow(cfg.windowType),
		stft.WithSidechainChannels(cfg.sidechainChannels))
	if err != nil {
		return nil, fmt.Errorf("spectral compressor: %w", err)
	}

	bank, err := dynamics.NewCompressorBank(sampleRate, cfg.processor.FFTSize, channels)
	if err != nil {
		return nil, fmt.Errorf("spectral compressor: %w", err)
	}

	err = bank.SetSmoothingFraction(cfg.smoothingFraction)
	if err != nil {
		return nil, fmt.Errorf("spectral compressor: %w", err)
	}

	err = bank.SetTargetMode(cfg.targetMode)
	if err != nil {
		return nil, fmt.Errorf("spectral compressor: %w", err)
	}

	smoother, err := dynamics.NewParamSmoother(cfg.paramSmoothingMs)
	if err != nil {
		return nil, fmt.Errorf("spectral compressor: %w", err)
	}

	s := &SpectralCompressor{
		sampleRate:        sampleRate,
		channels:          channels,
		sidechainChannels: cfg.sidechainChannels,
		fftSize:           cfg.processor.FFTSize,
		overlap:           cfg.processor.Overlap,
		windowType:        cfg.windowType,
		engine:            engine,
		bank:              bank,
		store:             dynamics.NewParamStore(cfg.params),
		smoother:          smoother,
		dryLines:          make([]*delay.Line, channels),
		dry:               make([][]float64, channels),
	}

	for ch := range channels {
		line, err := delay.New(engine.Latency())
		if err != nil {
			return nil, fmt.Errorf("spectral compressor: %w", err)
		}

		s.dryLines[ch] = line
		s.dry[ch] = make([]float64, cfg.processor.BlockSize)
	}

	s.mix.Store(1)
	s.spectrumFn = s.processSpectra
	s.smoother.Reset(s.store.Load())

	return s, nil
}

// SampleRate returns the sample rate in Hz.
func (s *SpectralCompressor) SampleRate() float64 { return s.sampleRate }

// Channels returns the main channel count.
func (s *SpectralCompressor) Channels() int { return s.channels }

// SidechainChannels returns the sidechain channel count (0 when disabled).
func (s *SpectralCompressor) SidechainChannels() int { return s.sidechainChannels }

// FFTSize returns the STFT frame length.
func (s *SpectralCompressor) FFTSize() int { return s.fftSize }

// Overlap returns the STFT overlap factor.
func (s *SpectralCompressor) Overlap() int { return s.overlap }

// HopSize returns the STFT hop in samples.
func (s *SpectralCompressor) HopSize() int { return s.engine.HopSize() }

// WindowType returns the STFT window.
func (s *SpectralCompressor) WindowType() window.Type { return s.windowType }

// TargetMode returns the target estimation mode.
func (s *SpectralCompressor) TargetMode() dynamics.TargetMode { return s.bank.TargetMode() }

// Latency returns the processing delay in samples.
func (s *SpectralCompressor) Latency() int { return s.engine.Latency() }

// Params returns the latest knob values.
func (s *SpectralCompressor) Params() dynamics.Params { return s.store.Load() }

// InputGainDB returns the input gain in dB.
func (s *SpectralCompressor) InputGainDB() float64 { return s.inputGainDB.Load() }

// OutputGainDB returns the output gain in dB.
func (s *SpectralCompressor) OutputGainDB() float64 { return s.outputGainDB.Load() }

// Mix returns the wet/dry mix in [0, 1].
func (s *SpectralCompressor) Mix() float64 { return s.mix.Load() }

// Bypassed reports whether bypass is requested.
func (s *SpectralCompressor) Bypassed() bool { return s.bypass.Load() }

// Metrics returns compressor bank metering for the most recent frame.
func (s *SpectralCompressor) Metrics() dynamics.Metrics { return s.bank.Metrics() }

// SetParams validates and publishes all six knobs at once.
func (s *SpectralCompressor) SetParams(p dynamics.Params) error {
	return s.store.Store(p)
}

// SetDownwardThreshold sets the downward threshold offset in dB relative to
// the target curve.
func (s *SpectralCompressor) SetDownwardThreshold(dB float64) error {
	return s.store.Update(func(p *dynamics.Params) { p.DownwardThresholdDB = dB })
}

// SetUpwardThreshold sets the upward threshold offset in dB relative to the
// target curve.
func (s *SpectralCompressor) SetUpwardThreshold(dB float64) error {
	return s.store.Update(func(p *dynamics.Params) { p.UpwardThresholdDB = dB })
}

// SetDownwardRatio sets the downward ratio. 1 disengages downward compression.
func (s *SpectralCompressor) SetDownwardRatio(ratio float64) error {
	return s.store.Update(func(p *dynamics.Params) { p.DownwardRatio = ratio })
}

// SetUpwardRatio sets the upward ratio. 1 disengages upward compression.
func (s *SpectralCompressor) SetUpwardRatio(ratio float64) error {
	return s.store.Update(func(p *dynamics.Params) { p.UpwardRatio = ratio })
}

// SetAttack sets the attack time in ms.
func (s *SpectralCompressor) SetAttack(ms float64) error {
	return s.store.Update(func(p *dynamics.Params) { p.AttackMs = ms })
}

// SetRelease sets the release time in ms.
func (s *SpectralCompressor) SetRelease(ms float64) error {
	return s.store.Update(func(p *dynamics.Params) { p.ReleaseMs = ms })
}

// SetInputGainDB sets the gain applied before analysis. Range: [-50, 50].
func (s *SpectralCompressor) SetInputGainDB(dB float64) error {
	if dB < minSpectralCompressorGainDB || dB > maxSpectralCompressorGainDB || !core.IsFinite(dB) {
		return fmt.Errorf("spectral compressor input gain must be in [%f, %f]: %f",
			minSpectralCompressorGainDB, maxSpectralCompressorGainDB, dB)
	}

	s.inputGainDB.Store(dB)

	return nil
}

// SetOutputGainDB sets the gain applied to the wet signal. Range: [-50, 50].
func (s *SpectralCompressor) SetOutputGainDB(dB float64) error {
	if dB < minSpectralCompressorGainDB || dB > maxSpectralCompressorGainDB || !core.IsFinite(dB) {
		return fmt.Errorf("spectral compressor output gain must be in [%f, %f]: %f",
			minSpectralCompressorGainDB, maxSpectralCompressorGainDB, dB)
	}

	s.outputGainDB.Store(dB)

	return nil
}

// SetMix sets the wet/dry mix in [0, 1]. The dry path is delayed by Latency
// so both paths stay aligned.
func (s *SpectralCompressor) SetMix(mix float64) error {
	if mix < 0 || mix > 1 || !core.IsFinite(mix) {
		return fmt.Errorf("spectral compressor mix must be in [0, 1]: %f", mix)
	}

	s.mix.Store(mix)

	return nil
}

// SetBypass requests bypass. The output is then the latency-compensated
// input. Toggling bypass clears the compressor envelopes on the next block.
func (s *SpectralCompressor) SetBypass(bypass bool) {
	s.bypass.Store(bypass)
}

// SetTargetMode switches target estimation. Not safe during processing.
func (s *SpectralCompressor) SetTargetMode(mode dynamics.TargetMode) error {
	return s.bank.SetTargetMode(mode)
}

// SetTargetSmoothing sets cross-frame target smoothing in ms. Not safe during
// processing.
func (s *SpectralCompressor) SetTargetSmoothing(ms float64) error {
	return s.bank.SetTargetSmoothing(ms)
}

// SetSampleRate updates the sample rate and clears all state. Not safe during
// processing.
func (s *SpectralCompressor) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("spectral compressor sample rate must be positive and finite: %f", sampleRate)
	}

	err := s.bank.Initialize(sampleRate, s.fftSize, s.channels)
	if err != nil {
		return err
	}

	s.sampleRate = sampleRate
	s.Reset()

	return nil
}

// Reset clears STFT buffers, envelopes and the dry delay.
func (s *SpectralCompressor) Reset() {
	s.engine.Reset()
	s.bank.Reset()

	for _, line := range s.dryLines {
		line.Reset()
	}

	s.smoother.Reset(s.store.Load())
}

// ProcessInPlace compresses one block of every channel in place. The output
// is delayed by Latency samples.
func (s *SpectralCompressor) ProcessInPlace(buf [][]float64) error {
	return s.ProcessSidechainInPlace(buf, nil)
}

// ProcessSidechainInPlace is ProcessInPlace with a sidechain block. side may
// be nil, in which case target estimation falls back to broadband for this
// block.
func (s *SpectralCompressor) ProcessSidechainInPlace(buf, side [][]float64) error {
	if len(buf) != s.channels {
		return stft.ErrChannelMismatch
	}

	if side != nil && len(side) != s.sidechainChannels {
		return stft.ErrChannelMismatch
	}

	n := len(buf[0])
	for _, ch := range buf {
		if len(ch) != n {
			return stft.ErrLengthMismatch
		}
	}

	for _, ch := range side {
		if len(ch) != n {
			return stft.ErrLengthMismatch
		}
	}

	bypass := s.bypass.Load()
	if bypass != s.bypassed {
		s.bypassed = bypass
		s.bank.Reset()
	}

	inGain := core.DBToLinear(s.inputGainDB.Load())
	outGain := core.DBToLinear(s.outputGainDB.Load())
	mix := s.mix.Load()

	for ch, x := range buf {
		s.dry[ch] = core.EnsureLen(s.dry[ch], n)
		copy(s.dry[ch], x)
		s.dryLines[ch].ProcessInPlace(s.dry[ch])

		if !bypass && inGain != 1 {
			vecmath.ScaleBlock(x, x, inGain)
		}
	}

	s.target = s.store.Load()
	s.haveSide = side != nil

	fn := s.spectrumFn
	if bypass {
		fn = nil
	}

	err := s.engine.Process(buf, side, fn)
	if err != nil {
		return err
	}

	for ch, x := range buf {
		dry := s.dry[ch]

		if bypass {
			copy(x, dry)
			continue
		}

		wet := outGain * mix
		dryGain := 1 - mix

		for i := range x {
			x[i] = wet*x[i] + dryGain*dry[i]
		}
	}

	return nil
}

func (s *SpectralCompressor) processSpectra(main, side [][]complex128) error {
	hop := s.engine.HopSize()
	params := s.smoother.Next(s.target, s.engine.HopRate(s.sampleRate))

	if !s.haveSide {
		side = nil
	}

	return s.bank.ProcessSidechain(main, side, params, s.sampleRate, hop)
}

type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 { return math.Float64frombits(a.bits.Load()) }

func (a *atomicFloat64) Store(v float64) { a.bits.Store(math.Float64bits(v)) }
