package core

// ProcessorConfig defines common spectral processing settings.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int
	FFTSize    int
	Overlap    int
	Channels   int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns sensible defaults for offline and streaming use.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 48000,
		BlockSize:  1024,
		FFTSize:    2048,
		Overlap:    4,
		Channels:   2,
	}
}

// HopSize returns the STFT hop implied by FFTSize and Overlap.
func (c ProcessorConfig) HopSize() int {
	if c.Overlap <= 0 {
		return c.FFTSize
	}

	return max(c.FFTSize/c.Overlap, 1)
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the processing block size.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// WithFFTSize sets the STFT frame length. Non-positive values are ignored;
// power-of-two validation is left to the consumer.
func WithFFTSize(size int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if size > 0 {
			cfg.FFTSize = size
		}
	}
}

// WithOverlap sets how many frames overlap each sample (FFTSize / hop).
func WithOverlap(overlap int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if overlap > 0 {
			cfg.Overlap = overlap
		}
	}
}

// WithChannels sets the channel count.
func WithChannels(channels int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if channels > 0 {
			cfg.Channels = channels
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
