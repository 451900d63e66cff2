package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-speccomp/dsp/buffer"
	"github.com/cwbudde/algo-speccomp/dsp/effects"
	"github.com/cwbudde/algo-speccomp/dsp/effects/dynamics"
	"github.com/cwbudde/algo-speccomp/dsp/window"
	"github.com/cwbudde/algo-speccomp/internal/wavio"
	"github.com/sirupsen/logrus"
)

const debugBlockInterval = 100

// RenderConfig holds everything needed to render one file.
type RenderConfig struct {
	Params            dynamics.Params
	FFTSize           int
	Overlap           int
	BlockSize         int
	Window            window.Type
	Target            dynamics.TargetMode
	SmoothingFraction int
	TargetSmoothingMs float64
	InputGainDB       float64
	OutputGainDB      float64
	Mix               float64
}

// RenderReport summarizes a render.
type RenderReport struct {
	Frames           int
	Blocks           int
	Latency          int
	InputPeak        float64
	OutputPeak       float64
	MaxAttenuationDB float64
	MaxBoostDB       float64
}

// Render compresses in and returns a signal of the same length, shape and
// bit depth. The compressor latency is flushed and removed so the output is
// time-aligned with the input. side is an optional sidechain signal with the
// same sample rate as in and either one channel or as many as in.
func Render(in, side *wavio.Audio, cfg RenderConfig, log *logrus.Entry) (*wavio.Audio, RenderReport, error) {
	var report RenderReport

	if in == nil || len(in.Channels) == 0 {
		return nil, report, errors.New("render: input has no channels")
	}

	if cfg.BlockSize <= 0 {
		return nil, report, fmt.Errorf("render: block size must be > 0: %d", cfg.BlockSize)
	}

	opts := []effects.SpectralCompressorOption{
		effects.WithSpectralCompressorFFTSize(cfg.FFTSize),
		effects.WithSpectralCompressorOverlap(cfg.Overlap),
		effects.WithSpectralCompressorBlockSize(cfg.BlockSize),
		effects.WithSpectralCompressorWindow(cfg.Window),
		effects.WithSpectralCompressorTargetMode(cfg.Target),
		effects.WithSpectralCompressorSmoothingFraction(cfg.SmoothingFraction),
		effects.WithSpectralCompressorParams(cfg.Params),
		// Offline rendering applies the knobs from the first frame.
		effects.WithSpectralCompressorParamSmoothing(0),
	}

	if side != nil {
		if side.SampleRate != in.SampleRate {
			return nil, report, fmt.Errorf("render: sidechain sample rate %d does not match input %d",
				side.SampleRate, in.SampleRate)
		}

		opts = append(opts, effects.WithSpectralCompressorSidechain(len(side.Channels)))
	}

	comp, err := effects.NewSpectralCompressor(float64(in.SampleRate), len(in.Channels), opts...)
	if err != nil {
		return nil, report, fmt.Errorf("render: %w", err)
	}

	err = errors.Join(
		comp.SetInputGainDB(cfg.InputGainDB),
		comp.SetOutputGainDB(cfg.OutputGainDB),
		comp.SetMix(cfg.Mix),
		comp.SetTargetSmoothing(cfg.TargetSmoothingMs),
	)
	if err != nil {
		return nil, report, fmt.Errorf("render: %w", err)
	}

	frames := in.Frames()
	latency := comp.Latency()
	total := frames + latency

	out := &wavio.Audio{
		SampleRate: in.SampleRate,
		BitDepth:   in.BitDepth,
		Channels:   make([][]float64, len(in.Channels)),
	}
	for ch := range out.Channels {
		out.Channels[ch] = make([]float64, frames)
	}

	log.WithFields(logrus.Fields{
		"function":    "Render",
		"frames":      frames,
		"channels":    len(in.Channels),
		"sample_rate": in.SampleRate,
		"fft_size":    comp.FFTSize(),
		"hop_size":    comp.HopSize(),
		"latency":     latency,
		"target":      comp.TargetMode().String(),
		"sidechain":   side != nil,
	}).Debug("Starting render")

	pool := buffer.NewPool()

	for start := 0; start < total; start += cfg.BlockSize {
		n := min(cfg.BlockSize, total-start)

		block := pool.Get(len(in.Channels), n)
		block.Load(in.Channels, start)
		report.InputPeak = math.Max(report.InputPeak, peak(block.Channels()))

		var sideBlock *buffer.Block
		var sideChannels [][]float64
		if side != nil {
			sideBlock = pool.Get(len(side.Channels), n)
			sideBlock.Load(side.Channels, start)
			sideChannels = sideBlock.Channels()
		}

		err := comp.ProcessSidechainInPlace(block.Channels(), sideChannels)
		if err != nil {
			return nil, report, fmt.Errorf("render: block at frame %d: %w", start, err)
		}

		block.Store(out.Channels, start-latency)

		m := comp.Metrics()
		report.MaxAttenuationDB = math.Max(report.MaxAttenuationDB, m.MaxAttenuationDB)
		report.MaxBoostDB = math.Max(report.MaxBoostDB, m.MaxBoostDB)

		if report.Blocks%debugBlockInterval == 0 {
			log.WithFields(logrus.Fields{
				"block":          report.Blocks,
				"frame":          start,
				"attenuation_db": m.MaxAttenuationDB,
				"boost_db":       m.MaxBoostDB,
			}).Debug("Rendered block")
		}

		report.Blocks++

		pool.Put(block)
		pool.Put(sideBlock)
	}

	report.Frames = frames
	report.Latency = latency
	report.OutputPeak = peak(out.Channels)

	return out, report, nil
}

func peak(channels [][]float64) float64 {
	var p float64
	for _, data := range channels {
		for _, v := range data {
			p = math.Max(p, math.Abs(v))
		}
	}

	return p
}
