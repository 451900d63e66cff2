package main

import (
	"io"
	"math"
	"testing"

	"github.com/cwbudde/algo-speccomp/dsp/effects/dynamics"
	"github.com/cwbudde/algo-speccomp/dsp/window"
	"github.com/cwbudde/algo-speccomp/internal/testutil"
	"github.com/cwbudde/algo-speccomp/internal/wavio"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenderConfig() RenderConfig {
	return RenderConfig{
		Params:            dynamics.DefaultParams(),
		FFTSize:           1024,
		Overlap:           4,
		BlockSize:         300,
		Window:            window.TypeHann,
		Target:            dynamics.TargetBroadband,
		SmoothingFraction: 3,
		Mix:               1,
	}
}

func discardLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logrus.NewEntry(logger)
}

func rmsOf(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(x)))
}

func TestRenderTransparentAtUnity(t *testing.T) {
	in := &wavio.Audio{
		SampleRate: 48000,
		BitDepth:   16,
		Channels: [][]float64{
			testutil.DeterministicNoise(1, 0.5, 5000),
			testutil.DeterministicSine(220, 48000, 0.7, 5000),
		},
	}

	out, report, err := Render(in, nil, testRenderConfig(), discardLog())
	require.NoError(t, err)

	assert.Equal(t, 5000, report.Frames)
	assert.Equal(t, 1024, report.Latency)
	assert.Equal(t, (5000+1024+299)/300, report.Blocks)
	assert.Equal(t, in.BitDepth, out.BitDepth)

	for ch := range in.Channels {
		testutil.RequireSliceNearlyEqual(t, out.Channels[ch], in.Channels[ch], 1e-9)
	}

	assert.InDelta(t, report.InputPeak, report.OutputPeak, 1e-9)
	assert.Zero(t, report.MaxAttenuationDB)
}

func TestRenderCompressesTonalPeak(t *testing.T) {
	sine := testutil.DeterministicSine(1000, 48000, 0.5, 20000)
	noise := testutil.DeterministicNoise(3, 0.01, 20000)
	for i := range sine {
		sine[i] += noise[i]
	}

	in := &wavio.Audio{SampleRate: 48000, BitDepth: 16, Channels: [][]float64{sine}}

	cfg := testRenderConfig()
	cfg.Params.DownwardRatio = 8
	cfg.Params.AttackMs = 0

	out, report, err := Render(in, nil, cfg, discardLog())
	require.NoError(t, err)

	testutil.RequireFinite(t, out.Channels[0])
	assert.Greater(t, report.MaxAttenuationDB, 6.0)
	assert.Less(t, rmsOf(out.Channels[0][4096:]), 0.8*rmsOf(in.Channels[0][4096:]))
}

func TestRenderMonoSidechainForStereo(t *testing.T) {
	in := &wavio.Audio{
		SampleRate: 48000,
		BitDepth:   16,
		Channels: [][]float64{
			testutil.DeterministicNoise(4, 0.3, 4000),
			testutil.DeterministicNoise(5, 0.3, 4000),
		},
	}
	side := &wavio.Audio{SampleRate: 48000, BitDepth: 16, Channels: [][]float64{testutil.DeterministicNoise(6, 0.3, 3000)}}

	cfg := testRenderConfig()
	cfg.Target = dynamics.TargetSidechain
	cfg.Params.DownwardRatio = 4

	out, _, err := Render(in, side, cfg, discardLog())
	require.NoError(t, err)
	assert.Len(t, out.Channels, 2)
}

func TestRenderErrors(t *testing.T) {
	in := &wavio.Audio{SampleRate: 48000, BitDepth: 16, Channels: [][]float64{make([]float64, 100)}}

	tests := []struct {
		name   string
		in     *wavio.Audio
		side   *wavio.Audio
		mutate func(*RenderConfig)
	}{
		{"nil input", nil, nil, func(*RenderConfig) {}},
		{"zero block size", in, nil, func(c *RenderConfig) { c.BlockSize = 0 }},
		{"bad fft size", in, nil, func(c *RenderConfig) { c.FFTSize = 1000 }},
		{"bad mix", in, nil, func(c *RenderConfig) { c.Mix = 2 }},
		{"bad gain", in, nil, func(c *RenderConfig) { c.OutputGainDB = 90 }},
		{"sidechain rate", in, &wavio.Audio{SampleRate: 44100, BitDepth: 16, Channels: [][]float64{make([]float64, 100)}}, func(*RenderConfig) {}},
		{"sidechain channels", in, &wavio.Audio{SampleRate: 48000, BitDepth: 16, Channels: [][]float64{{0}, {0}, {0}}}, func(*RenderConfig) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testRenderConfig()
			tt.mutate(&cfg)

			_, _, err := Render(tt.in, tt.side, cfg, discardLog())
			assert.Error(t, err)
		})
	}
}
