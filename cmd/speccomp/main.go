// Command speccomp renders a WAV file through the spectral compressor.
//
// Usage:
//
//	speccomp [flags] <input.wav> <output.wav>
//
// Examples:
//
//	speccomp --downward-ratio 4 --downward-threshold=-6 in.wav out.wav
//	speccomp --target smoothed --upward-ratio 2 --upward-threshold=-20 in.wav out.wav
//	speccomp --target sidechain --sidechain key.wav --downward-ratio 8 in.wav out.wav
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cwbudde/algo-speccomp/dsp/effects/dynamics"
	"github.com/cwbudde/algo-speccomp/dsp/window"
	"github.com/cwbudde/algo-speccomp/internal/wavio"
	"github.com/sirupsen/logrus"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Input  string `arg:"" name:"input" help:"Input WAV file" type:"existingfile"`
	Output string `arg:"" name:"output" help:"Output WAV file" type:"path"`

	DownwardThreshold float64 `name:"downward-threshold" help:"Downward threshold in dB relative to the target curve" default:"0"`
	UpwardThreshold   float64 `name:"upward-threshold" help:"Upward threshold in dB relative to the target curve" default:"0"`
	DownwardRatio     float64 `name:"downward-ratio" help:"Downward ratio (1 disables)" default:"1"`
	UpwardRatio       float64 `name:"upward-ratio" help:"Upward ratio (1 disables)" default:"1"`
	Attack            float64 `name:"attack" help:"Attack time in ms" default:"150"`
	Release           float64 `name:"release" help:"Release time in ms" default:"300"`

	FFTSize           int     `name:"fft-size" help:"STFT frame length (power of two)" default:"2048"`
	Overlap           int     `name:"overlap" help:"STFT overlap factor (power of two)" default:"4"`
	Window            string  `name:"window" help:"STFT window" enum:"hann,sqrt-hann,hamming,blackman,tukey,rectangular" default:"hann"`
	Target            string  `name:"target" help:"Target curve mode" enum:"broadband,smoothed,sidechain" default:"broadband"`
	SmoothingFraction int     `name:"smoothing-fraction" help:"1/N octave resolution of the smoothed target" default:"3"`
	TargetSmoothing   float64 `name:"target-smoothing" help:"Target smoothing time in ms (0 disables)" default:"0"`
	Sidechain         string  `name:"sidechain" help:"Sidechain WAV file" type:"existingfile"`

	InputGain  float64 `name:"input-gain" help:"Input gain in dB" default:"0"`
	OutputGain float64 `name:"output-gain" help:"Output gain in dB" default:"0"`
	Mix        float64 `name:"mix" help:"Wet/dry mix in [0, 1]" default:"1"`
	BlockSize  int     `name:"block-size" help:"Render block size in frames" default:"1024"`
	BitDepth   int     `name:"bit-depth" help:"Output bit depth (0 keeps the input depth)" default:"0"`

	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `help:"Show version information"`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("speccomp"),
		kong.Description("Offline spectral compressor renderer"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)

	logger := newLogger(cli.Verbose, os.Stderr)

	err := run(cli, logger)
	ctx.FatalIfErrorf(err)
}

func newLogger(verbose bool, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// renderConfig maps CLI flags onto a RenderConfig.
func (c *CLI) renderConfig() (RenderConfig, error) {
	windowType, err := window.ParseType(c.Window)
	if err != nil {
		return RenderConfig{}, err
	}

	target, err := dynamics.ParseTargetMode(c.Target)
	if err != nil {
		return RenderConfig{}, err
	}

	params := dynamics.Params{
		DownwardThresholdDB: c.DownwardThreshold,
		UpwardThresholdDB:   c.UpwardThreshold,
		DownwardRatio:       c.DownwardRatio,
		UpwardRatio:         c.UpwardRatio,
		AttackMs:            c.Attack,
		ReleaseMs:           c.Release,
	}

	err = params.Validate()
	if err != nil {
		return RenderConfig{}, err
	}

	return RenderConfig{
		Params:            params,
		FFTSize:           c.FFTSize,
		Overlap:           c.Overlap,
		BlockSize:         c.BlockSize,
		Window:            windowType,
		Target:            target,
		SmoothingFraction: c.SmoothingFraction,
		TargetSmoothingMs: c.TargetSmoothing,
		InputGainDB:       c.InputGain,
		OutputGainDB:      c.OutputGain,
		Mix:               c.Mix,
	}, nil
}

func run(c *CLI, logger *logrus.Logger) error {
	cfg, err := c.renderConfig()
	if err != nil {
		return err
	}

	if cfg.Target == dynamics.TargetSidechain && c.Sidechain == "" {
		logger.WithFields(logrus.Fields{
			"function": "run",
		}).Warn("Sidechain target without --sidechain falls back to broadband")
	}

	in, err := wavio.ReadFile(c.Input)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"function":    "run",
		"input":       c.Input,
		"sample_rate": in.SampleRate,
		"channels":    len(in.Channels),
		"bit_depth":   in.BitDepth,
		"duration_s":  in.Duration(),
	}).Info("Loaded input")

	var side *wavio.Audio
	if c.Sidechain != "" {
		side, err = wavio.ReadFile(c.Sidechain)
		if err != nil {
			return fmt.Errorf("sidechain: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"function": "run",
			"input":    c.Sidechain,
			"channels": len(side.Channels),
		}).Info("Loaded sidechain")
	}

	started := time.Now()

	out, report, err := Render(in, side, cfg, logger.WithField("input", c.Input))
	if err != nil {
		return err
	}

	if c.BitDepth != 0 {
		out.BitDepth = c.BitDepth
	}

	err = wavio.WriteFile(c.Output, out)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"function":        "run",
		"output":          c.Output,
		"frames":          report.Frames,
		"blocks":          report.Blocks,
		"latency":         report.Latency,
		"input_peak":      report.InputPeak,
		"output_peak":     report.OutputPeak,
		"max_attenuation": report.MaxAttenuationDB,
		"max_boost":       report.MaxBoostDB,
		"elapsed":         time.Since(started).String(),
	}).Info("Render complete")

	return nil
}
