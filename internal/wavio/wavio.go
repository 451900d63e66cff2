// Package wavio decodes and encodes PCM WAV files as per-channel float64
// buffers in [-1, 1].
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

var (
	// ErrInvalidFile is returned when the input is not a readable WAV file.
	ErrInvalidFile = errors.New("wavio: invalid WAV file")
	// ErrUnsupportedBitDepth is returned for bit depths other than 16, 24 or 32.
	ErrUnsupportedBitDepth = errors.New("wavio: unsupported bit depth")
)

// Audio is a decoded multi-channel signal.
type Audio struct {
	SampleRate int
	BitDepth   int
	Channels   [][]float64
}

// Frames returns the number of samples per channel.
func (a *Audio) Frames() int {
	if len(a.Channels) == 0 {
		return 0
	}

	return len(a.Channels[0])
}

// Duration returns the signal length in seconds.
func (a *Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}

	return float64(a.Frames()) / float64(a.SampleRate)
}

// Validate checks sample rate, bit depth and channel shape.
func (a *Audio) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("wavio: sample rate must be > 0: %d", a.SampleRate)
	}

	if !supportedBitDepth(a.BitDepth) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, a.BitDepth)
	}

	if len(a.Channels) == 0 {
		return errors.New("wavio: audio has no channels")
	}

	n := len(a.Channels[0])
	for ch, data := range a.Channels {
		if len(data) != n {
			return fmt.Errorf("wavio: channel %d has %d samples, want %d", ch, len(data), n)
		}
	}

	return nil
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: could not open file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read decodes a WAV stream.
func Read(r io.ReadSeeker) (*Audio, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidFile
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: could not read PCM buffer: %w", err)
	}

	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, ErrInvalidFile
	}

	bitDepth := int(buf.SourceBitDepth)
	if !supportedBitDepth(bitDepth) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	return &Audio{
		SampleRate: buf.Format.SampleRate,
		BitDepth:   bitDepth,
		Channels:   Deinterleave(buf.Data, buf.Format.NumChannels, bitDepth),
	}, nil
}

// WriteFile encodes a to a new WAV file at path.
func WriteFile(path string, a *Audio) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: output file creation error: %w", err)
	}

	err = Write(f, a)
	if err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// Write encodes a as integer PCM. Samples outside [-1, 1] are clipped.
func Write(w io.WriteSeeker, a *Audio) error {
	err := a.Validate()
	if err != nil {
		return err
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: len(a.Channels),
			SampleRate:  a.SampleRate,
		},
		Data:           Interleave(a.Channels, a.BitDepth),
		SourceBitDepth: a.BitDepth,
	}

	encoder := wav.NewEncoder(w, a.SampleRate, a.BitDepth, len(a.Channels), wavFormatPCM)

	err = encoder.Write(buf)
	if err != nil {
		_ = encoder.Close()
		return fmt.Errorf("wavio: data writing error: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("wavio: could not finalize WAV: %w", err)
	}

	return nil
}

// Deinterleave splits interleaved integer PCM into per-channel float64
// buffers scaled to [-1, 1). A trailing partial frame is dropped.
func Deinterleave(data []int, channels, bitDepth int) [][]float64 {
	if channels <= 0 {
		return nil
	}

	frames := len(data) / channels
	scale := 1 / fullScale(bitDepth)

	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, frames)
	}

	for i := range frames {
		for ch := range channels {
			out[ch][i] = float64(data[i*channels+ch]) * scale
		}
	}

	return out
}

// Interleave quantizes per-channel float64 buffers to interleaved integer
// PCM, rounding to nearest and clipping to the bit depth's range.
func Interleave(channels [][]float64, bitDepth int) []int {
	if len(channels) == 0 {
		return nil
	}

	frames := len(channels[0])
	scale := fullScale(bitDepth)
	hi := scale - 1
	lo := -scale

	out := make([]int, frames*len(channels))
	for i := range frames {
		for ch, data := range channels {
			v := 0.0
			if i < len(data) && !math.IsNaN(data[i]) {
				v = math.Round(data[i] * scale)
			}

			out[i*len(channels)+ch] = int(math.Max(lo, math.Min(hi, v)))
		}
	}

	return out
}

func fullScale(bitDepth int) float64 {
	bitDepth = max(8, min(bitDepth, 32))

	return float64(int64(1) << (bitDepth - 1))
}

func supportedBitDepth(bitDepth int) bool {
	return bitDepth == 16 || bitDepth == 24 || bitDepth == 32
}
