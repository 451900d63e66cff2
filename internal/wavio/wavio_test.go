package wavio

import (
	"bytes"
	"math"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripFile(t *testing.T) {
	for _, bitDepth := range []int{16, 24, 32} {
		t.Run("bits="+strconv.Itoa(bitDepth), func(t *testing.T) {
			in := &Audio{
				SampleRate: 44100,
				BitDepth:   bitDepth,
				Channels: [][]float64{
					{0, 0.5, -0.5, 0.25, -1, 0.999},
					{0.1, -0.1, 0.2, -0.2, 0.3, -0.3},
				},
			}

			path := filepath.Join(t.TempDir(), "roundtrip.wav")
			require.NoError(t, WriteFile(path, in))

			out, err := ReadFile(path)
			require.NoError(t, err)

			assert.Equal(t, 44100, out.SampleRate)
			assert.Equal(t, bitDepth, out.BitDepth)
			require.Len(t, out.Channels, 2)
			assert.Equal(t, 6, out.Frames())

			eps := 1 / fullScale(bitDepth)
			for ch := range in.Channels {
				for i := range in.Channels[ch] {
					assert.InDelta(t, in.Channels[ch][i], out.Channels[ch][i], eps, "ch %d sample %d", ch, i)
				}
			}
		})
	}
}

func TestInterleaveClipsAndRounds(t *testing.T) {
	data := Interleave([][]float64{{2, -2, 0.5, math.NaN()}}, 16)

	assert.Equal(t, []int{32767, -32768, 16384, 0}, data)
}

func TestInterleaveDeinterleaveLayout(t *testing.T) {
	channels := [][]float64{{0.5, 0.25}, {-0.5, -0.25}}

	data := Interleave(channels, 16)
	assert.Equal(t, []int{16384, -16384, 8192, -8192}, data)

	back := Deinterleave(data, 2, 16)
	assert.Equal(t, channels, back)
}

func TestDeinterleaveDropsPartialFrame(t *testing.T) {
	out := Deinterleave([]int{1, 2, 3, 4, 5}, 2, 16)

	require.Len(t, out, 2)
	assert.Len(t, out[0], 2)
	assert.Nil(t, Deinterleave([]int{1}, 0, 16))
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("definitely not a wav file")))

	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.wav"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		audio   Audio
		wantErr error
	}{
		{"zero sample rate", Audio{SampleRate: 0, BitDepth: 16, Channels: [][]float64{{0}}}, nil},
		{"bit depth 8", Audio{SampleRate: 8000, BitDepth: 8, Channels: [][]float64{{0}}}, ErrUnsupportedBitDepth},
		{"no channels", Audio{SampleRate: 8000, BitDepth: 16}, nil},
		{"ragged channels", Audio{SampleRate: 8000, BitDepth: 16, Channels: [][]float64{{0, 1}, {0}}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.audio.Validate()
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAudioDuration(t *testing.T) {
	a := &Audio{SampleRate: 1000, BitDepth: 16, Channels: [][]float64{make([]float64, 2500)}}

	assert.InDelta(t, 2.5, a.Duration(), 1e-12)
	assert.Zero(t, (&Audio{}).Duration())
	assert.Zero(t, (&Audio{}).Frames())
}
