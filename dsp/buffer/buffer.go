package buffer

// Block is a multi-channel block of float64 samples backed by one
// contiguous array. Channel views share that array.
type Block struct {
	backing  []float64
	channels [][]float64
	frames   int
}

// NewBlock returns a zero-filled block.
func NewBlock(channels, frames int) *Block {
	b := &Block{}
	b.Reshape(channels, frames)

	return b
}

// Channels returns per-channel views of length Frames.
func (b *Block) Channels() [][]float64 {
	return b.channels
}

// NumChannels returns the channel count.
func (b *Block) NumChannels() int {
	return len(b.channels)
}

// Frames returns the samples per channel.
func (b *Block) Frames() int {
	return b.frames
}

// Reshape sets the channel count and frame length, reusing the backing array
// when it is large enough. All samples are zeroed.
func (b *Block) Reshape(channels, frames int) {
	channels = max(channels, 0)
	frames = max(frames, 0)

	n := channels * frames
	if n <= cap(b.backing) {
		b.backing = b.backing[:n]
	} else {
		b.backing = make([]float64, n)
	}

	if cap(b.channels) >= channels {
		b.channels = b.channels[:channels]
	} else {
		b.channels = make([][]float64, channels)
	}

	for ch := range b.channels {
		b.channels[ch] = b.backing[ch*frames : (ch+1)*frames : (ch+1)*frames]
	}

	b.frames = frames
	b.Zero()
}

// Zero sets all samples to 0.
func (b *Block) Zero() {
	for i := range b.backing {
		b.backing[i] = 0
	}
}

// Load copies src[ch][offset:offset+Frames] into the block. Samples outside
// src are zero, so reading past the end pads with silence. Channels missing
// from src are zeroed. It returns the number of frames read from src.
func (b *Block) Load(src [][]float64, offset int) int {
	read := 0

	for ch, dst := range b.channels {
		var in []float64
		if ch < len(src) {
			in = src[ch]
		}

		n := 0
		if offset >= 0 && offset < len(in) {
			n = copy(dst, in[offset:])
		}

		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}

		read = max(read, n)
	}

	return read
}

// Store copies the block into dst starting at frame offset. Frames that fall
// outside dst, including those before a negative offset, are skipped. It
// returns the number of frames written per channel.
func (b *Block) Store(dst [][]float64, offset int) int {
	written := 0

	for ch, src := range b.channels {
		if ch >= len(dst) {
			break
		}

		start := 0
		if offset < 0 {
			start = -offset
		}

		if start >= len(src) || offset+start >= len(dst[ch]) {
			continue
		}

		written = max(written, copy(dst[ch][offset+start:], src[start:]))
	}

	return written
}
