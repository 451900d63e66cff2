package buffer

import "testing"

func TestNewBlockZeroFilled(t *testing.T) {
	b := NewBlock(2, 8)
	if b.NumChannels() != 2 || b.Frames() != 8 {
		t.Fatalf("shape = %dx%d, want 2x8", b.NumChannels(), b.Frames())
	}

	for ch, data := range b.Channels() {
		if len(data) != 8 {
			t.Fatalf("channel %d len = %d, want 8", ch, len(data))
		}

		for i, v := range data {
			if v != 0 {
				t.Fatalf("channel %d sample %d = %v, want 0", ch, i, v)
			}
		}
	}
}

func TestNewBlockNegativeShape(t *testing.T) {
	b := NewBlock(-1, -4)
	if b.NumChannels() != 0 || b.Frames() != 0 {
		t.Fatalf("shape = %dx%d, want 0x0", b.NumChannels(), b.Frames())
	}
}

func TestChannelViewsDoNotOverlap(t *testing.T) {
	b := NewBlock(3, 4)
	for ch, data := range b.Channels() {
		for i := range data {
			data[i] = float64(ch*10 + i)
		}
	}

	// Appending to one view must not clobber the next channel.
	_ = append(b.Channels()[0], 99)

	if got := b.Channels()[1][0]; got != 10 {
		t.Fatalf("channel 1 sample 0 = %v, want 10", got)
	}
}

func TestReshapeReusesAndClears(t *testing.T) {
	b := NewBlock(2, 16)
	b.Channels()[1][3] = 7

	b.Reshape(4, 8)
	if b.NumChannels() != 4 || b.Frames() != 8 {
		t.Fatalf("shape = %dx%d, want 4x8", b.NumChannels(), b.Frames())
	}

	for ch, data := range b.Channels() {
		for i, v := range data {
			if v != 0 {
				t.Fatalf("stale value at channel %d sample %d: %v", ch, i, v)
			}
		}
	}
}

func TestLoadPadsWithSilence(t *testing.T) {
	src := [][]float64{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}
	b := NewBlock(2, 4)

	if n := b.Load(src, 3); n != 2 {
		t.Fatalf("Load() = %d, want 2", n)
	}

	want := [][]float64{{4, 5, 0, 0}, {9, 10, 0, 0}}
	for ch := range want {
		for i := range want[ch] {
			if b.Channels()[ch][i] != want[ch][i] {
				t.Fatalf("channel %d: got %v want %v", ch, b.Channels()[ch], want[ch])
			}
		}
	}

	if n := b.Load(src, 10); n != 0 {
		t.Fatalf("Load() past end = %d, want 0", n)
	}

	for _, data := range b.Channels() {
		for _, v := range data {
			if v != 0 {
				t.Fatal("Load past end should zero the block")
			}
		}
	}
}

func TestLoadMissingChannelsAreZero(t *testing.T) {
	b := NewBlock(2, 2)
	b.Channels()[1][0] = 5

	b.Load([][]float64{{1, 2}}, 0)

	if b.Channels()[0][1] != 2 || b.Channels()[1][0] != 0 {
		t.Fatalf("unexpected block %v", b.Channels())
	}
}

func TestStoreSkipsOutOfRange(t *testing.T) {
	b := NewBlock(1, 4)
	copy(b.Channels()[0], []float64{1, 2, 3, 4})

	dst := [][]float64{make([]float64, 5)}

	if n := b.Store(dst, -2); n != 2 {
		t.Fatalf("Store(-2) = %d, want 2", n)
	}

	if n := b.Store(dst, 3); n != 2 {
		t.Fatalf("Store(3) = %d, want 2", n)
	}

	want := []float64{3, 4, 0, 1, 2}
	for i := range want {
		if dst[0][i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst[0], want)
		}
	}

	if n := b.Store(dst, 5); n != 0 {
		t.Fatalf("Store past end = %d, want 0", n)
	}
}
