package delay

import "fmt"

// Line is a circular integer delay line.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line of fixed size.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay size must be > 0: %d", size)
	}

	return &Line{buffer: make([]float64, size)}, nil
}

// Len returns internal buffer size, which is also the delay applied by
// Process.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Write writes one sample.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample

	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read reads the sample written delay writes ago. delay=1 is the most recent
// sample and delay=Len() the oldest.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}

	readPos := ((d.writePos-delay)%size + size) % size

	return d.buffer[readPos]
}

// Process returns the sample written Len() calls ago and stores sample.
func (d *Line) Process(sample float64) float64 {
	out := d.buffer[d.writePos]
	d.Write(sample)

	return out
}

// ProcessInPlace delays buf by Len() samples.
func (d *Line) ProcessInPlace(buf []float64) {
	for i, x := range buf {
		buf[i] = d.Process(x)
	}
}

// Reset clears line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}

	d.writePos = 0
}
