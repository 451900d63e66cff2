package effects_test

import (
	"fmt"

	"github.com/cwbudde/algo-speccomp/dsp/effects"
	"github.com/cwbudde/algo-speccomp/dsp/effects/dynamics"
)

// ExampleSpectralCompressor shows construction and block processing.
func ExampleSpectralCompressor() {
	comp, err := effects.NewSpectralCompressor(48000, 2,
		effects.WithSpectralCompressorFFTSize(2048),
		effects.WithSpectralCompressorOverlap(4),
		effects.WithSpectralCompressorTargetMode(dynamics.TargetSmoothed),
	)
	if err != nil {
		panic(err)
	}

	_ = comp.SetDownwardThreshold(-6)
	_ = comp.SetDownwardRatio(4)
	_ = comp.SetUpwardThreshold(-24)
	_ = comp.SetUpwardRatio(2)

	block := [][]float64{make([]float64, 512), make([]float64, 512)}
	if err := comp.ProcessInPlace(block); err != nil {
		panic(err)
	}

	fmt.Printf("latency: %d samples\n", comp.Latency())
	fmt.Printf("hop: %d samples\n", comp.HopSize())
	fmt.Printf("target: %s\n", comp.TargetMode())
	// Output:
	// latency: 2048 samples
	// hop: 512 samples
	// target: smoothed
}
