package spectrum_test

import (
	"fmt"

	"github.com/cwbudde/algo-speccomp/dsp/spectrum"
)

func ExampleMagnitude() {
	bins := []complex128{1 + 0i, 0 + 1i, -1 + 0i}
	mag := spectrum.Magnitude(bins)
	fmt.Printf("%.1f %.1f %.1f\n", mag[0], mag[1], mag[2])
	// Output:
	// 1.0 1.0 1.0
}

func ExampleFractionalOctaveEdges() {
	lo := make([]int, 9)
	hi := make([]int, 9)
	_ = spectrum.FractionalOctaveEdges(lo, hi, 1)
	fmt.Println(lo[4], hi[4])
	// Output:
	// 3 6
}
