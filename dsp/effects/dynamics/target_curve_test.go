package dynamics

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-speccomp/internal/testutil"
)

func TestBroadbandRMS(t *testing.T) {
	if got := BroadbandRMS(nil); got != 0 {
		t.Fatalf("BroadbandRMS(nil) = %v", got)
	}

	if got := BroadbandRMS([]float64{0, 0, 0}); got != 0 {
		t.Fatalf("BroadbandRMS(zeros) = %v", got)
	}

	if got := BroadbandRMS([]float64{3, 4, 0, 0}); math.Abs(got-2.5) > 1e-15 {
		t.Fatalf("BroadbandRMS() = %v, want 2.5", got)
	}
}

func TestBroadbandRMSLargeMagnitudes(t *testing.T) {
	got := BroadbandRMS([]float64{1e200, 1e200, 1e200, 1e200})
	if math.Abs(got-1e200) > 1e-12*1e200 {
		t.Fatalf("BroadbandRMS() = %v, want 1e200", got)
	}

	got = BroadbandRMS([]float64{3e155, 4e155, 0, 0})
	if math.Abs(got-2.5e155) > 1e-12*2.5e155 {
		t.Fatalf("BroadbandRMS() = %v, want 2.5e155", got)
	}

	if got := BroadbandRMS([]float64{1, math.Inf(1)}); !math.IsInf(got, 1) {
		t.Fatalf("BroadbandRMS() with Inf = %v, want +Inf", got)
	}
}

func TestTargetEstimatorSmoothedLargeMagnitudes(t *testing.T) {
	const bins = 129

	e, err := NewTargetEstimator(bins, TargetSmoothed, 3)
	if err != nil {
		t.Fatalf("NewTargetEstimator() error = %v", err)
	}

	mags := make([]float64, bins)
	want := make([]float64, bins)
	for i := range mags {
		mags[i] = 1e180
		want[i] = 1e180
	}

	dst := make([]float64, bins)
	e.Estimate(dst, mags, nil, make([]float64, e.ScratchLen()))

	testutil.RequireFinite(t, dst)

	for k := range dst {
		if math.Abs(dst[k]-want[k]) > 1e-12*want[k] {
			t.Fatalf("dst[%d] = %v, want %v", k, dst[k], want[k])
		}
	}
}

func TestTargetEstimatorBroadband(t *testing.T) {
	e, err := NewTargetEstimator(4, TargetBroadband, 3)
	if err != nil {
		t.Fatalf("NewTargetEstimator() error = %v", err)
	}

	dst := make([]float64, 4)
	e.Estimate(dst, []float64{3, 4, 0, 0}, nil, make([]float64, e.ScratchLen()))

	testutil.RequireSliceNearlyEqual(t, dst, []float64{2.5, 2.5, 2.5, 2.5}, 1e-15)
}

func TestTargetEstimatorSmoothedConstant(t *testing.T) {
	const bins = 513

	e, err := NewTargetEstimator(bins, TargetSmoothed, 3)
	if err != nil {
		t.Fatalf("NewTargetEstimator() error = %v", err)
	}

	mags := make([]float64, bins)
	want := make([]float64, bins)
	for i := range mags {
		mags[i] = 0.3
		want[i] = 0.3
	}

	dst := make([]float64, bins)
	e.Estimate(dst, mags, nil, make([]float64, e.ScratchLen()))

	testutil.RequireSliceNearlyEqual(t, dst, want, 1e-12)
}

func TestTargetEstimatorSmoothedIsLocal(t *testing.T) {
	const bins = 1025

	e, err := NewTargetEstimator(bins, TargetSmoothed, 3)
	if err != nil {
		t.Fatalf("NewTargetEstimator() error = %v", err)
	}

	mags := make([]float64, bins)
	mags[400] = 1

	dst := make([]float64, bins)
	e.Estimate(dst, mags, nil, make([]float64, e.ScratchLen()))

	if dst[400] <= 0 {
		t.Fatalf("target at spike = %v, want > 0", dst[400])
	}

	for _, k := range []int{1, 100, 300, 600, 1000} {
		if dst[k] != 0 {
			t.Fatalf("bin %d outside the band picked up energy: %v", k, dst[k])
		}
	}
}

func TestTargetEstimatorSidechain(t *testing.T) {
	e, err := NewTargetEstimator(3, TargetSidechain, 3)
	if err != nil {
		t.Fatalf("NewTargetEstimator() error = %v", err)
	}

	dst := make([]float64, 3)
	scratch := make([]float64, e.ScratchLen())

	e.Estimate(dst, []float64{1, 1, 1}, []float64{0.1, 0.2, 0.3}, scratch)
	testutil.RequireSliceNearlyEqual(t, dst, []float64{0.1, 0.2, 0.3}, 0)

	e.Estimate(dst, []float64{2, 2, 2}, nil, scratch)
	testutil.RequireSliceNearlyEqual(t, dst, []float64{2, 2, 2}, 1e-15)
}

func TestNewTargetEstimatorRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		bins     int
		mode     TargetMode
		fraction int
	}{
		{"zero bins", 0, TargetBroadband, 3},
		{"bad mode", 16, TargetMode(9), 3},
		{"zero fraction", 16, TargetSmoothed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTargetEstimator(tt.bins, tt.mode, tt.fraction); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseTargetMode(t *testing.T) {
	for _, m := range []TargetMode{TargetBroadband, TargetSmoothed, TargetSidechain} {
		got, err := ParseTargetMode(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseTargetMode(%q) = %v, %v", m.String(), got, err)
		}
	}

	if _, err := ParseTargetMode("octave"); err == nil {
		t.Fatal("ParseTargetMode accepted an unknown name")
	}
}

func TestTargetModeValid(t *testing.T) {
	for _, m := range []TargetMode{TargetBroadband, TargetSmoothed, TargetSidechain} {
		if !m.Valid() {
			t.Fatalf("%v reported invalid", m)
		}
	}

	for _, m := range []TargetMode{-1, TargetSidechain + 1} {
		if m.Valid() {
			t.Fatalf("%v reported valid", m)
		}
	}
}
