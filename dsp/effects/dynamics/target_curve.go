package dynamics

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-speccomp/dsp/spectrum"
)

const defaultSmoothingFraction = 3

// TargetMode selects how the per-bin reference level is derived.
type TargetMode int

const (
	// TargetBroadband uses one RMS magnitude across all bins of the channel.
	TargetBroadband TargetMode = iota
	// TargetSmoothed uses the RMS magnitude of a 1/N-octave band around each bin.
	TargetSmoothed
	// TargetSidechain uses the per-bin magnitude of a sidechain spectrum.
	TargetSidechain
)

// String implements fmt.Stringer.
func (m TargetMode) String() string {
	switch m {
	case TargetBroadband:
		return "broadband"
	case TargetSmoothed:
		return "smoothed"
	case TargetSidechain:
		return "sidechain"
	default:
		return fmt.Sprintf("TargetMode(%d)", int(m))
	}
}

// ParseTargetMode maps a mode name to a TargetMode.
func ParseTargetMode(name string) (TargetMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "broadband", "":
		return TargetBroadband, nil
	case "smoothed":
		return TargetSmoothed, nil
	case "sidechain":
		return TargetSidechain, nil
	default:
		return 0, fmt.Errorf("unknown target mode: %q", name)
	}
}

// Valid reports whether m is a known target mode.
func (m TargetMode) Valid() bool {
	return m >= TargetBroadband && m <= TargetSidechain
}

// TargetEstimator computes the reference level each bin is compressed
// against. Its output depends only on the current frame's magnitudes.
//
// Band edges for TargetSmoothed are computed once at construction; Estimate
// itself does not allocate.
type TargetEstimator struct {
	mode     TargetMode
	bins     int
	fraction int
	lo, hi   []int
}

// NewTargetEstimator builds an estimator for frames of the given bin count.
// fraction is the 1/N-octave resolution used by TargetSmoothed and is ignored
// by the other modes.
func NewTargetEstimator(bins int, mode TargetMode, fraction int) (*TargetEstimator, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("target estimator bins must be > 0: %d", bins)
	}

	if !mode.Valid() {
		return nil, fmt.Errorf("invalid target mode: %d", mode)
	}

	if fraction <= 0 {
		return nil, fmt.Errorf("target smoothing fraction must be > 0: %d", fraction)
	}

	e := &TargetEstimator{
		mode:     mode,
		bins:     bins,
		fraction: fraction,
	}

	if mode == TargetSmoothed {
		e.lo = make([]int, bins)
		e.hi = make([]int, bins)

		err := spectrum.FractionalOctaveEdges(e.lo, e.hi, fraction)
		if err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Mode returns the estimator mode.
func (e *TargetEstimator) Mode() TargetMode { return e.mode }

// Bins returns the frame size the estimator was built for.
func (e *TargetEstimator) Bins() int { return e.bins }

// Fraction returns the 1/N-octave resolution.
func (e *TargetEstimator) Fraction() int { return e.fraction }

// ScratchLen returns the scratch length Estimate requires.
func (e *TargetEstimator) ScratchLen() int { return e.bins + 1 }

// Estimate writes the per-bin target for magnitudes into dst.
//
// sidechain holds sidechain magnitudes for TargetSidechain; when it is nil
// that mode falls back to the broadband estimate. scratch must have at least
// ScratchLen elements and is only used by TargetSmoothed. dst, magnitudes and
// a non-nil sidechain must have Bins elements.
func (e *TargetEstimator) Estimate(dst, magnitudes, sidechain, scratch []float64) {
	switch e.mode {
	case TargetSmoothed:
		e.smoothed(dst, magnitudes, scratch)
	case TargetSidechain:
		if sidechain != nil {
			copy(dst, sidechain)
			return
		}

		fill(dst, BroadbandRMS(magnitudes))
	default:
		fill(dst, BroadbandRMS(magnitudes))
	}
}

func (e *TargetEstimator) smoothed(dst, magnitudes, prefix []float64) {
	peak := peakMagnitude(magnitudes)
	if peak == 0 || math.IsInf(peak, 1) {
		fill(dst, peak)
		return
	}

	// Energies are summed relative to the frame peak so that large finite
	// magnitudes cannot overflow the prefix sums.
	scale := 1 / peak

	prefix[0] = 0
	for k, m := range magnitudes {
		r := m * scale
		prefix[k+1] = prefix[k] + r*r
	}

	for k := range dst {
		lo, hi := e.lo[k], e.hi[k]
		energy := max(prefix[hi]-prefix[lo], 0)
		dst[k] = peak * math.Sqrt(energy/float64(hi-lo))
	}
}

// BroadbandRMS returns sqrt(sum(m^2)/len(m)), or 0 for an empty slice. The
// sum is formed relative to the largest magnitude, so the result is finite
// for any finite input.
func BroadbandRMS(magnitudes []float64) float64 {
	if len(magnitudes) == 0 {
		return 0
	}

	peak := peakMagnitude(magnitudes)
	if peak == 0 || math.IsInf(peak, 1) {
		return peak
	}

	scale := 1 / peak

	var sum float64
	for _, m := range magnitudes {
		r := m * scale
		sum += r * r
	}

	return peak * math.Sqrt(sum/float64(len(magnitudes)))
}

// peakMagnitude returns the largest magnitude, ignoring NaN.
func peakMagnitude(magnitudes []float64) float64 {
	var peak float64
	for _, m := range magnitudes {
		if m > peak {
			peak = m
		}
	}

	return peak
}

func fill(dst []float64, v float64) {
	for i := range dst {
		dst[i] = v
	}
}
