package window

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeSqrtHann
	TypeHamming
	TypeBlackman
	TypeTukey
)

// Metadata holds static properties of a window type.
type Metadata struct {
	Name string
	ENBW float64
}

var metadataByType = map[Type]Metadata{
	TypeRectangular: {Name: "Rectangular", ENBW: 1},
	TypeHann:        {Name: "Hann", ENBW: 1.5},
	TypeSqrtHann:    {Name: "Sqrt-Hann", ENBW: 1.2337},
	TypeHamming:     {Name: "Hamming", ENBW: 1.3628},
	TypeBlackman:    {Name: "Blackman", ENBW: 1.7268},
	TypeTukey:       {Name: "Tukey"},
}

var (
	hannCoeffs     = []float64{0.5, -0.5}
	hammingCoeffs  = []float64{0.54, -0.46}
	blackmanCoeffs = []float64{0.42, -0.5, 0.08}
)

// Option configures window generation.
type Option func(*config)

type config struct {
	alpha    float64
	periodic bool
}

func defaultConfig() config {
	return config{alpha: 0.5}
}

// WithAlpha configures the taper ratio for Tukey windows.
func WithAlpha(v float64) Option {
	return func(c *config) {
		if v >= 0 {
			c.alpha = v
		}
	}
}

// WithPeriodic configures periodic form (FFT framing) instead of symmetric form.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// Generate returns window coefficients of the given length.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	out := make([]float64, length)
	for i := range out {
		x := samplePosition(i, length, cfg.periodic)
		out[i] = evalWindow(t, x, cfg)
	}

	return out
}

// Apply multiplies buf in-place by the selected window.
func Apply(t Type, buf []float64, opts ...Option) {
	if len(buf) == 0 {
		return
	}

	coeffs := Generate(t, len(buf), opts...)
	if len(coeffs) != len(buf) {
		return
	}

	vecmath.MulBlockInPlace(buf, coeffs)
}

// ApplyCoefficientsInPlace multiplies samples with coefficients in place.
func ApplyCoefficientsInPlace(samples, coeffs []float64) error {
	if len(samples) != len(coeffs) {
		return errMismatchedLength
	}

	vecmath.MulBlockInPlace(samples, coeffs)

	return nil
}

// Info returns static metadata for a window type.
func Info(t Type) Metadata {
	if m, ok := metadataByType[t]; ok {
		return m
	}

	return Metadata{}
}

// ParseType looks a window type up by its metadata name, ignoring case and
// the hyphen in "sqrt-hann".
func ParseType(name string) (Type, error) {
	key := normalizeName(name)
	for t, m := range metadataByType {
		if normalizeName(m.Name) == key {
			return t, nil
		}
	}

	return 0, fmt.Errorf("unknown window type: %q", name)
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "")
}

// OverlapAddNormalization returns the factor that makes windowed
// analysis/synthesis with the same coefficients sum to unity when frames are
// spaced hop samples apart: hop / sum(w[n]^2).
//
// The result is exact for windows whose squares satisfy the constant
// overlap-add condition at the given hop (periodic Hann at N/4, sqrt-Hann at
// N/2, and so on).
func OverlapAddNormalization(coeffs []float64, hop int) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}

	if hop <= 0 || hop > len(coeffs) {
		return 0, validateHop(hop, len(coeffs))
	}

	sumSquares := 0.0
	for _, c := range coeffs {
		sumSquares += c * c
	}

	if sumSquares == 0 {
		return 0, errZeroEnergy
	}

	return float64(hop) / sumSquares, nil
}

func evalWindow(t Type, x float64, cfg config) float64 {
	if x < 0 {
		x = 0
	}

	if x > 1 {
		x = 1
	}

	switch t {
	case TypeRectangular:
		return 1
	case TypeHann:
		return cosineFromCoeffs(x, hannCoeffs)
	case TypeSqrtHann:
		return math.Sqrt(math.Max(0, cosineFromCoeffs(x, hannCoeffs)))
	case TypeHamming:
		return cosineFromCoeffs(x, hammingCoeffs)
	case TypeBlackman:
		return cosineFromCoeffs(x, blackmanCoeffs)
	case TypeTukey:
		return tukeyAt(x, cfg.alpha)
	default:
		return 1
	}
}

func cosineFromCoeffs(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x

	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}

	return sum
}

func samplePosition(n, size int, periodic bool) float64 {
	if size <= 1 {
		return 0
	}

	den := float64(size - 1)
	if periodic {
		den = float64(size)
	}

	return float64(n) / den
}

func tukeyAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1
	}

	if alpha >= 1 {
		return cosineFromCoeffs(x, hannCoeffs)
	}

	a := alpha / 2
	switch {
	case x < a:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
	case x <= 1-a:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
	}
}
