package dynamics

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-speccomp/dsp/core"
)

const (
	// Default knob values.
	defaultThresholdOffsetDB = 0.0
	defaultRatio             = 1.0
	defaultAttackMs          = 150.0
	defaultReleaseMs         = 300.0

	// Knob ranges.
	MinThresholdOffsetDB = -50.0
	MaxThresholdOffsetDB = 50.0
	MinRatio             = 1.0
	MaxRatio             = 300.0
	MinTimeMs            = 0.0
	MaxTimeMs            = 10000.0

	defaultParamSmoothingMs = 20.0
	paramSnapEpsilon        = 1e-6
)

// Params is one resolved set of compressor knobs.
//
// Threshold offsets are relative to the target curve: 0 dB places the
// threshold exactly on the target level. A ratio of 1 disengages that
// direction.
type Params struct {
	DownwardThresholdDB float64
	UpwardThresholdDB   float64
	DownwardRatio       float64
	UpwardRatio         float64
	AttackMs            float64
	ReleaseMs           float64
}

// DefaultParams returns the knob defaults: both offsets 0 dB, both ratios
// disengaged, 150 ms attack, 300 ms release.
func DefaultParams() Params {
	return Params{
		DownwardThresholdDB: defaultThresholdOffsetDB,
		UpwardThresholdDB:   defaultThresholdOffsetDB,
		DownwardRatio:       defaultRatio,
		UpwardRatio:         defaultRatio,
		AttackMs:            defaultAttackMs,
		ReleaseMs:           defaultReleaseMs,
	}
}

// Validate reports the first knob that is non-finite or out of range.
func (p Params) Validate() error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"downward threshold offset", p.DownwardThresholdDB, MinThresholdOffsetDB, MaxThresholdOffsetDB},
		{"upward threshold offset", p.UpwardThresholdDB, MinThresholdOffsetDB, MaxThresholdOffsetDB},
		{"downward ratio", p.DownwardRatio, MinRatio, MaxRatio},
		{"upward ratio", p.UpwardRatio, MinRatio, MaxRatio},
		{"attack", p.AttackMs, MinTimeMs, MaxTimeMs},
		{"release", p.ReleaseMs, MinTimeMs, MaxTimeMs},
	}

	for _, c := range checks {
		if !core.IsFinite(c.value) || c.value < c.min || c.value > c.max {
			return fmt.Errorf("%s must be in [%f, %f]: %f", c.name, c.min, c.max, c.value)
		}
	}

	return nil
}

// Clamp returns p with every knob forced into its legal range. NaN knobs
// fall back to their defaults.
func (p Params) Clamp() Params {
	def := DefaultParams()

	return Params{
		DownwardThresholdDB: clampKnob(p.DownwardThresholdDB, def.DownwardThresholdDB, MinThresholdOffsetDB, MaxThresholdOffsetDB),
		UpwardThresholdDB:   clampKnob(p.UpwardThresholdDB, def.UpwardThresholdDB, MinThresholdOffsetDB, MaxThresholdOffsetDB),
		DownwardRatio:       clampKnob(p.DownwardRatio, def.DownwardRatio, MinRatio, MaxRatio),
		UpwardRatio:         clampKnob(p.UpwardRatio, def.UpwardRatio, MinRatio, MaxRatio),
		AttackMs:            clampKnob(p.AttackMs, def.AttackMs, MinTimeMs, MaxTimeMs),
		ReleaseMs:           clampKnob(p.ReleaseMs, def.ReleaseMs, MinTimeMs, MaxTimeMs),
	}
}

func clampKnob(v, def, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return def
	}

	return core.Clamp(v, lo, hi)
}

// ParamStore holds the latest Params for lock-free cross-thread access.
//
// Writers (UI, automation) call Store or Update from any goroutine; the audio
// thread calls Load once per block. Load is wait-free and does not allocate.
type ParamStore struct {
	p atomic.Pointer[Params]
}

var errNilUpdate = errors.New("param update function must not be nil")

// NewParamStore creates a store holding p. Invalid knobs are clamped.
func NewParamStore(p Params) *ParamStore {
	s := &ParamStore{}
	clamped := p.Clamp()
	s.p.Store(&clamped)

	return s
}

// Load returns a snapshot of the current params.
func (s *ParamStore) Load() Params {
	if p := s.p.Load(); p != nil {
		return *p
	}

	return DefaultParams()
}

// Store validates and publishes p.
func (s *ParamStore) Store(p Params) error {
	err := p.Validate()
	if err != nil {
		return err
	}

	s.p.Store(&p)

	return nil
}

// Update applies fn to a copy of the current params and publishes the result
// if it validates. Concurrent updates are retried until one wins.
func (s *ParamStore) Update(fn func(*Params)) error {
	if fn == nil {
		return errNilUpdate
	}

	for {
		old := s.p.Load()

		next := DefaultParams()
		if old != nil {
			next = *old
		}

		fn(&next)

		err := next.Validate()
		if err != nil {
			return err
		}

		if s.p.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// ParamSmoother glides a per-block params snapshot toward the latest target so
// automation never steps the gain law. Each knob follows a one-pole filter at
// the frame rate and snaps to the target once within a small epsilon, so a
// ratio target of exactly 1 is reached exactly.
type ParamSmoother struct {
	timeMs  float64
	current Params
	primed  bool
}

// NewParamSmoother creates a smoother with the given time constant. Zero
// disables smoothing.
func NewParamSmoother(timeMs float64) (*ParamSmoother, error) {
	if !core.IsFinite(timeMs) || timeMs < 0 {
		return nil, fmt.Errorf("param smoothing time must be >= 0 and finite: %f", timeMs)
	}

	return &ParamSmoother{timeMs: timeMs}, nil
}

// TimeMs returns the smoothing time constant.
func (s *ParamSmoother) TimeMs() float64 { return s.timeMs }

// Current returns the last smoothed value.
func (s *ParamSmoother) Current() Params { return s.current }

// Reset jumps the smoother to p.
func (s *ParamSmoother) Reset(p Params) {
	s.current = p
	s.primed = true
}

// Next advances one frame toward target at the given frame rate and returns
// the smoothed params. The first call after construction jumps to target.
func (s *ParamSmoother) Next(target Params, frameRate float64) Params {
	if !s.primed {
		s.Reset(target)
		return s.current
	}

	c := TimeConstantCoefficient(s.timeMs, frameRate)

	s.current.DownwardThresholdDB = glide(s.current.DownwardThresholdDB, target.DownwardThresholdDB, c)
	s.current.UpwardThresholdDB = glide(s.current.UpwardThresholdDB, target.UpwardThresholdDB, c)
	s.current.DownwardRatio = glide(s.current.DownwardRatio, target.DownwardRatio, c)
	s.current.UpwardRatio = glide(s.current.UpwardRatio, target.UpwardRatio, c)
	s.current.AttackMs = glide(s.current.AttackMs, target.AttackMs, c)
	s.current.ReleaseMs = glide(s.current.ReleaseMs, target.ReleaseMs, c)

	return s.current
}

func glide(current, target, coeff float64) float64 {
	next := target + (current-target)*coeff
	if math.Abs(next-target) <= paramSnapEpsilon*math.Max(1, math.Abs(target)) {
		return target
	}

	return next
}
