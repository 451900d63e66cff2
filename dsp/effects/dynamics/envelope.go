package dynamics

import (
	"math"

	"github.com/cwbudde/algo-speccomp/dsp/core"
)

// silenceFloorLinear is the magnitude treated as silence by the envelope
// state classifier. It matches core.SilenceFloorDB.
var silenceFloorLinear = core.DBToLinear(core.SilenceFloorDB)

// TimeConstantCoefficient returns the one-pole coefficient for a time
// constant of timeMs milliseconds evaluated at rateHz updates per second:
//
//	c = exp(-1 / (timeMs * 0.001 * rateHz))
//
// Non-positive times (or rates) return 0, which makes the follower jump to its
// input in a single update.
func TimeConstantCoefficient(timeMs, rateHz float64) float64 {
	if !(timeMs > 0) || !(rateHz > 0) || math.IsInf(rateHz, 1) {
		return 0
	}

	return math.Exp(-1 / (timeMs * 0.001 * rateHz))
}

// EnvelopeState classifies one envelope update. It is informational only.
type EnvelopeState int

const (
	// EnvelopeIdle means both the envelope and its input sit at the silence floor.
	EnvelopeIdle EnvelopeState = iota
	// EnvelopeAttacking means the input exceeds the envelope.
	EnvelopeAttacking
	// EnvelopeReleasing means the input is at or below the envelope.
	EnvelopeReleasing
)

// String implements fmt.Stringer.
func (s EnvelopeState) String() string {
	switch s {
	case EnvelopeIdle:
		return "idle"
	case EnvelopeAttacking:
		return "attacking"
	case EnvelopeReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// StateOf reports which branch the follower takes for env and raw.
func StateOf(env, raw float64) EnvelopeState {
	switch {
	case env <= silenceFloorLinear && raw <= silenceFloorLinear:
		return EnvelopeIdle
	case raw > env:
		return EnvelopeAttacking
	default:
		return EnvelopeReleasing
	}
}

// EnvelopeFollower holds attack and release coefficients for a frame-rate
// one-pole follower. It carries no per-bin state: envelopes live in the
// caller's slices so one follower can drive every bin of a bank.
type EnvelopeFollower struct {
	attackCoeff  float64
	releaseCoeff float64

	// Cache key for SetTimes.
	attackMs  float64
	releaseMs float64
	rateHz    float64
	primed    bool
}

// NewEnvelopeFollower returns a follower configured for the given times and
// frame rate.
func NewEnvelopeFollower(attackMs, releaseMs, rateHz float64) EnvelopeFollower {
	var f EnvelopeFollower
	f.SetTimes(attackMs, releaseMs, rateHz)

	return f
}

// SetTimes recomputes the coefficients. Repeating the previous arguments is a
// no-op, so callers may invoke it once per frame.
func (f *EnvelopeFollower) SetTimes(attackMs, releaseMs, rateHz float64) {
	if f.primed && attackMs == f.attackMs && releaseMs == f.releaseMs && rateHz == f.rateHz {
		return
	}

	f.attackCoeff = TimeConstantCoefficient(attackMs, rateHz)
	f.releaseCoeff = TimeConstantCoefficient(releaseMs, rateHz)
	f.attackMs = attackMs
	f.releaseMs = releaseMs
	f.rateHz = rateHz
	f.primed = true
}

// AttackCoeff returns the attack coefficient.
func (f *EnvelopeFollower) AttackCoeff() float64 { return f.attackCoeff }

// ReleaseCoeff returns the release coefficient.
func (f *EnvelopeFollower) ReleaseCoeff() float64 { return f.releaseCoeff }

// Process returns the next envelope value for the previous envelope env and
// the current raw magnitude.
func (f *EnvelopeFollower) Process(env, raw float64) float64 {
	c := f.releaseCoeff
	if raw > env {
		c = f.attackCoeff
	}

	return core.FlushDenormals(c*env + (1-c)*raw)
}

// ProcessBlock updates env in place from raw. Both slices must have the same
// length; extra elements in the longer slice are ignored.
func (f *EnvelopeFollower) ProcessBlock(env, raw []float64) {
	n := min(len(env), len(raw))
	for i := range n {
		env[i] = f.Process(env[i], raw[i])
	}
}
