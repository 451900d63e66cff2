package dynamics

import (
	"math"
	"testing"
)

func TestTimeConstantCoefficient(t *testing.T) {
	tests := []struct {
		name   string
		ms     float64
		rateHz float64
		want   float64
	}{
		{"zero time", 0, 93.75, 0},
		{"negative time", -10, 93.75, 0},
		{"NaN time", math.NaN(), 93.75, 0},
		{"zero rate", 100, 0, 0},
		{"100ms at 100Hz", 100, 100, math.Exp(-0.1)},
		{"150ms at 93.75Hz", 150, 93.75, math.Exp(-1 / (0.15 * 93.75))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeConstantCoefficient(tt.ms, tt.rateHz)
			if math.Abs(got-tt.want) > 1e-15 {
				t.Fatalf("TimeConstantCoefficient(%v, %v) = %v, want %v", tt.ms, tt.rateHz, got, tt.want)
			}

			if got < 0 || got >= 1 {
				t.Fatalf("coefficient %v outside [0, 1)", got)
			}
		})
	}
}

func TestEnvelopeFollowerZeroAttackJumps(t *testing.T) {
	f := NewEnvelopeFollower(0, 300, 93.75)

	if got := f.Process(0, 0.7); got != 0.7 {
		t.Fatalf("Process(0, 0.7) = %v, want 0.7", got)
	}
}

func TestEnvelopeFollowerAttackStep(t *testing.T) {
	const rate = 93.75

	f := NewEnvelopeFollower(50, 500, rate)
	c := TimeConstantCoefficient(50, rate)

	env := 0.0
	for n := 1; n <= 20; n++ {
		env = f.Process(env, 1)

		want := 1 - math.Pow(c, float64(n))
		if math.Abs(env-want) > 1e-12 {
			t.Fatalf("step %d: env = %v, want %v", n, env, want)
		}

		if env > 1 {
			t.Fatalf("step %d: envelope overshoots input: %v", n, env)
		}
	}
}

func TestEnvelopeFollowerUsesReleaseWhenFalling(t *testing.T) {
	f := NewEnvelopeFollower(0, 200, 100)

	got := f.Process(1, 0)
	if math.Abs(got-f.ReleaseCoeff()) > 1e-15 {
		t.Fatalf("release step = %v, want %v", got, f.ReleaseCoeff())
	}

	if f.AttackCoeff() != 0 {
		t.Fatalf("attack coeff = %v, want 0", f.AttackCoeff())
	}
}

func TestEnvelopeFollowerFlushesDenormals(t *testing.T) {
	f := NewEnvelopeFollower(10, 10, 1/(0.01*math.Ln2))

	if got := f.Process(1.5e-30, 0); got != 0 {
		t.Fatalf("Process() = %v, want flushed 0", got)
	}
}

func TestEnvelopeFollowerProcessBlockMatchesProcess(t *testing.T) {
	f := NewEnvelopeFollower(20, 120, 187.5)

	raw := []float64{0, 0.5, 1, 0.25, 0, 2}
	env := []float64{0.1, 0.1, 0.1, 0.5, 0.5, 0}
	want := make([]float64, len(env))

	for i := range env {
		want[i] = f.Process(env[i], raw[i])
	}

	f.ProcessBlock(env, raw)

	for i := range env {
		if env[i] != want[i] {
			t.Fatalf("bin %d: ProcessBlock = %v, Process = %v", i, env[i], want[i])
		}
	}
}

func TestEnvelopeFollowerSetTimesUpdates(t *testing.T) {
	f := NewEnvelopeFollower(10, 100, 100)
	before := f.AttackCoeff()

	f.SetTimes(10, 100, 100)
	if f.AttackCoeff() != before {
		t.Fatal("repeating SetTimes changed the attack coefficient")
	}

	f.SetTimes(20, 100, 100)
	if f.AttackCoeff() <= before {
		t.Fatalf("longer attack should raise the coefficient: %v <= %v", f.AttackCoeff(), before)
	}
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		env, raw float64
		want     EnvelopeState
	}{
		{0, 0, EnvelopeIdle},
		{1e-7, 1e-8, EnvelopeIdle},
		{0, 0.5, EnvelopeAttacking},
		{0.5, 0.2, EnvelopeReleasing},
		{0.5, 0.5, EnvelopeReleasing},
	}

	for _, tt := range tests {
		if got := StateOf(tt.env, tt.raw); got != tt.want {
			t.Errorf("StateOf(%v, %v) = %v, want %v", tt.env, tt.raw, got, tt.want)
		}
	}

	if EnvelopeAttacking.String() != "attacking" {
		t.Fatalf("String() = %q", EnvelopeAttacking.String())
	}
}
