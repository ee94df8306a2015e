package pid

import (
	"math"
	"testing"
)

func TestComputeFirstStep(t *testing.T) {
	r := New(DefaultGains)
	// error 10: P=25, I=0.1*10=1, D=0.05*10=0.5
	out := r.Compute(10, 0)
	if math.Abs(out-26.5) > 1e-9 {
		t.Fatalf("first output = %v, expected 26.5", out)
	}
	if r.LastError != 10 || r.SumError != 10 {
		t.Fatalf("unexpected state after first step: %+v", r)
	}

	// Same error again: D term vanishes, integral doubles.
	out = r.Compute(10, 0)
	if math.Abs(out-27) > 1e-9 {
		t.Fatalf("second output = %v, expected 27", out)
	}
}

func TestIntegralNeverExceedsLimit(t *testing.T) {
	r := New(DefaultGains)
	for i := 0; i < 1000; i++ {
		r.Compute(100, 0)
		if math.Abs(r.SumError) > r.IntegralLimit {
			t.Fatalf("integral %v exceeded limit after %d steps", r.SumError, i)
		}
	}
	if r.SumError != r.IntegralLimit {
		t.Errorf("expected integral pinned at %v, got %v", r.IntegralLimit, r.SumError)
	}

	for i := 0; i < 1000; i++ {
		r.Compute(0, 100)
		if math.Abs(r.SumError) > r.IntegralLimit {
			t.Fatalf("integral %v exceeded limit after %d negative steps", r.SumError, i)
		}
	}
	if r.SumError != -r.IntegralLimit {
		t.Errorf("expected integral pinned at %v, got %v", -r.IntegralLimit, r.SumError)
	}
}

func TestOutputClamped(t *testing.T) {
	r := New(DefaultGains)
	for _, tc := range []struct{ target, measured float64 }{
		{1000, 0}, {0, 1000}, {99, 99}, {55, 20}, {5, 99},
	} {
		out := r.Compute(tc.target, tc.measured)
		if out < r.OutMin || out > r.OutMax {
			t.Errorf("Compute(%v, %v) = %v, outside [%v, %v]", tc.target, tc.measured, out, r.OutMin, r.OutMax)
		}
	}
}

func TestReset(t *testing.T) {
	r := New(Gains{Kp: 1})
	r.IntegralLimit = 50
	r.Compute(10, 0)
	r.Reset()
	if r.SumError != 0 || r.LastError != 0 || r.Output != 0 {
		t.Errorf("state not cleared: %+v", r)
	}
	if r.Kp != 1 || r.IntegralLimit != 50 || r.OutMax != DefaultOutMax {
		t.Errorf("configuration lost: %+v", r)
	}
}
