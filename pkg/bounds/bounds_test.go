package bounds

import "testing"

func TestClamp(t *testing.T) {
	for _, tc := range []struct {
		v, lo, hi, expected float64
	}{
		{50, 0, 99, 50},
		{-1, 0, 99, 0},
		{120, 0, 99, 99},
		{99, 0, 99, 99},
		{-600, -500, 500, -500},
	} {
		if got := Clamp(tc.v, tc.lo, tc.hi); got != tc.expected {
			t.Errorf("Clamp(%v, %v, %v) = %v, expected %v", tc.v, tc.lo, tc.hi, got, tc.expected)
		}
	}
	if got := Clamp(7, 1, 5); got != 5 {
		t.Errorf("int Clamp = %v", got)
	}
}
