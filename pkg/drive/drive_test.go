package drive

import (
	"testing"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
)

func TestClamped(t *testing.T) {
	for _, tc := range []struct {
		in, expected Command
	}{
		{Straight(50, 60), Straight(50, 60)},
		{Straight(120, -4), Straight(99, 0)},
		{Reverse(100, 99.5), Reverse(99, 99)},
		{Command{Left: Wheel{Brake, 40}, Right: Wheel{Forward, 40}}, PivotLeft(40)},
		{Stop(), Stop()},
	} {
		if got := tc.in.Clamped(MaxDuty); got != tc.expected {
			t.Errorf("%v.Clamped() = %v, expected %v", tc.in, got, tc.expected)
		}
	}
}

func TestTurnCommands(t *testing.T) {
	if c := SpinLeft(80); c.Left.Dir != Backward || c.Right.Dir != Forward {
		t.Errorf("SpinLeft should reverse the left wheel: %v", c)
	}
	if c := SpinRight(80); c.Left.Dir != Forward || c.Right.Dir != Backward {
		t.Errorf("SpinRight should reverse the right wheel: %v", c)
	}
	if c := PivotLeft(80); c.Left.Dir != Brake || c.Right.Duty != 80 {
		t.Errorf("PivotLeft should brake the left wheel: %v", c)
	}
	if c := PivotRight(80); c.Right.Dir != Brake || c.Left.Duty != 80 {
		t.Errorf("PivotRight should brake the right wheel: %v", c)
	}
	if !Stop().IsStop() || Straight(1, 0).IsStop() {
		t.Error("IsStop mismatch")
	}
}

type fakePWM struct {
	duties []float64
}

func (f *fakePWM) SetDuty(fraction float64) error {
	f.duties = append(f.duties, fraction)
	return nil
}

func newWheel(name string, reversed bool) (WheelPins, *gpiotest.Pin, *gpiotest.Pin, *fakePWM) {
	in1 := &gpiotest.Pin{N: name + "-in1"}
	in2 := &gpiotest.Pin{N: name + "-in2"}
	pwm := &fakePWM{}
	return WheelPins{In1: in1, In2: in2, PWM: pwm, Reversed: reversed}, in1, in2, pwm
}

func TestHBridgeDrive(t *testing.T) {
	left, lIn1, lIn2, lPWM := newWheel("left", false)
	right, rIn1, rIn2, rPWM := newWheel("right", true)
	h := NewHBridge(left, right)

	if err := h.Drive(Command{Left: Wheel{Forward, 150}, Right: Wheel{Backward, 50}}); err != nil {
		t.Fatalf("Drive failed: %v", err)
	}

	if lIn1.L != gpio.High || lIn2.L != gpio.Low {
		t.Errorf("left forward should set IN1 only, got %v/%v", lIn1.L, lIn2.L)
	}
	// The right motor is mounted reversed so backward drives IN1.
	if rIn1.L != gpio.High || rIn2.L != gpio.Low {
		t.Errorf("reversed right backward should set IN1 only, got %v/%v", rIn1.L, rIn2.L)
	}
	if len(lPWM.duties) != 1 || lPWM.duties[0] != 0.99 {
		t.Errorf("left duty should be clamped to 0.99, got %v", lPWM.duties)
	}
	if len(rPWM.duties) != 1 || rPWM.duties[0] != 0.5 {
		t.Errorf("right duty should be 0.5, got %v", rPWM.duties)
	}
	expected := Command{Left: Wheel{Forward, 99}, Right: Wheel{Backward, 50}}
	if h.Current() != expected {
		t.Errorf("Current() = %v, expected %v", h.Current(), expected)
	}

	if err := h.Drive(Stop()); err != nil {
		t.Fatalf("Drive failed: %v", err)
	}
	// Short brake: both inputs high and the enable on, whichever way the
	// motor is mounted.
	for _, p := range []*gpiotest.Pin{lIn1, lIn2, rIn1, rIn2} {
		if p.L != gpio.High {
			t.Errorf("%s should be high while braking", p.N)
		}
	}
	if lPWM.duties[1] != 0.99 || rPWM.duties[1] != 0.99 {
		t.Errorf("braking should hold the enable on, got %v / %v", lPWM.duties[1], rPWM.duties[1])
	}
	if !h.Current().IsStop() {
		t.Errorf("Current() = %v, expected a stop", h.Current())
	}
}

func TestDummyHistory(t *testing.T) {
	d := &Dummy{Quiet: true}
	_ = d.Drive(Straight(10, 20))
	_ = d.Drive(Stop())
	h := d.History()
	if len(h) != 2 || h[0] != Straight(10, 20) || !h[1].IsStop() {
		t.Errorf("unexpected history %v", h)
	}
	if !d.Current().IsStop() {
		t.Error("current should be the stop")
	}
	d.ClearHistory()
	if len(d.History()) != 0 {
		t.Error("history should be empty after clear")
	}
}
