// Package drive turns per-wheel direction/duty commands into motor driver
// signals.
package drive

import (
	"fmt"

	"github.com/tigerbot-team/avoidbot/pkg/bounds"
)

// MaxDuty is the largest duty cycle ever handed to a motor driver.  The PWM
// period is split into 100 units and the top unit is kept clear.
const MaxDuty = 99.0

type Direction int

const (
	Brake Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "fwd"
	case Backward:
		return "back"
	default:
		return "brake"
	}
}

type Wheel struct {
	Dir  Direction
	Duty float64
}

type Command struct {
	Left, Right Wheel
}

func Straight(left, right float64) Command {
	return Command{Left: Wheel{Forward, left}, Right: Wheel{Forward, right}}
}

func Reverse(left, right float64) Command {
	return Command{Left: Wheel{Backward, left}, Right: Wheel{Backward, right}}
}

func Stop() Command {
	return Command{}
}

// SpinLeft rotates in place: left wheel back, right wheel forward.
func SpinLeft(duty float64) Command {
	return Command{Left: Wheel{Backward, duty}, Right: Wheel{Forward, duty}}
}

// SpinRight rotates in place: left wheel forward, right wheel back.
func SpinRight(duty float64) Command {
	return Command{Left: Wheel{Forward, duty}, Right: Wheel{Backward, duty}}
}

// PivotLeft turns about the braked left wheel.
func PivotLeft(duty float64) Command {
	return Command{Right: Wheel{Forward, duty}}
}

// PivotRight turns about the braked right wheel.
func PivotRight(duty float64) Command {
	return Command{Left: Wheel{Forward, duty}}
}

// Clamped limits both duties to [0, max].  A braked wheel always has zero duty.
func (c Command) Clamped(max float64) Command {
	return Command{Left: c.Left.clamped(max), Right: c.Right.clamped(max)}
}

func (w Wheel) clamped(max float64) Wheel {
	if w.Dir == Brake {
		return Wheel{}
	}
	return Wheel{Dir: w.Dir, Duty: bounds.Clamp(w.Duty, 0, max)}
}

func (c Command) IsStop() bool {
	return c.Left.Dir == Brake && c.Right.Dir == Brake
}

func (c Command) String() string {
	return fmt.Sprintf("L=%v/%.0f R=%v/%.0f", c.Left.Dir, c.Left.Duty, c.Right.Dir, c.Right.Duty)
}

// Output is a two-channel motor driver.
type Output interface {
	Drive(cmd Command) error
	// Current returns the last command actually applied, which doubles as the
	// actuator feedback for the wheel regulators.
	Current() Command
}
