package drive

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"
)

// DefaultPWMFrequency is the PWM carrier used on the enable lines.
const DefaultPWMFrequency = 1 * physic.KiloHertz

// PWMChannel sets the duty of one PWM output as a fraction of full scale.
type PWMChannel interface {
	SetDuty(fraction float64) error
}

// GPIOPWM drives PWM straight from a GPIO pin that supports it.
type GPIOPWM struct {
	Pin  gpio.PinOut
	Freq physic.Frequency
}

func (p *GPIOPWM) SetDuty(fraction float64) error {
	return p.Pin.PWM(gpio.Duty(fraction*float64(gpio.DutyMax)), p.Freq)
}

// WheelPins are the driver inputs for one motor: two direction bits and the
// speed channel.
type WheelPins struct {
	In1, In2 gpio.PinOut
	PWM      PWMChannel
	// Reversed swaps the meaning of the direction bits for a motor that is
	// mounted the other way round.
	Reversed bool
}

func (w *WheelPins) apply(wheel Wheel) error {
	in1, in2 := gpio.Low, gpio.Low
	duty := wheel.Duty
	switch wheel.Dir {
	case Forward:
		in1 = gpio.High
	case Backward:
		in2 = gpio.High
	default:
		// Both inputs high with the enable on shorts the windings.  With the
		// enable off an L298N would let the motor coast instead.
		in1, in2 = gpio.High, gpio.High
		duty = MaxDuty
	}
	if w.Reversed {
		in1, in2 = in2, in1
	}
	if err := w.In1.Out(in1); err != nil {
		return errors.Wrap(err, "setting IN1")
	}
	if err := w.In2.Out(in2); err != nil {
		return errors.Wrap(err, "setting IN2")
	}
	return w.PWM.SetDuty(duty / 100)
}

// HBridge is an L298N/TB6612 style dual motor driver.
type HBridge struct {
	lock        sync.Mutex
	left, right WheelPins
	maxDuty     float64
	current     Command
}

func NewHBridge(left, right WheelPins) *HBridge {
	return &HBridge{
		left:    left,
		right:   right,
		maxDuty: MaxDuty,
	}
}

func (h *HBridge) Drive(cmd Command) error {
	cmd = cmd.Clamped(h.maxDuty)

	h.lock.Lock()
	defer h.lock.Unlock()

	if err := h.left.apply(cmd.Left); err != nil {
		return errors.Wrap(err, "left motor")
	}
	if err := h.right.apply(cmd.Right); err != nil {
		return errors.Wrap(err, "right motor")
	}
	h.current = cmd
	return nil
}

func (h *HBridge) Current() Command {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.current
}

var _ Output = (*HBridge)(nil)

// Dummy logs commands instead of driving motors and keeps a history of them.
type Dummy struct {
	lock    sync.Mutex
	Quiet   bool
	history []Command
	current Command
}

func (d *Dummy) Drive(cmd Command) error {
	cmd = cmd.Clamped(MaxDuty)
	d.lock.Lock()
	defer d.lock.Unlock()
	if !d.Quiet {
		fmt.Println("DDRV:", cmd)
	}
	d.history = append(d.history, cmd)
	d.current = cmd
	return nil
}

// SetQuiet turns the per-command logging off or on.  Unlike writing Quiet
// directly it is safe while another goroutine is driving.
func (d *Dummy) SetQuiet(quiet bool) {
	d.lock.Lock()
	d.Quiet = quiet
	d.lock.Unlock()
}

func (d *Dummy) Current() Command {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.current
}

// History returns every command driven so far.
func (d *Dummy) History() []Command {
	d.lock.Lock()
	defer d.lock.Unlock()
	result := make([]Command, len(d.history))
	copy(result, d.history)
	return result
}

func (d *Dummy) ClearHistory() {
	d.lock.Lock()
	d.history = nil
	d.lock.Unlock()
}

var _ Output = (*Dummy)(nil)
