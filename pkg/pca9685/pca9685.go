// Package pca9685 drives the motor enable lines from a PCA9685 16-channel PWM
// board when the host has no spare hardware PWM pins.
package pca9685

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"

	"github.com/tigerbot-team/avoidbot/pkg/bounds"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe

	OscillatorHz = 25000000
	PWMMax       = 4095
	NumChannels  = 16

	MinFrequency = 24
	MaxFrequency = 1526
)

var ErrBadChannel = errors.New("PWM channel out of range")

// Registers is the slice of an I2C device that the driver needs.
type Registers interface {
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type PCA9685 struct {
	lock sync.Mutex
	dev  Registers
}

func Open(deviceFile string, addr int) (*PCA9685, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening PCA9685 at %#x on %s", addr, deviceFile)
	}
	return New(dev), nil
}

func New(dev Registers) *PCA9685 {
	return &PCA9685{dev: dev}
}

// PreScale returns the prescaler register value for the given output
// frequency.
func PreScale(freqHz float64) byte {
	freqHz = bounds.Clamp(freqHz, MinFrequency, MaxFrequency)
	return byte(math.Round(float64(OscillatorHz)/(PWMMax+1)/freqHz) - 1)
}

// Configure sets the PWM frequency and wakes the chip.
func (p *PCA9685) Configure(freqHz float64) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	steps := []struct {
		reg   byte
		value byte
		what  string
	}{
		{RegMode1, 0x11, "sleep"},
		{RegPreScale, PreScale(freqHz), "prescale"},
		{RegMode1, 0x01, "reset"},
	}
	for _, s := range steps {
		if err := p.dev.WriteReg(s.reg, []byte{s.value}); err != nil {
			return errors.Wrapf(err, "PCA9685 %s", s.what)
		}
	}
	// Oscillator needs 500us after leaving sleep.
	time.Sleep(1 * time.Millisecond)
	// Auto-increment on.
	if err := p.dev.WriteReg(RegMode1, []byte{0x21}); err != nil {
		return errors.Wrap(err, "PCA9685 enable")
	}
	return nil
}

// SetPWM sets the duty of one channel as a fraction of full scale.
func (p *PCA9685) SetPWM(channel int, value float64) error {
	if channel < 0 || channel >= NumChannels {
		return errors.Wrapf(ErrBadChannel, "channel %d", channel)
	}
	value = bounds.Clamp(value, 0, 1)
	pwmValue := uint16(math.Round(PWMMax * value))
	addr := RegLEDBase + channel*4

	p.lock.Lock()
	defer p.lock.Unlock()
	return p.dev.WriteReg(byte(addr), []byte{0, 0, byte(pwmValue & 0xff), byte(pwmValue >> 8)})
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

// Channel is one output of the board, usable as a motor speed channel.
type Channel struct {
	p *PCA9685
	n int
}

func (p *PCA9685) Channel(n int) *Channel {
	return &Channel{p: p, n: n}
}

func (c *Channel) SetDuty(fraction float64) error {
	return c.p.SetPWM(c.n, fraction)
}

func (c *Channel) String() string {
	return fmt.Sprintf("pca9685/%d", c.n)
}
