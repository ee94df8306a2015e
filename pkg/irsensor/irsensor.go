// Package irsensor reads the six digital infrared obstacle sensors.
//
// The sensor modules pull their output low when something is inside their
// detection cone, so a Low line level means "obstacle".
package irsensor

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
)

type Reading int

const (
	NoObstacle Reading = iota
	Obstacle
)

func (r Reading) String() string {
	if r == Obstacle {
		return "OBSTACLE"
	}
	return "clear"
}

type Position int

const (
	FrontLeft Position = iota
	FrontRight
	SideLeftNear
	SideRightNear
	SideLeftFar
	SideRightFar

	NumPositions
)

var positionNames = [NumPositions]string{
	"front-left", "front-right",
	"side-left-near", "side-right-near",
	"side-left-far", "side-right-far",
}

func (p Position) String() string {
	if p < 0 || p >= NumPositions {
		return fmt.Sprintf("position(%d)", int(p))
	}
	return positionNames[p]
}

// DefaultSettle is the gap between the two reads of a debounced sample.
const DefaultSettle = 10 * time.Microsecond

// LevelReader is the part of a gpio.PinIn that the sampler needs.
type LevelReader interface {
	Read() gpio.Level
}

// Pins names the GPIO for each sensor position.
type Pins struct {
	FrontLeft     string `yaml:"front_left"`
	FrontRight    string `yaml:"front_right"`
	SideLeftNear  string `yaml:"side_left_near"`
	SideRightNear string `yaml:"side_right_near"`
	SideLeftFar   string `yaml:"side_left_far"`
	SideRightFar  string `yaml:"side_right_far"`
}

func (p Pins) byPosition() [NumPositions]string {
	return [NumPositions]string{
		p.FrontLeft, p.FrontRight,
		p.SideLeftNear, p.SideRightNear,
		p.SideLeftFar, p.SideRightFar,
	}
}

type Sampler struct {
	pins   [NumPositions]LevelReader
	clock  clock.Clock
	settle time.Duration
}

func New(pins [NumPositions]LevelReader, clk clock.Clock, settle time.Duration) *Sampler {
	return &Sampler{
		pins:   pins,
		clock:  clk,
		settle: settle,
	}
}

// Open looks up each named pin and configures it as a pulled-up input.
// periph's host drivers must already be initialised.
func Open(names Pins, clk clock.Clock) (*Sampler, error) {
	var pins [NumPositions]LevelReader
	for pos, name := range names.byPosition() {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, errors.Errorf("no GPIO pin named %q for %v sensor", name, Position(pos))
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, errors.Wrapf(err, "configuring %v sensor pin %s", Position(pos), name)
		}
		pins[pos] = p
	}
	return New(pins, clk, DefaultSettle), nil
}

// Debounce combines two consecutive samples of the same line.  Agreeing
// samples are decoded (Low = obstacle); disagreeing samples are reported as an
// obstacle.
func Debounce(first, second gpio.Level) Reading {
	if first != second {
		return Obstacle
	}
	if first == gpio.Low {
		return Obstacle
	}
	return NoObstacle
}

func (s *Sampler) Detect(p Position) Reading {
	pin := s.pins[p]
	first := pin.Read()
	s.clock.Sleep(s.settle)
	second := pin.Read()
	return Debounce(first, second)
}

func (s *Sampler) DetectAll() (readings [NumPositions]Reading) {
	for p := Position(0); p < NumPositions; p++ {
		readings[p] = s.Detect(p)
	}
	return
}
