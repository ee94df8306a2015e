// Package ultrasonic measures distance with an HC-SR04 style trigger/echo
// ranging module.
package ultrasonic

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
)

// CMPerMicrosecond converts a round-trip echo time into a one-way distance at
// 340m/s.
const CMPerMicrosecond = 0.017

var (
	ErrNoEcho     = errors.New("no echo start")
	ErrOutOfRange = errors.New("echo did not end, out of range")
	ErrTooClose   = errors.New("below minimum range")
)

// TimeoutPolicy decides what a timeout while waiting for the echo to end means.
type TimeoutPolicy string

const (
	// TimeoutInvalid reports the reading as invalid, so it counts towards the
	// invalid-reading streak.
	TimeoutInvalid TimeoutPolicy = "invalid"
	// TimeoutFar reports the maximum distance, i.e. nothing in range.
	TimeoutFar TimeoutPolicy = "far"
)

type Config struct {
	MinDistanceCM float64       `yaml:"min_distance_cm"`
	MaxDistanceCM float64       `yaml:"max_distance_cm"`
	TriggerPulse  time.Duration `yaml:"trigger_pulse"`
	RiseTimeout   time.Duration `yaml:"rise_timeout"`
	FallTimeout   time.Duration `yaml:"fall_timeout"`
	MinInterval   time.Duration `yaml:"min_interval"`
	OnFallTimeout TimeoutPolicy `yaml:"on_fall_timeout"`

	TriggerPin string `yaml:"trigger_pin"`
	EchoPin    string `yaml:"echo_pin"`
}

func DefaultConfig() Config {
	return Config{
		MinDistanceCM: 1,
		MaxDistanceCM: 400,
		TriggerPulse:  10 * time.Microsecond,
		RiseTimeout:   20 * time.Millisecond,
		// Round trip for 400cm is ~23.5ms.
		FallTimeout:   25 * time.Millisecond,
		MinInterval:   20 * time.Millisecond,
		OnFallTimeout: TimeoutInvalid,
		TriggerPin:    "GPIO23",
		EchoPin:       "GPIO24",
	}
}

func (c Config) Validate() error {
	if c.MinDistanceCM < 0 || c.MaxDistanceCM <= c.MinDistanceCM {
		return errors.Errorf("bad ultrasonic range [%v, %v]cm", c.MinDistanceCM, c.MaxDistanceCM)
	}
	if c.RiseTimeout <= 0 || c.FallTimeout <= 0 {
		return errors.New("ultrasonic timeouts must be positive")
	}
	switch c.OnFallTimeout {
	case TimeoutInvalid, TimeoutFar:
	default:
		return errors.Errorf("unknown ultrasonic fall timeout policy %q", c.OnFallTimeout)
	}
	return nil
}

type Reading struct {
	DistanceCM float64
	Error      error
}

func (r Reading) Valid() bool {
	return r.Error == nil
}

func (r Reading) String() string {
	if r.Error != nil {
		return fmt.Sprintf("invalid(%v)", r.Error)
	}
	return fmt.Sprintf("%.1fcm", r.DistanceCM)
}

// Invalid returns a reading that failed with err.
func Invalid(err error) Reading {
	return Reading{Error: err}
}

// At returns a valid reading of cm centimetres.
func At(cm float64) Reading {
	return Reading{DistanceCM: cm}
}

// EchoToCentimeters converts an echo pulse width to a reading, clamping to the
// configured maximum and rejecting anything under the minimum.
func EchoToCentimeters(width time.Duration, cfg Config) Reading {
	us := float64(width) / float64(time.Microsecond)
	cm := us * CMPerMicrosecond
	if cm > cfg.MaxDistanceCM {
		cm = cfg.MaxDistanceCM
	}
	if cm < cfg.MinDistanceCM {
		return Reading{DistanceCM: 0, Error: ErrTooClose}
	}
	return Reading{DistanceCM: cm}
}

type Trigger interface {
	Out(l gpio.Level) error
}

type Echo interface {
	Read() gpio.Level
}

type Sensor struct {
	cfg     Config
	trigger Trigger
	echo    Echo
	clock   clock.Clock

	lastMeasurement time.Time
}

func New(cfg Config, trigger Trigger, echo Echo, clk clock.Clock) *Sensor {
	return &Sensor{
		cfg:     cfg,
		trigger: trigger,
		echo:    echo,
		clock:   clk,
	}
}

// Open configures the trigger and echo pins named in cfg.
func Open(cfg Config, clk clock.Clock) (*Sensor, error) {
	trig := gpioreg.ByName(cfg.TriggerPin)
	if trig == nil {
		return nil, errors.Errorf("no GPIO trigger pin named %q", cfg.TriggerPin)
	}
	echo := gpioreg.ByName(cfg.EchoPin)
	if echo == nil {
		return nil, errors.Errorf("no GPIO echo pin named %q", cfg.EchoPin)
	}
	if err := trig.Out(gpio.Low); err != nil {
		return nil, errors.Wrap(err, "configuring trigger pin")
	}
	if err := echo.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, errors.Wrap(err, "configuring echo pin")
	}
	return New(cfg, trig, echo, clk), nil
}

// Measure fires one ping and times the echo.  It never returns a Go error:
// failures are carried in the reading.
func (s *Sensor) Measure() Reading {
	if !s.lastMeasurement.IsZero() {
		// Let the previous ping die away.
		if gap := s.cfg.MinInterval - s.clock.Since(s.lastMeasurement); gap > 0 {
			s.clock.Sleep(gap)
		}
	}
	defer func() {
		s.lastMeasurement = s.clock.Now()
	}()

	if err := s.trigger.Out(gpio.High); err != nil {
		return Invalid(errors.Wrap(err, "raising trigger"))
	}
	s.clock.Sleep(s.cfg.TriggerPulse)
	if err := s.trigger.Out(gpio.Low); err != nil {
		return Invalid(errors.Wrap(err, "lowering trigger"))
	}

	deadline := s.clock.Now().Add(s.cfg.RiseTimeout)
	for s.echo.Read() == gpio.Low {
		if !s.clock.Now().Before(deadline) {
			return Invalid(ErrNoEcho)
		}
	}

	// The echo width is read off the monotonic clock; Linux gives us no
	// hardware counter to extend.
	start := s.clock.Now()
	deadline = start.Add(s.cfg.FallTimeout)
	for s.echo.Read() == gpio.High {
		if !s.clock.Now().Before(deadline) {
			if s.cfg.OnFallTimeout == TimeoutFar {
				return At(s.cfg.MaxDistanceCM)
			}
			return Invalid(ErrOutOfRange)
		}
	}
	return EchoToCentimeters(s.clock.Since(start), s.cfg)
}
