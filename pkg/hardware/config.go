package hardware

import (
	"github.com/pkg/errors"

	"github.com/tigerbot-team/avoidbot/pkg/irsensor"
	"github.com/tigerbot-team/avoidbot/pkg/pca9685"
	"github.com/tigerbot-team/avoidbot/pkg/ultrasonic"
)

type PWMSource string

const (
	PWMFromGPIO    PWMSource = "gpio"
	PWMFromPCA9685 PWMSource = "pca9685"
)

type MotorPins struct {
	In1      string `yaml:"in1"`
	In2      string `yaml:"in2"`
	PWM      string `yaml:"pwm"`
	Channel  int    `yaml:"pca9685_channel"`
	Reversed bool   `yaml:"reversed"`
}

type MotorConfig struct {
	Left           MotorPins `yaml:"left"`
	Right          MotorPins `yaml:"right"`
	PWMSource      PWMSource `yaml:"pwm_source"`
	PWMFrequencyHz float64   `yaml:"pwm_frequency_hz"`
	PCA9685Device  string    `yaml:"pca9685_device"`
	PCA9685Addr    int       `yaml:"pca9685_addr"`
}

type OLEDConfig struct {
	Enabled bool `yaml:"enabled"`
	// Bus is the periph I2C bus name; empty means the first one.
	Bus string `yaml:"bus"`
}

type Config struct {
	IR         irsensor.Pins     `yaml:"ir"`
	Ultrasonic ultrasonic.Config `yaml:"ultrasonic"`
	Motors     MotorConfig       `yaml:"motors"`
	OLED       OLEDConfig        `yaml:"oled"`
	Battery    BatteryConfig     `yaml:"battery"`
}

// DefaultConfig is the wiring of the reference robot (BCM numbering on a
// Raspberry Pi).
func DefaultConfig() Config {
	return Config{
		IR: irsensor.Pins{
			FrontLeft:     "GPIO5",
			FrontRight:    "GPIO6",
			SideLeftNear:  "GPIO16",
			SideRightNear: "GPIO19",
			SideLeftFar:   "GPIO26",
			SideRightFar:  "GPIO20",
		},
		Ultrasonic: ultrasonic.DefaultConfig(),
		Motors: MotorConfig{
			Left:           MotorPins{In1: "GPIO17", In2: "GPIO27", PWM: "GPIO12", Channel: 0},
			Right:          MotorPins{In1: "GPIO22", In2: "GPIO10", PWM: "GPIO13", Channel: 1},
			PWMSource:      PWMFromPCA9685,
			PWMFrequencyHz: 1000,
			PCA9685Device:  "/dev/i2c-1",
			PCA9685Addr:    pca9685.DefaultAddr,
		},
		OLED:    OLEDConfig{Enabled: true},
		Battery: DefaultBatteryConfig(),
	}
}

func (c Config) Validate() error {
	if err := c.Ultrasonic.Validate(); err != nil {
		return errors.Wrap(err, "ultrasonic")
	}
	switch c.Motors.PWMSource {
	case PWMFromGPIO:
		if c.Motors.Left.PWM == "" || c.Motors.Right.PWM == "" {
			return errors.New("gpio PWM needs a pwm pin for both motors")
		}
	case PWMFromPCA9685:
		for _, ch := range []int{c.Motors.Left.Channel, c.Motors.Right.Channel} {
			if ch < 0 || ch >= pca9685.NumChannels {
				return errors.Wrapf(pca9685.ErrBadChannel, "channel %d", ch)
			}
		}
		if c.Motors.Left.Channel == c.Motors.Right.Channel {
			return errors.New("both motors on the same PCA9685 channel")
		}
	default:
		return errors.Errorf("unknown pwm_source %q", c.Motors.PWMSource)
	}
	if c.Motors.PWMFrequencyHz <= 0 {
		return errors.Errorf("pwm_frequency_hz must be positive, not %v", c.Motors.PWMFrequencyHz)
	}
	return errors.Wrap(c.Battery.Validate(), "battery")
}
