package hardware

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/devices/ssd1306"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/ina219"
	"github.com/tigerbot-team/avoidbot/pkg/irsensor"
	"github.com/tigerbot-team/avoidbot/pkg/pca9685"
	"github.com/tigerbot-team/avoidbot/pkg/policy"
	"github.com/tigerbot-team/avoidbot/pkg/screen"
	"github.com/tigerbot-team/avoidbot/pkg/sound"
	"github.com/tigerbot-team/avoidbot/pkg/ultrasonic"
)

type Hardware struct {
	clock  clock.Clock
	ir     *irsensor.Sampler
	sonar  *ultrasonic.Sensor
	motors *drive.HBridge
	pwm    *pca9685.PCA9685
	sounds *sound.Player

	battery    *ina219.INA219
	batteryCfg BatteryConfig

	oledBus i2c.BusCloser
	oled    *ssd1306.Dev
}

// openPCA9685 is swapped out by tests.
var openPCA9685 = pca9685.Open

func New(cfg Config, clk clock.Clock) (_ *Hardware, err error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initialising periph host drivers")
	}

	h := &Hardware{clock: clk}
	defer func() {
		if err != nil {
			h.release()
		}
	}()
	h.ir, err = irsensor.Open(cfg.IR, clk)
	if err != nil {
		return nil, err
	}
	h.sonar, err = ultrasonic.Open(cfg.Ultrasonic, clk)
	if err != nil {
		return nil, err
	}
	if err = h.openMotors(cfg.Motors); err != nil {
		return nil, err
	}
	if cfg.OLED.Enabled {
		h.oled, h.oledBus, err = OpenOLED(cfg.OLED)
		if err != nil {
			// The screen is only diagnostics.
			fmt.Println("HW: No OLED, continuing without it:", err)
			screen.SetNotice("NO OLED", screen.LevelWarn)
		}
	}
	if cfg.Battery.Enabled {
		h.batteryCfg = cfg.Battery
		h.battery, err = openBattery(cfg.Battery)
		if err != nil {
			fmt.Println("HW: No battery monitor, continuing without it:", err)
			screen.SetNotice(NoticeBatteryFault, screen.LevelWarn)
		}
	}
	h.sounds = sound.Start()
	return h, nil
}

func outPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no GPIO pin named %q", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "configuring %s as output", name)
	}
	return p, nil
}

// openMotors sets up the H-bridge.  On failure nothing it opened is left
// behind.
func (h *Hardware) openMotors(cfg MotorConfig) (err error) {
	if cfg.PWMSource == PWMFromPCA9685 {
		p, err := openPCA9685(cfg.PCA9685Device, cfg.PCA9685Addr)
		if err != nil {
			return err
		}
		if err := p.Configure(cfg.PWMFrequencyHz); err != nil {
			_ = p.Close()
			return err
		}
		h.pwm = p
	}
	defer func() {
		if err != nil && h.pwm != nil {
			_ = h.pwm.Close()
			h.pwm = nil
		}
	}()

	wheel := func(name string, m MotorPins) (drive.WheelPins, error) {
		in1, err := outPin(m.In1)
		if err != nil {
			return drive.WheelPins{}, errors.Wrapf(err, "%s motor", name)
		}
		in2, err := outPin(m.In2)
		if err != nil {
			return drive.WheelPins{}, errors.Wrapf(err, "%s motor", name)
		}
		w := drive.WheelPins{In1: in1, In2: in2, Reversed: m.Reversed}
		if h.pwm != nil {
			w.PWM = h.pwm.Channel(m.Channel)
		} else {
			pwm, err := outPin(m.PWM)
			if err != nil {
				return drive.WheelPins{}, errors.Wrapf(err, "%s motor", name)
			}
			w.PWM = &drive.GPIOPWM{Pin: pwm, Freq: physic.Frequency(cfg.PWMFrequencyHz) * physic.Hertz}
		}
		return w, nil
	}
	left, err := wheel("left", cfg.Left)
	if err != nil {
		return err
	}
	right, err := wheel("right", cfg.Right)
	if err != nil {
		return err
	}
	h.motors = drive.NewHBridge(left, right)
	return h.motors.Drive(drive.Stop())
}

// OpenOLED opens the SSD1306 display on the configured I2C bus.
func OpenOLED(cfg OLEDConfig) (*ssd1306.Dev, i2c.BusCloser, error) {
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening OLED I2C bus")
	}
	opts := ssd1306.DefaultOpts
	opts.W, opts.H = screen.Width, screen.Height
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		_ = bus.Close()
		return nil, nil, errors.Wrap(err, "initialising SSD1306")
	}
	return dev, bus, nil
}

// Start runs the background screen updater and battery monitor until ctx
// is done.
func (h *Hardware) Start(ctx context.Context) {
	if h.oled != nil {
		go screen.LoopUpdatingScreen(ctx, h.oled)
	}
	if h.battery != nil {
		go LoopMonitoringBattery(ctx, h.batteryCfg, h.battery)
	}
}

var _ Interface = (*Hardware)(nil)

func (h *Hardware) Snapshot() policy.Snapshot {
	s := policy.Snapshot{
		CaptureTime: h.clock.Now(),
		Obstacles:   h.ir.DetectAll(),
	}
	s.Range = h.sonar.Measure()
	return s
}

func (h *Hardware) Drive(cmd drive.Command) error {
	return h.motors.Drive(cmd)
}

func (h *Hardware) Current() drive.Command {
	return h.motors.Current()
}

func (h *Hardware) PlaySound(path string) {
	h.sounds.Play(path)
}

func (h *Hardware) Shutdown() {
	if err := h.motors.Drive(drive.Stop()); err != nil {
		fmt.Println("HW: Failed to stop motors:", err)
	}
	time.Sleep(30 * time.Millisecond)
	h.release()
}

// release closes whatever has been opened so far.
func (h *Hardware) release() {
	if h.sounds != nil {
		h.sounds.Close()
		h.sounds = nil
	}
	if h.pwm != nil {
		_ = h.pwm.Close()
		h.pwm = nil
	}
	if h.battery != nil {
		_ = h.battery.Close()
		h.battery = nil
	}
	if h.oledBus != nil {
		_ = h.oledBus.Close()
		h.oledBus = nil
	}
}
