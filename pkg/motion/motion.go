// Package motion turns "move N centimetres" and "turn 90 degrees" into timed,
// open-loop drive intervals.
//
// There is no distance feedback: a move drives the wheels for a duration
// derived from a calibrated ms/cm factor and then brakes.  Wheel duties are
// optionally passed through a per-wheel PID regulator that uses
// drive.Output.Current() as its measurement.
package motion

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/pid"
)

type Kind int

const (
	KindForward Kind = iota
	KindBack
	KindTurnLeft
	KindTurnRight
	KindPause
)

func (k Kind) String() string {
	switch k {
	case KindForward:
		return "forward"
	case KindBack:
		return "back"
	case KindTurnLeft:
		return "left90"
	case KindTurnRight:
		return "right90"
	case KindPause:
		return "pause"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Request is one motion primitive.  A zero Speed means the configured default.
type Request struct {
	Kind       Kind
	DistanceCM float64
	Speed      float64
	Duration   time.Duration
}

func Forward(cm float64) Request { return Request{Kind: KindForward, DistanceCM: cm} }
func Back(cm float64) Request    { return Request{Kind: KindBack, DistanceCM: cm} }
func TurnLeft90() Request        { return Request{Kind: KindTurnLeft} }
func TurnRight90() Request       { return Request{Kind: KindTurnRight} }
func Pause(d time.Duration) Request {
	return Request{Kind: KindPause, Duration: d}
}

func (r Request) String() string {
	switch r.Kind {
	case KindForward, KindBack:
		return fmt.Sprintf("%v %.0fcm", r.Kind, r.DistanceCM)
	case KindPause:
		return fmt.Sprintf("pause %v", r.Duration)
	}
	return r.Kind.String()
}

type TurnStyle string

const (
	// TurnPivot drives the outer wheel and brakes the inner one.
	TurnPivot TurnStyle = "pivot"
	// TurnDifferential drives the wheels in opposite directions.
	TurnDifferential TurnStyle = "differential"
)

type Config struct {
	MSPerCM      float64       `yaml:"ms_per_cm"`
	TurnDuration time.Duration `yaml:"turn_duration"`
	TurnStyle    TurnStyle     `yaml:"turn_style"`
	TurnDuty     float64       `yaml:"turn_duty"`
	DefaultSpeed float64       `yaml:"default_speed"`
	UsePID       bool          `yaml:"use_pid"`

	// CruisePID regulates continuous driving too.  Only useful when the
	// output reports measured wheel speed; on a bare H-bridge Current() is
	// the last command and the loop just fights itself.
	CruisePID bool      `yaml:"cruise_pid"`
	Gains     pid.Gains `yaml:"pid"`
}

func DefaultConfig() Config {
	return Config{
		MSPerCM:      20,
		TurnDuration: 800 * time.Millisecond,
		TurnStyle:    TurnPivot,
		TurnDuty:     drive.MaxDuty,
		DefaultSpeed: drive.MaxDuty,
		UsePID:       true,
		Gains:        pid.DefaultGains,
	}
}

func (c Config) Validate() error {
	if c.MSPerCM <= 0 {
		return errors.Errorf("ms_per_cm must be positive, not %v", c.MSPerCM)
	}
	if c.TurnDuration <= 0 {
		return errors.Errorf("turn_duration must be positive, not %v", c.TurnDuration)
	}
	switch c.TurnStyle {
	case TurnPivot, TurnDifferential:
	default:
		return errors.Errorf("unknown turn_style %q", c.TurnStyle)
	}
	if c.TurnDuty <= 0 || c.TurnDuty > drive.MaxDuty {
		return errors.Errorf("turn_duty must be in (0, %v], not %v", drive.MaxDuty, c.TurnDuty)
	}
	if c.DefaultSpeed <= 0 || c.DefaultSpeed > drive.MaxDuty {
		return errors.Errorf("default_speed must be in (0, %v], not %v", drive.MaxDuty, c.DefaultSpeed)
	}
	return nil
}

// Mover owns the wheel regulators and executes motion primitives against a
// drive output.
type Mover struct {
	cfg         Config
	out         drive.Output
	clk         clock.Clock
	left, right *pid.Regulator
	cruising    bool
}

func New(cfg Config, out drive.Output, clk clock.Clock) *Mover {
	return &Mover{
		cfg:   cfg,
		out:   out,
		clk:   clk,
		left:  pid.New(cfg.Gains),
		right: pid.New(cfg.Gains),
	}
}

func (m *Mover) Config() Config {
	return m.cfg
}

// Duration returns how long the request drives (or waits) for.
func (m *Mover) Duration(req Request) time.Duration {
	switch req.Kind {
	case KindForward, KindBack:
		if req.DistanceCM <= 0 {
			return 0
		}
		return time.Duration(req.DistanceCM * m.cfg.MSPerCM * float64(time.Millisecond))
	case KindTurnLeft, KindTurnRight:
		return m.cfg.TurnDuration
	case KindPause:
		return req.Duration
	}
	return 0
}

// Plan returns the open-loop command and duration for a request.
func (m *Mover) Plan(req Request) (drive.Command, time.Duration) {
	speed := req.Speed
	if speed <= 0 {
		speed = m.cfg.DefaultSpeed
	}
	var cmd drive.Command
	switch req.Kind {
	case KindForward:
		cmd = drive.Straight(speed, speed)
	case KindBack:
		cmd = drive.Reverse(speed, speed)
	case KindTurnLeft:
		if m.cfg.TurnStyle == TurnDifferential {
			cmd = drive.SpinLeft(m.cfg.TurnDuty)
		} else {
			cmd = drive.PivotLeft(m.cfg.TurnDuty)
		}
	case KindTurnRight:
		if m.cfg.TurnStyle == TurnDifferential {
			cmd = drive.SpinRight(m.cfg.TurnDuty)
		} else {
			cmd = drive.PivotRight(m.cfg.TurnDuty)
		}
	case KindPause:
		cmd = drive.Stop()
	}
	return cmd.Clamped(drive.MaxDuty), m.Duration(req)
}

// regulate passes straight moves through the wheel regulators.  Turns run at
// the fixed turn duty.
func (m *Mover) regulate(req Request, cmd drive.Command, enabled bool) drive.Command {
	if !enabled || (req.Kind != KindForward && req.Kind != KindBack) {
		return cmd
	}
	current := m.out.Current()
	cmd.Left.Duty = m.left.Compute(cmd.Left.Duty, measured(current.Left, cmd.Left.Dir))
	cmd.Right.Duty = m.right.Compute(cmd.Right.Duty, measured(current.Right, cmd.Right.Dir))
	return cmd.Clamped(drive.MaxDuty)
}

// measured is the applied duty in the wanted direction; a wheel turning the
// other way (or braked) counts as zero.
func measured(w drive.Wheel, dir drive.Direction) float64 {
	if w.Dir != dir {
		return 0
	}
	return w.Duty
}

// begin drives the first command of a request and returns its deadline.
func (m *Mover) begin(req Request) (time.Time, error) {
	m.cruising = false
	cmd, d := m.Plan(req)
	cmd = m.regulate(req, cmd, m.cfg.UsePID)
	if err := m.out.Drive(cmd); err != nil {
		return time.Time{}, errors.Wrapf(err, "starting %v", req)
	}
	return m.clk.Now().Add(d), nil
}

// Execute runs one primitive to completion, blocking the caller for its whole
// duration, and brakes afterwards.
func (m *Mover) Execute(req Request) error {
	deadline, err := m.begin(req)
	if err != nil {
		return err
	}
	if remaining := deadline.Sub(m.clk.Now()); remaining > 0 {
		m.clk.Sleep(remaining)
	}
	return m.Brake()
}

func (m *Mover) MoveForward(cm, speed float64) error {
	return m.Execute(Request{Kind: KindForward, DistanceCM: cm, Speed: speed})
}

func (m *Mover) MoveBack(cm, speed float64) error {
	return m.Execute(Request{Kind: KindBack, DistanceCM: cm, Speed: speed})
}

func (m *Mover) TurnLeft90() error {
	return m.Execute(TurnLeft90())
}

func (m *Mover) TurnRight90() error {
	return m.Execute(TurnRight90())
}

func (m *Mover) Pause(d time.Duration) error {
	return m.Execute(Pause(d))
}

func (m *Mover) Brake() error {
	m.cruising = false
	return errors.Wrap(m.out.Drive(drive.Stop()), "braking")
}

// Cruise drives forward continuously at the given per-wheel target duties.
// Without CruisePID the targets go straight to the output.  With it, Cruise
// must be called once per control cycle so that the regulators see a steady
// cadence; they start afresh each time cruising resumes.
func (m *Mover) Cruise(leftTarget, rightTarget float64) (drive.Command, error) {
	cmd := drive.Straight(leftTarget, rightTarget).Clamped(drive.MaxDuty)
	if m.cfg.CruisePID {
		if !m.cruising {
			m.ResetRegulators()
		}
		cmd = m.regulate(Request{Kind: KindForward}, cmd, true)
	}
	m.cruising = true
	if err := m.out.Drive(cmd); err != nil {
		return cmd, errors.Wrap(err, "cruising")
	}
	return cmd, nil
}

// ResetRegulators clears the integral and derivative history of both wheels.
func (m *Mover) ResetRegulators() {
	m.left.Reset()
	m.right.Reset()
}

// Regulators exposes the wheel regulators for status display.
func (m *Mover) Regulators() (left, right *pid.Regulator) {
	return m.left, m.right
}

// CorrectedMSPerCM rescales the ms/cm factor after a move that was asked to
// cover commandedCM actually covered measuredCM.
func CorrectedMSPerCM(msPerCM, commandedCM, measuredCM float64) (float64, error) {
	if commandedCM <= 0 || measuredCM <= 0 {
		return 0, errors.New("distances must be positive")
	}
	return msPerCM * commandedCM / measuredCM, nil
}

// CorrectedTurnDuration rescales the turn duration after a turn that should
// have been 90 degrees measured measuredDegrees.
func CorrectedTurnDuration(d time.Duration, measuredDegrees float64) (time.Duration, error) {
	if measuredDegrees <= 0 {
		return 0, errors.New("angle must be positive")
	}
	return time.Duration(float64(d) * 90 / measuredDegrees), nil
}
