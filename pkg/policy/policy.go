// Package policy maps a sensor snapshot onto what the robot should do next.
//
// It is a fixed-priority rule table evaluated top to bottom every control
// cycle; the first matching rule wins.  The only state carried between cycles
// is the invalid range reading streak and the cruise speed ramp.
package policy

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/avoidbot/pkg/bounds"
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/irsensor"
	"github.com/tigerbot-team/avoidbot/pkg/motion"
	"github.com/tigerbot-team/avoidbot/pkg/ultrasonic"
)

// Snapshot is everything sampled in one control cycle.
type Snapshot struct {
	CaptureTime time.Time
	Obstacles   [irsensor.NumPositions]irsensor.Reading
	Range       ultrasonic.Reading
}

func (s Snapshot) Blocked(p irsensor.Position) bool {
	return s.Obstacles[p] == irsensor.Obstacle
}

func (s Snapshot) String() string {
	flags := make([]byte, irsensor.NumPositions)
	for i, r := range s.Obstacles {
		flags[i] = '.'
		if r == irsensor.Obstacle {
			flags[i] = 'X'
		}
	}
	return fmt.Sprintf("ir=%s range=%v", flags, s.Range)
}

// Band classifies the range reading.
type Band int

const (
	BandClear Band = iota
	BandSlow
	BandStop
	BandInvalid
)

func (b Band) String() string {
	switch b {
	case BandClear:
		return "clear"
	case BandSlow:
		return "slow"
	case BandStop:
		return "stop"
	case BandInvalid:
		return "invalid"
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

type Rule int

const (
	RuleHardStop Rule = iota + 1
	RuleFrontBoth
	RuleFrontLeft
	RuleFrontRight
	RuleLeftFlank
	RuleRightFlank
	RuleSlowDown
	RuleCruise
)

var ruleNames = map[Rule]string{
	RuleHardStop:   "hard-stop",
	RuleFrontBoth:  "front-both",
	RuleFrontLeft:  "front-left",
	RuleFrontRight: "front-right",
	RuleLeftFlank:  "left-flank",
	RuleRightFlank: "right-flank",
	RuleSlowDown:   "slow-down",
	RuleCruise:     "cruise",
}

func (r Rule) String() string {
	if n, ok := ruleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

type Config struct {
	StopCM       float64 `yaml:"stop_cm"`
	SlowCM       float64 `yaml:"slow_cm"`
	InvalidLimit int     `yaml:"invalid_limit"`

	SpeedStep float64 `yaml:"speed_step"`
	MaxSpeed  float64 `yaml:"max_speed"`
	MinSpeed  float64 `yaml:"min_speed"`
	SteerBias float64 `yaml:"steer_bias"`

	RecoveryPause     time.Duration `yaml:"recovery_pause"`
	BackupCM          float64       `yaml:"backup_cm"`
	RecoveryForwardCM float64       `yaml:"recovery_forward_cm"`
	WeaveForwardCM    float64       `yaml:"weave_forward_cm"`
}

func DefaultConfig() Config {
	return Config{
		StopCM:            1,
		SlowCM:            5,
		InvalidLimit:      2,
		SpeedStep:         5,
		MaxSpeed:          drive.MaxDuty,
		MinSpeed:          5,
		SteerBias:         10,
		RecoveryPause:     200 * time.Millisecond,
		BackupCM:          3,
		RecoveryForwardCM: 10,
		WeaveForwardCM:    14,
	}
}

func (c Config) Validate() error {
	if c.StopCM <= 0 || c.SlowCM <= c.StopCM {
		return errors.Errorf("need 0 < stop_cm < slow_cm, got %v and %v", c.StopCM, c.SlowCM)
	}
	if c.InvalidLimit < 1 {
		return errors.Errorf("invalid_limit must be at least 1, not %d", c.InvalidLimit)
	}
	if c.SpeedStep <= 0 {
		return errors.Errorf("speed_step must be positive, not %v", c.SpeedStep)
	}
	if c.MinSpeed < 0 || c.MinSpeed > c.MaxSpeed || c.MaxSpeed > drive.MaxDuty {
		return errors.Errorf("need 0 <= min_speed <= max_speed <= %v, got %v and %v",
			drive.MaxDuty, c.MinSpeed, c.MaxSpeed)
	}
	if c.SteerBias < 0 {
		return errors.Errorf("steer_bias must not be negative, not %v", c.SteerBias)
	}
	return nil
}

// Classify puts a range reading into its band.  An invalid reading is always
// BandInvalid; whether that forces a stop depends on the streak.
func (c Config) Classify(r ultrasonic.Reading) Band {
	switch {
	case !r.Valid():
		return BandInvalid
	case r.DistanceCM <= c.StopCM:
		return BandStop
	case r.DistanceCM <= c.SlowCM:
		return BandSlow
	}
	return BandClear
}

// SelectRule is the rule table.  It is pure: the same snapshot, band and
// forced-stop flag always give the same rule, and exactly one rule matches.
func SelectRule(s Snapshot, band Band, forcedStop bool) Rule {
	fl := s.Blocked(irsensor.FrontLeft)
	fr := s.Blocked(irsensor.FrontRight)
	leftFlank := s.Blocked(irsensor.SideLeftNear) || s.Blocked(irsensor.SideLeftFar)
	rightFlank := s.Blocked(irsensor.SideRightNear) || s.Blocked(irsensor.SideRightFar)
	flanksClear := !leftFlank && !rightFlank
	slow := band == BandSlow

	switch {
	case forcedStop || band == BandStop:
		return RuleHardStop
	case slow && fl && fr && flanksClear:
		return RuleFrontBoth
	case slow && fl && !fr && flanksClear:
		return RuleFrontLeft
	case slow && !fl && fr && flanksClear:
		return RuleFrontRight
	case !fl && !fr && leftFlank:
		return RuleLeftFlank
	case !fl && !fr && rightFlank:
		return RuleRightFlank
	case slow && !fl && !fr && flanksClear:
		return RuleSlowDown
	}
	return RuleCruise
}

type ActionKind int

const (
	ActStop ActionKind = iota
	ActManeuver
	ActDrive
)

func (k ActionKind) String() string {
	switch k {
	case ActStop:
		return "stop"
	case ActManeuver:
		return "maneuver"
	case ActDrive:
		return "drive"
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is the outcome of one decision.  Left and Right are the per-wheel
// cruise targets for ActDrive.
type Action struct {
	Rule     Rule
	Kind     ActionKind
	Maneuver motion.Maneuver
	Left     float64
	Right    float64

	Band         Band
	InvalidCount int
	CruiseSpeed  float64
}

func (a Action) String() string {
	switch a.Kind {
	case ActManeuver:
		return fmt.Sprintf("%v: %v", a.Rule, a.Maneuver)
	case ActDrive:
		return fmt.Sprintf("%v: drive %.0f/%.0f", a.Rule, a.Left, a.Right)
	}
	return fmt.Sprintf("%v: stop", a.Rule)
}

// Policy holds the state carried between cycles.
type Policy struct {
	cfg          Config
	invalidCount int
	cruiseSpeed  float64
}

func New(cfg Config) *Policy {
	return &Policy{cfg: cfg, cruiseSpeed: cfg.MaxSpeed}
}

func (p *Policy) Config() Config {
	return p.cfg
}

func (p *Policy) InvalidCount() int {
	return p.invalidCount
}

func (p *Policy) CruiseSpeed() float64 {
	return p.cruiseSpeed
}

// Reset forgets the invalid streak and puts the cruise speed back to maximum.
func (p *Policy) Reset() {
	p.invalidCount = 0
	p.cruiseSpeed = p.cfg.MaxSpeed
}

// Observe updates the invalid reading streak from s and reports the range
// band and whether the streak now forces a stop.  It does not touch the cruise
// speed, so it can be used to watch for a hard stop while a maneuver runs.
func (p *Policy) Observe(s Snapshot) (band Band, forcedStop bool) {
	if s.Range.Valid() {
		p.invalidCount = 0
	} else if p.invalidCount < p.cfg.InvalidLimit {
		p.invalidCount++
	}
	return p.cfg.Classify(s.Range), p.invalidCount >= p.cfg.InvalidLimit
}

// Decide runs one cycle of the rule table.
func (p *Policy) Decide(s Snapshot) Action {
	band, forced := p.Observe(s)

	rule := SelectRule(s, band, forced)
	action := Action{Rule: rule, Band: band, InvalidCount: p.invalidCount}

	switch rule {
	case RuleHardStop:
		action.Kind = ActStop
	case RuleFrontBoth, RuleFrontLeft, RuleFrontRight:
		action.Kind = ActManeuver
		action.Maneuver = p.recovery(rule)
		p.cruiseSpeed = p.cfg.MaxSpeed
	case RuleLeftFlank:
		p.rampUp()
		action.Kind = ActDrive
		action.Left, action.Right = p.steer(p.cfg.SteerBias, 0)
	case RuleRightFlank:
		p.rampUp()
		action.Kind = ActDrive
		action.Left, action.Right = p.steer(0, p.cfg.SteerBias)
	case RuleSlowDown:
		p.rampDown()
		action.Kind = ActDrive
		action.Left, action.Right = p.steer(0, 0)
	default:
		p.rampUp()
		action.Kind = ActDrive
		action.Left, action.Right = p.steer(0, 0)
	}
	action.CruiseSpeed = p.cruiseSpeed
	return action
}

// steer boosts the wheel on the obstacle's side, which turns the robot away
// from it.
func (p *Policy) steer(leftBias, rightBias float64) (left, right float64) {
	left = bounds.Clamp(p.cruiseSpeed+leftBias, 0, drive.MaxDuty)
	right = bounds.Clamp(p.cruiseSpeed+rightBias, 0, drive.MaxDuty)
	return
}

func (p *Policy) rampUp() {
	p.cruiseSpeed = bounds.Clamp(p.cruiseSpeed+p.cfg.SpeedStep, p.cfg.MinSpeed, p.cfg.MaxSpeed)
}

func (p *Policy) rampDown() {
	p.cruiseSpeed = bounds.Clamp(p.cruiseSpeed-p.cfg.SpeedStep, p.cfg.MinSpeed, p.cfg.MaxSpeed)
}

func (p *Policy) recovery(rule Rule) motion.Maneuver {
	c := p.cfg
	switch rule {
	case RuleFrontBoth:
		return motion.NewManeuver(rule.String(),
			motion.Pause(c.RecoveryPause),
			motion.Back(c.BackupCM),
			motion.TurnRight90(),
			motion.Forward(c.RecoveryForwardCM),
			motion.TurnRight90(),
		)
	case RuleFrontLeft:
		// Weave round the obstacle on the right.
		return motion.NewManeuver(rule.String(),
			motion.Pause(c.RecoveryPause),
			motion.Back(c.BackupCM),
			motion.TurnRight90(),
			motion.Forward(c.WeaveForwardCM),
			motion.TurnLeft90(),
			motion.Forward(c.WeaveForwardCM),
			motion.TurnLeft90(),
			motion.Forward(c.WeaveForwardCM),
			motion.TurnRight90(),
		)
	case RuleFrontRight:
		return motion.NewManeuver(rule.String(),
			motion.Pause(c.RecoveryPause),
			motion.Back(c.BackupCM),
			motion.TurnLeft90(),
			motion.Forward(c.WeaveForwardCM),
			motion.TurnRight90(),
			motion.Forward(c.WeaveForwardCM),
			motion.TurnRight90(),
			motion.Forward(c.WeaveForwardCM),
			motion.TurnLeft90(),
		)
	}
	return motion.Maneuver{}
}
