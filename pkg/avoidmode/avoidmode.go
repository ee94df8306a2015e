// Package avoidmode is the obstacle avoiding control loop: sample the sensors,
// run the rule table, act, repeat.
package avoidmode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/hardware"
	"github.com/tigerbot-team/avoidbot/pkg/motion"
	"github.com/tigerbot-team/avoidbot/pkg/policy"
	"github.com/tigerbot-team/avoidbot/pkg/screen"
	"github.com/tigerbot-team/avoidbot/pkg/sound"
)

type Execution string

const (
	// Blocking runs each maneuver to completion inside one cycle.  The robot
	// does not look at its sensors until the maneuver is over.
	Blocking Execution = "blocking"
	// Stepped advances a maneuver by at most one step per cycle and keeps
	// sampling, so a hard stop can cut a maneuver short.
	Stepped Execution = "stepped"
)

type Config struct {
	Execution     Execution     `yaml:"execution"`
	CycleInterval time.Duration `yaml:"cycle_interval"`
	AlertSound    string        `yaml:"alert_sound"`
}

func DefaultConfig() Config {
	return Config{
		Execution:     Blocking,
		CycleInterval: 5 * time.Millisecond,
		AlertSound:    sound.Alert,
	}
}

func (c Config) Validate() error {
	switch c.Execution {
	case Blocking, Stepped:
	default:
		return errors.Errorf("unknown execution %q", c.Execution)
	}
	if c.CycleInterval < 0 {
		return errors.Errorf("cycle_interval must not be negative, not %v", c.CycleInterval)
	}
	return nil
}

type AvoidMode struct {
	hw     hardware.Interface
	clock  clock.Clock
	cfg    Config
	policy *policy.Policy
	mover  *motion.Mover

	// Only touched by the loop goroutine (or by Cycle in tests).
	running  *motion.Execution
	stopping bool
	last     policy.Action

	cancel context.CancelFunc
	stopWG sync.WaitGroup
}

func New(hw hardware.Interface, clk clock.Clock, cfg Config, policyCfg policy.Config, motionCfg motion.Config) *AvoidMode {
	return &AvoidMode{
		hw:     hw,
		clock:  clk,
		cfg:    cfg,
		policy: policy.New(policyCfg),
		mover:  motion.New(motionCfg, hw, clk),
	}
}

func (m *AvoidMode) Name() string {
	return "Avoid mode"
}

func (m *AvoidMode) StartupSound() string {
	return "/sounds/avoidmode.wav"
}

func (m *AvoidMode) Start(ctx context.Context) {
	m.policy.Reset()
	m.mover.ResetRegulators()
	m.running = nil
	m.stopping = false

	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx)
}

func (m *AvoidMode) Stop() {
	m.cancel()
	m.stopWG.Wait()
}

func (m *AvoidMode) loop(ctx context.Context) {
	defer m.stopWG.Done()
	defer func() {
		if err := m.mover.Brake(); err != nil {
			fmt.Println("AvoidMode: failed to brake on exit:", err)
		}
	}()

	for ctx.Err() == nil {
		if _, err := m.Cycle(); err != nil {
			fmt.Println("AvoidMode: cycle failed:", err)
			screen.SetNotice("DRIVE FAULT", screen.LevelErr)
		}
		if m.cfg.CycleInterval > 0 {
			m.clock.Sleep(m.cfg.CycleInterval)
		}
	}
}

// Cycle runs one iteration of the control loop and returns what was decided.
func (m *AvoidMode) Cycle() (policy.Action, error) {
	snap := m.hw.Snapshot()

	if m.running != nil {
		return m.stepManeuver(snap)
	}

	action := m.policy.Decide(snap)
	err := m.act(action)
	m.publish(snap, action)
	m.last = action
	return action, err
}

func (m *AvoidMode) act(action policy.Action) error {
	m.noteStop(action.Rule == policy.RuleHardStop)

	switch action.Kind {
	case policy.ActStop:
		return m.mover.Brake()
	case policy.ActManeuver:
		if m.cfg.Execution == Stepped {
			m.running = m.mover.Start(action.Maneuver)
			_, err := m.step()
			return err
		}
		return m.mover.Run(action.Maneuver)
	case policy.ActDrive:
		_, err := m.mover.Cruise(action.Left, action.Right)
		return err
	}
	return errors.Errorf("unknown action %v", action.Kind)
}

// stepManeuver keeps watching for a hard stop while a stepped maneuver runs.
// Nothing else can interrupt it.
func (m *AvoidMode) stepManeuver(snap policy.Snapshot) (policy.Action, error) {
	band, forced := m.policy.Observe(snap)
	if forced || band == policy.BandStop {
		action := policy.Action{
			Rule:         policy.RuleHardStop,
			Kind:         policy.ActStop,
			Band:         band,
			InvalidCount: m.policy.InvalidCount(),
			CruiseSpeed:  m.policy.CruiseSpeed(),
		}
		err := m.running.Abort()
		m.running = nil
		m.noteStop(true)
		m.publish(snap, action)
		m.last = action
		return action, err
	}

	action := m.last
	_, err := m.step()
	m.publish(snap, action)
	return action, err
}

func (m *AvoidMode) step() (motion.Status, error) {
	status, err := m.running.Step()
	if err != nil || status != motion.InProgress {
		m.running = nil
	}
	return status, err
}

// noteStop plays the alert once on entry to each hard stop episode.
func (m *AvoidMode) noteStop(stopped bool) {
	if stopped && !m.stopping {
		fmt.Println("AvoidMode: hard stop")
		if m.cfg.AlertSound != "" {
			m.hw.PlaySound(m.cfg.AlertSound)
		}
	}
	m.stopping = stopped
}

// Busy reports whether a stepped maneuver is in progress.
func (m *AvoidMode) Busy() bool {
	return m.running != nil
}

func (m *AvoidMode) publish(snap policy.Snapshot, action policy.Action) {
	current := m.hw.Current()
	maneuver := ""
	if m.running != nil {
		idx, req, _ := m.running.Current()
		maneuver = fmt.Sprintf("%s %d:%v", m.running.Maneuver().Name, idx, req)
	}
	screen.Update(func(s *screen.Status) {
		s.Rule = action.Rule.String()
		s.Range = snap.Range.String()
		s.Left = wheelText(current.Left)
		s.Right = wheelText(current.Right)
		s.InvalidCount = action.InvalidCount
		s.Maneuver = maneuver
	})
}

func wheelText(w drive.Wheel) string {
	switch w.Dir {
	case drive.Forward:
		return fmt.Sprintf("+%.0f", w.Duty)
	case drive.Backward:
		return fmt.Sprintf("-%.0f", w.Duty)
	}
	return "0"
}
