package avoidmode

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/hardware"
	"github.com/tigerbot-team/avoidbot/pkg/irsensor"
	"github.com/tigerbot-team/avoidbot/pkg/motion"
	"github.com/tigerbot-team/avoidbot/pkg/policy"
	"github.com/tigerbot-team/avoidbot/pkg/screen"
	"github.com/tigerbot-team/avoidbot/pkg/sound"
	"github.com/tigerbot-team/avoidbot/pkg/ultrasonic"
)

func snap(cm float64, blocked ...irsensor.Position) policy.Snapshot {
	s := policy.Snapshot{Range: ultrasonic.At(cm)}
	for _, p := range blocked {
		s.Obstacles[p] = irsensor.Obstacle
	}
	return s
}

func invalid() policy.Snapshot {
	return policy.Snapshot{Range: ultrasonic.Invalid(ultrasonic.ErrOutOfRange)}
}

func newMode(t *testing.T, execution Execution, script ...policy.Snapshot) (*AvoidMode, *hardware.Dummy, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	hw := hardware.NewDummy(clk, script...)
	hw.SetQuiet(true)

	cfg := DefaultConfig()
	cfg.Execution = execution
	require.NoError(t, cfg.Validate())

	return New(hw, clk, cfg, policy.DefaultConfig(), motion.DefaultConfig()), hw, clk
}

func TestBlockingRecovery(t *testing.T) {
	m, hw, clk := newMode(t, Blocking, snap(4, irsensor.FrontLeft, irsensor.FrontRight))

	action, err := m.Cycle()
	require.NoError(t, err)
	assert.Equal(t, policy.RuleFrontBoth, action.Rule)

	expected := []drive.Command{
		drive.Stop(), drive.Stop(),
		drive.Reverse(99, 99), drive.Stop(),
		drive.PivotRight(99), drive.Stop(),
		drive.Straight(99, 99), drive.Stop(),
		drive.PivotRight(99), drive.Stop(),
	}
	if diff := cmp.Diff(expected, hw.History()); diff != "" {
		t.Errorf("unexpected commands (-want +got):\n%s", diff)
	}
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		60 * time.Millisecond,
		800 * time.Millisecond,
		200 * time.Millisecond,
		800 * time.Millisecond,
	}, clk.Sleeps())
	assert.False(t, m.Busy())
}

func TestCruiseAndSlowDown(t *testing.T) {
	m, hw, _ := newMode(t, Blocking, snap(100), snap(4), snap(4), snap(20, irsensor.SideRightNear))

	for i := 0; i < 4; i++ {
		_, err := m.Cycle()
		require.NoError(t, err)
	}
	assert.Equal(t, []drive.Command{
		drive.Straight(99, 99),
		drive.Straight(94, 94),
		drive.Straight(89, 89),
		drive.Straight(94, 99),
	}, hw.History())

	status := screen.Current()
	assert.Equal(t, "right-flank", status.Rule)
	assert.Equal(t, "+94", status.Left)
	assert.Equal(t, "+99", status.Right)
}

func TestSpeedRampReachesMotors(t *testing.T) {
	var script []policy.Snapshot
	for i := 0; i < 20; i++ {
		script = append(script, snap(4))
	}
	for i := 0; i < 12; i++ {
		script = append(script, snap(100))
	}
	m, hw, _ := newMode(t, Blocking, script...)
	step := policy.DefaultConfig().SpeedStep

	prev := drive.MaxDuty
	for i := range script {
		action, err := m.Cycle()
		require.NoError(t, err)
		require.Equal(t, policy.ActDrive, action.Kind)

		applied := hw.Current()
		assert.Equal(t, drive.Straight(action.Left, action.Right), applied, "cycle %d", i)
		duty := applied.Left.Duty
		assert.True(t, duty >= 0 && duty <= drive.MaxDuty, "cycle %d duty %v", i, duty)
		assert.LessOrEqual(t, math.Abs(duty-prev), step, "cycle %d: %v -> %v", i, prev, duty)
		prev = duty
	}
	assert.Equal(t, drive.Straight(65, 65), hw.Current())
}

func TestForcedStopAlertsOncePerEpisode(t *testing.T) {
	m, hw, _ := newMode(t, Blocking,
		invalid(), invalid(), invalid(), snap(50),
		invalid(), invalid(),
	)

	var rules []policy.Rule
	for i := 0; i < 6; i++ {
		action, err := m.Cycle()
		require.NoError(t, err)
		rules = append(rules, action.Rule)
	}

	assert.Equal(t, []policy.Rule{
		policy.RuleCruise,
		policy.RuleHardStop,
		policy.RuleHardStop,
		policy.RuleCruise,
		policy.RuleCruise,
		policy.RuleHardStop,
	}, rules)
	assert.Equal(t, []string{sound.Alert, sound.Alert}, hw.Sounds())
	assert.True(t, hw.Current().IsStop())
}

func TestSteppedManeuverAbortsOnHardStop(t *testing.T) {
	m, hw, clk := newMode(t, Stepped,
		snap(3, irsensor.FrontLeft),
		snap(40),
		snap(40),
		snap(0.5),
		snap(40),
	)

	action, err := m.Cycle()
	require.NoError(t, err)
	assert.Equal(t, policy.RuleFrontLeft, action.Rule)
	assert.True(t, m.Busy())
	assert.True(t, hw.Current().IsStop(), "maneuver opens with a pause")

	clk.Advance(200 * time.Millisecond)
	_, err = m.Cycle()
	require.NoError(t, err)
	assert.Equal(t, drive.Reverse(99, 99), hw.Current())
	assert.Contains(t, screen.Current().Maneuver, "front-left 1:")

	_, err = m.Cycle()
	require.NoError(t, err)
	assert.Equal(t, drive.Reverse(99, 99), hw.Current(), "step still running")

	action, err = m.Cycle()
	require.NoError(t, err)
	assert.Equal(t, policy.RuleHardStop, action.Rule)
	assert.False(t, m.Busy())
	assert.True(t, hw.Current().IsStop())
	assert.Equal(t, []string{sound.Alert}, hw.Sounds())

	action, err = m.Cycle()
	require.NoError(t, err)
	assert.Equal(t, policy.RuleCruise, action.Rule)
	assert.Empty(t, clk.Sleeps(), "stepped mode never blocks")
}

func TestSteppedManeuverCompletes(t *testing.T) {
	m, hw, clk := newMode(t, Stepped, snap(3, irsensor.FrontRight), snap(60))

	_, err := m.Cycle()
	require.NoError(t, err)
	cycles := 1
	for m.Busy() {
		clk.Advance(time.Second)
		_, err := m.Cycle()
		require.NoError(t, err)
		cycles++
		require.Less(t, cycles, 20, "maneuver never finished")
	}
	// Nine steps, then one more cycle to see the last one finish.
	assert.Equal(t, 10, cycles)
	assert.True(t, hw.Current().IsStop())

	action, err := m.Cycle()
	require.NoError(t, err)
	assert.Equal(t, policy.RuleCruise, action.Rule)
	assert.Equal(t, drive.Straight(99, 99), hw.Current())
}

func TestStartStop(t *testing.T) {
	hw := hardware.NewDummy(clock.Real{})
	hw.SetQuiet(true)
	cfg := DefaultConfig()
	cfg.CycleInterval = time.Millisecond
	m := New(hw, clock.Real{}, cfg, policy.DefaultConfig(), motion.DefaultConfig())

	m.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	history := hw.History()
	require.True(t, len(history) >= 2)
	assert.Equal(t, drive.Straight(99, 99), history[0])
	assert.True(t, history[len(history)-1].IsStop(), "motors are braked when the mode stops")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.Execution = "eventually"
	assert.Error(t, cfg.Validate())
	cfg = DefaultConfig()
	cfg.CycleInterval = -time.Second
	assert.Error(t, cfg.Validate())
}
