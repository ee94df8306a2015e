package ultrasonic

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/gpio"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
)

// pingSim plays both the trigger and echo lines of a ranging module.  Every
// echo read costs one step of simulated time so busy-wait loops make progress.
type pingSim struct {
	clk *clock.Mock

	riseAfter time.Duration
	width     time.Duration
	noEcho    bool
	stuckHigh bool
	step      time.Duration

	triggerHigh bool
	fired       bool
	firedAt     time.Time
}

func (p *pingSim) Out(l gpio.Level) error {
	if p.triggerHigh && l == gpio.Low {
		p.fired = true
		p.firedAt = p.clk.Now()
	}
	p.triggerHigh = l == gpio.High
	return nil
}

func (p *pingSim) Read() gpio.Level {
	p.clk.Advance(p.step)
	if !p.fired || p.noEcho {
		return gpio.Low
	}
	t := p.clk.Since(p.firedAt)
	if t < p.riseAfter {
		return gpio.Low
	}
	if p.stuckHigh || t < p.riseAfter+p.width {
		return gpio.High
	}
	return gpio.Low
}

func widthFor(cm float64) time.Duration {
	return time.Duration(cm / CMPerMicrosecond * float64(time.Microsecond))
}

func newSim(cfg Config) (*Sensor, *pingSim, *clock.Mock) {
	clk := clock.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sim := &pingSim{
		clk:       clk,
		riseAfter: 400 * time.Microsecond,
		step:      time.Microsecond,
	}
	return New(cfg, sim, sim, clk), sim, clk
}

func TestEchoToCentimeters(t *testing.T) {
	cfg := DefaultConfig()

	r := EchoToCentimeters(0, cfg)
	assert.False(t, r.Valid())
	assert.ErrorIs(t, r.Error, ErrTooClose)
	assert.Equal(t, 0.0, r.DistanceCM)

	r = EchoToCentimeters(widthFor(15), cfg)
	require.True(t, r.Valid())
	assert.InDelta(t, 15.0, r.DistanceCM, 0.001)

	r = EchoToCentimeters(30*time.Millisecond, cfg)
	require.True(t, r.Valid())
	assert.Equal(t, cfg.MaxDistanceCM, r.DistanceCM)

	// Just under the minimum.
	r = EchoToCentimeters(50*time.Microsecond, cfg)
	assert.ErrorIs(t, r.Error, ErrTooClose)
}

func TestMeasure(t *testing.T) {
	s, sim, _ := newSim(DefaultConfig())
	sim.width = widthFor(15)

	r := s.Measure()
	require.True(t, r.Valid(), "reading: %v", r)
	assert.InDelta(t, 15.0, r.DistanceCM, 0.05)
	assert.False(t, sim.triggerHigh, "trigger left high")
}

func TestMeasureBeyondMaxIsClamped(t *testing.T) {
	s, sim, _ := newSim(DefaultConfig())
	sim.width = widthFor(408)

	r := s.Measure()
	require.True(t, r.Valid(), "reading: %v", r)
	assert.Equal(t, 400.0, r.DistanceCM)
}

func TestMeasureNoEcho(t *testing.T) {
	cfg := DefaultConfig()
	s, sim, clk := newSim(cfg)
	sim.noEcho = true

	start := clk.Now()
	r := s.Measure()
	assert.ErrorIs(t, r.Error, ErrNoEcho)
	elapsed := clk.Since(start)
	assert.GreaterOrEqual(t, elapsed, cfg.RiseTimeout)
	assert.Less(t, elapsed, cfg.RiseTimeout+time.Millisecond)
}

func TestMeasureFallTimeoutPolicies(t *testing.T) {
	cfg := DefaultConfig()
	s, sim, _ := newSim(cfg)
	sim.stuckHigh = true
	r := s.Measure()
	assert.ErrorIs(t, r.Error, ErrOutOfRange)

	cfg.OnFallTimeout = TimeoutFar
	s, sim, _ = newSim(cfg)
	sim.stuckHigh = true
	r = s.Measure()
	require.True(t, r.Valid())
	assert.Equal(t, cfg.MaxDistanceCM, r.DistanceCM)
}

func TestMeasureEnforcesMinInterval(t *testing.T) {
	cfg := DefaultConfig()
	s, sim, clk := newSim(cfg)
	sim.width = widthFor(50)

	s.Measure()
	clk.ResetSleeps()
	// Re-arm the simulated module for the second ping.
	sim.fired = false
	end := clk.Now()
	s.Measure()

	sleeps := clk.Sleeps()
	require.NotEmpty(t, sleeps)
	assert.Equal(t, cfg.MinInterval, sleeps[0], "expected a full settle gap before the next ping")
	assert.GreaterOrEqual(t, clk.Since(end), cfg.MinInterval)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.OnFallTimeout = "maybe"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxDistanceCM = 0
	assert.Error(t, bad.Validate())
}

func TestErrorsCarryStacks(t *testing.T) {
	type stackTracer interface{ StackTrace() errors.StackTrace }

	bad := DefaultConfig()
	bad.OnFallTimeout = "maybe"
	err := bad.Validate()
	require.Error(t, err)
	assert.Implements(t, (*stackTracer)(nil), err)

	cfg := DefaultConfig()
	cfg.TriggerPin = "NO_SUCH_PIN"
	_, err = Open(cfg, clock.Real{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO_SUCH_PIN")
	assert.Implements(t, (*stackTracer)(nil), err)
}
