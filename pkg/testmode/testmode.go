package testmode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/motion"
)

const (
	SideCM  = 20
	LapRest = 5 * time.Second
)

// TestMode drives a square over and over, ignoring the sensors.  If the robot
// does not end up where it started, ms_per_cm or turn_duration need tuning.
type TestMode struct {
	mover  *motion.Mover
	clock  clock.Clock
	cancel context.CancelFunc
	stopWG sync.WaitGroup
}

func New(motors drive.Output, clk clock.Clock, cfg motion.Config) *TestMode {
	return &TestMode{
		mover: motion.New(cfg, motors, clk),
		clock: clk,
	}
}

func (t *TestMode) Name() string {
	return "Test mode"
}

func (t *TestMode) StartupSound() string {
	return "/sounds/testmode.wav"
}

func (t *TestMode) Start(ctx context.Context) {
	t.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, t.cancel = context.WithCancel(ctx)
	go t.loop(loopCtx)
}

func (t *TestMode) Stop() {
	t.cancel()
	t.stopWG.Wait()
}

func (t *TestMode) loop(ctx context.Context) {
	defer t.stopWG.Done()
	defer func() {
		_ = t.mover.Brake()
	}()

	for ctx.Err() == nil {
		if err := t.Lap(ctx); err != nil {
			fmt.Println("TestMode: lap failed:", err)
			return
		}
		t.clock.Sleep(LapRest)
	}
}

// Square is one calibration lap.
func Square() motion.Maneuver {
	var steps []motion.Request
	for i := 0; i < 4; i++ {
		steps = append(steps, motion.Forward(SideCM), motion.TurnRight90())
	}
	return motion.NewManeuver("square", steps...)
}

// Lap drives one square, checking for cancellation between primitives.
func (t *TestMode) Lap(ctx context.Context) error {
	for _, step := range Square().Steps {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Println("TestMode:", step)
		if err := t.mover.Execute(step); err != nil {
			return err
		}
	}
	return nil
}
