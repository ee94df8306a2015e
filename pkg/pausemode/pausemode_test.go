package pausemode

import (
	"context"
	"testing"

	"github.com/tigerbot-team/avoidbot/pkg/drive"
)

func TestStartBrakes(t *testing.T) {
	motors := &drive.Dummy{Quiet: true}
	_ = motors.Drive(drive.Straight(80, 80))

	m := New(motors)
	m.Start(context.Background())
	m.Stop()

	if !motors.Current().IsStop() {
		t.Errorf("expected motors to be braked, got %v", motors.Current())
	}
}
