package pausemode

import (
	"context"
	"fmt"

	"github.com/tigerbot-team/avoidbot/pkg/drive"
)

// PauseMode parks the robot: motors braked, nothing else.
type PauseMode struct {
	Motors drive.Output
}

func New(motors drive.Output) *PauseMode {
	return &PauseMode{Motors: motors}
}

func (t *PauseMode) Name() string {
	return "Pause mode"
}

func (t *PauseMode) StartupSound() string {
	return "/sounds/pausemode.wav"
}

func (t *PauseMode) Start(ctx context.Context) {
	if err := t.Motors.Drive(drive.Stop()); err != nil {
		fmt.Println("PauseMode: failed to brake:", err)
	}
}

func (t *PauseMode) Stop() {
}
