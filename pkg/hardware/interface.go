package hardware

import (
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/policy"
)

type Interface interface {
	// Snapshot samples every sensor once.  It blocks for the debounce settle
	// time of each IR sensor and for one ultrasonic ping.
	Snapshot() policy.Snapshot

	drive.Output

	PlaySound(path string)

	Shutdown()
}
