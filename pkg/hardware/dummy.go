package hardware

import (
	"fmt"
	"sync"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/policy"
	"github.com/tigerbot-team/avoidbot/pkg/ultrasonic"
)

// Dummy replays a script of snapshots instead of reading sensors and records
// the motor commands it is given.  Once the script runs out the last snapshot
// repeats; an empty script reads as open floor.
type Dummy struct {
	*drive.Dummy

	lock   sync.Mutex
	clock  clock.Clock
	script []policy.Snapshot
	next   int
	sounds []string
	quiet  bool
}

func NewDummy(clk clock.Clock, script ...policy.Snapshot) *Dummy {
	return &Dummy{
		Dummy:  &drive.Dummy{},
		clock:  clk,
		script: script,
	}
}

// SetQuiet turns off the per-call logging.
func (d *Dummy) SetQuiet(quiet bool) {
	d.lock.Lock()
	d.quiet = quiet
	d.lock.Unlock()
	d.Dummy.SetQuiet(quiet)
}

// Queue appends snapshots to the script.
func (d *Dummy) Queue(s ...policy.Snapshot) {
	d.lock.Lock()
	d.script = append(d.script, s...)
	d.lock.Unlock()
}

func (d *Dummy) Snapshot() policy.Snapshot {
	d.lock.Lock()
	defer d.lock.Unlock()

	var s policy.Snapshot
	switch {
	case d.next < len(d.script):
		s = d.script[d.next]
		d.next++
	case len(d.script) > 0:
		s = d.script[len(d.script)-1]
	default:
		s.Range = ultrasonic.At(ultrasonic.DefaultConfig().MaxDistanceCM)
	}
	s.CaptureTime = d.clock.Now()
	if !d.quiet {
		fmt.Println("DHW: Snapshot", s)
	}
	return s
}

func (d *Dummy) PlaySound(path string) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if !d.quiet {
		fmt.Printf("DHW: PlaySound path=%v\n", path)
	}
	d.sounds = append(d.sounds, path)
}

func (d *Dummy) Sounds() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string(nil), d.sounds...)
}

func (d *Dummy) Shutdown() {
	fmt.Println("DHW: Shutdown")
	_ = d.Drive(drive.Stop())
}

var _ Interface = (*Dummy)(nil)
