package motion

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Maneuver is a named sequence of primitives.
type Maneuver struct {
	Name  string
	Steps []Request
}

func NewManeuver(name string, steps ...Request) Maneuver {
	return Maneuver{Name: name, Steps: steps}
}

func (m Maneuver) String() string {
	parts := make([]string, len(m.Steps))
	for i, s := range m.Steps {
		parts[i] = s.String()
	}
	return fmt.Sprintf("%s[%s]", m.Name, strings.Join(parts, ", "))
}

// Run executes every step in order and blocks until the last has finished.
func (m *Mover) Run(man Maneuver) error {
	fmt.Println("Motion: running", man)
	for i, step := range man.Steps {
		if err := m.Execute(step); err != nil {
			return errors.Wrapf(err, "%s step %d", man.Name, i)
		}
	}
	return nil
}

type Status int

const (
	InProgress Status = iota
	Done
	Aborted
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Execution is a maneuver that is advanced a little on every control cycle
// instead of blocking.  Each call to Step starts the next primitive or
// checks whether the running one has reached its deadline.
type Execution struct {
	lock     sync.Mutex
	mover    *Mover
	maneuver Maneuver
	index    int
	running  bool
	deadline time.Time
	status   Status
}

func (m *Mover) Start(man Maneuver) *Execution {
	fmt.Println("Motion: starting", man)
	return &Execution{mover: m, maneuver: man}
}

func (e *Execution) Step() (Status, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.status != InProgress {
		return e.status, nil
	}

	if e.running {
		if e.mover.clk.Now().Before(e.deadline) {
			return InProgress, nil
		}
		e.running = false
		e.index++
		if err := e.mover.Brake(); err != nil {
			return e.status, err
		}
	}

	if e.index >= len(e.maneuver.Steps) {
		e.status = Done
		return Done, nil
	}

	deadline, err := e.mover.begin(e.maneuver.Steps[e.index])
	if err != nil {
		return e.status, errors.Wrapf(err, "%s step %d", e.maneuver.Name, e.index)
	}
	e.deadline = deadline
	e.running = true
	return InProgress, nil
}

// Abort brakes and abandons the remaining steps.
func (e *Execution) Abort() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.status != InProgress {
		return nil
	}
	e.status = Aborted
	e.running = false
	fmt.Println("Motion: aborted", e.maneuver.Name, "at step", e.index)
	return e.mover.Brake()
}

func (e *Execution) Status() Status {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.status
}

// Current returns the index and request of the step being executed.
func (e *Execution) Current() (int, Request, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.index >= len(e.maneuver.Steps) {
		return e.index, Request{}, false
	}
	return e.index, e.maneuver.Steps[e.index], e.running
}

func (e *Execution) Maneuver() Maneuver {
	return e.maneuver
}
