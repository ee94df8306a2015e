// Package pid implements the per-wheel duty cycle regulator.
//
// The regulator is unidirectional: its output is a duty cycle in [OutMin,
// OutMax] and never asks for reverse torque.  It has no notion of elapsed time;
// Compute must be called once per control cycle for each wheel, otherwise the
// integral and derivative terms silently lose their meaning.
package pid

import "github.com/tigerbot-team/avoidbot/pkg/bounds"

const (
	DefaultIntegralLimit = 500
	DefaultOutMin        = 0
	DefaultOutMax        = 100
)

type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// DefaultGains are the values the drive train was tuned with.
var DefaultGains = Gains{Kp: 2.5, Ki: 0.1, Kd: 0.05}

type Regulator struct {
	Gains

	IntegralLimit float64
	OutMin        float64
	OutMax        float64

	// State from the most recent Compute.
	Target    float64
	Measured  float64
	Error     float64
	LastError float64
	SumError  float64
	Output    float64
}

func New(g Gains) *Regulator {
	return &Regulator{
		Gains:         g,
		IntegralLimit: DefaultIntegralLimit,
		OutMin:        DefaultOutMin,
		OutMax:        DefaultOutMax,
	}
}

// Compute runs one step of the controller and returns the clamped output.
func (r *Regulator) Compute(target, measured float64) float64 {
	r.Target = target
	r.Measured = measured
	r.Error = target - measured

	r.SumError = bounds.Clamp(r.SumError+r.Error, -r.IntegralLimit, r.IntegralLimit)

	output := r.Kp*r.Error + r.Ki*r.SumError + r.Kd*(r.Error-r.LastError)
	r.Output = bounds.Clamp(output, r.OutMin, r.OutMax)

	r.LastError = r.Error
	return r.Output
}

// Reset clears the accumulated state but keeps the gains and limits.
func (r *Regulator) Reset() {
	*r = Regulator{
		Gains:         r.Gains,
		IntegralLimit: r.IntegralLimit,
		OutMin:        r.OutMin,
		OutMax:        r.OutMax,
	}
}
