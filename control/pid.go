package control

import (
	"math"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// PIDConfig holds the gains of a PID. Zero MaxIntegral or MaxOutput means unbounded.
type PIDConfig struct {
	Kp          float64 `json:"kp"`
	Ki          float64 `json:"ki,omitempty"`
	Kd          float64 `json:"kd"`
	MaxIntegral float64 `json:"max_integral,omitempty"`
	MaxOutput   float64 `json:"max_output,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *PIDConfig) Validate(path string) error {
	if cfg.Kp == 0 && cfg.Ki == 0 && cfg.Kd == 0 {
		return utils.NewConfigValidationError(path, errors.New("should have at least one of kp, ki or kd"))
	}
	if cfg.Kp < 0 || cfg.Ki < 0 || cfg.Kd < 0 || cfg.MaxIntegral < 0 || cfg.MaxOutput < 0 {
		return utils.NewConfigValidationError(path, errors.New("gains and limits cannot be negative"))
	}
	return nil
}

// PID is a PID controller fed with an error and its rate. With Ki zero it is the PD used to track
// position and velocity references.
type PID struct {
	cfg      PIDConfig
	integral float64
	sat      int
}

// NewPID returns a PID with the given gains.
func NewPID(cfg PIDConfig) *PID {
	return &PID{cfg: cfg}
}

// Next returns the control output for a step of dt seconds. It returns false when the integral
// saturated during the step.
func (p *PID) Next(err, errRate, dt float64) (float64, bool) {
	ok := true
	if p.cfg.Ki != 0 && !((p.sat > 0 && err > 0) || (p.sat < 0 && err < 0)) {
		p.integral += p.cfg.Ki * err * dt
		p.sat = 0
		if limit := p.cfg.MaxIntegral; limit > 0 && math.Abs(p.integral) > limit {
			p.integral = math.Copysign(limit, p.integral)
			p.sat = int(math.Copysign(1, p.integral))
			ok = false
		}
	}
	out := p.cfg.Kp*err + p.integral + p.cfg.Kd*errRate
	if limit := p.cfg.MaxOutput; limit > 0 {
		out = math.Max(-limit, math.Min(limit, out))
	}
	return out, ok
}

// Reset clears the integral.
func (p *PID) Reset() {
	p.integral = 0
	p.sat = 0
}

// UpdateConfig replaces the gains and resets the integral.
func (p *PID) UpdateConfig(cfg PIDConfig) {
	p.cfg = cfg
	p.Reset()
}

// Config returns the gains.
func (p *PID) Config() PIDConfig {
	return p.cfg
}
