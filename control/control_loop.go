package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"

	"go.viam.com/biped/logging"
)

// MaxFrequency is the highest loop frequency accepted, in Hz.
const MaxFrequency = 2000.

// Stepper is advanced once per loop tick.
type Stepper interface {
	Step(ctx context.Context, dt time.Duration) error
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	Frequency float64 `json:"frequency_hz"`
}

// Validate ensures all parts of the config are valid.
func (cfg *LoopConfig) Validate(path string) error {
	if cfg.Frequency <= 0 || cfg.Frequency > MaxFrequency {
		return utils.NewConfigValidationError(path,
			errors.Errorf("loop frequency should be in (0, %v] Hz, got %v", MaxFrequency, cfg.Frequency))
	}
	return nil
}

// Loop ticks a Stepper at a fixed frequency from a single goroutine. A step returning an error
// stops the loop; the error is kept for Err.
type Loop struct {
	cfg     LoopConfig
	logger  logging.Logger
	clock   clock.Clock
	stepper Stepper
	dt      time.Duration

	activeBackgroundWorkers sync.WaitGroup
	cancelCtx               context.Context
	cancel                  context.CancelFunc

	running  atomic.Bool
	ticks    atomic.Uint64
	overruns atomic.Uint64

	errMu sync.Mutex
	err   error
}

// NewLoop constructs a loop for stepper. A nil clk uses the wall clock.
func NewLoop(logger logging.Logger, cfg LoopConfig, stepper Stepper, clk clock.Clock) (*Loop, error) {
	if err := cfg.Validate("loop"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		cfg:     cfg,
		logger:  logger,
		clock:   clk,
		stepper: stepper,
		dt:      time.Duration(float64(time.Second) / cfg.Frequency),
	}, nil
}

// Dt returns the tick period.
func (l *Loop) Dt() time.Duration {
	return l.dt
}

// Start starts ticking.
func (l *Loop) Start() error {
	if l.running.Load() {
		return errors.New("control loop already running")
	}
	l.cancelCtx, l.cancel = context.WithCancel(context.Background())
	ticker := l.clock.Ticker(l.dt)
	l.running.Store(true)
	l.logger.Infof("running loop at %1.1f Hz (%v)", l.cfg.Frequency, l.dt)

	l.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		defer ticker.Stop()
		defer l.running.Store(false)
		for {
			select {
			case <-l.cancelCtx.Done():
				return
			case <-ticker.C:
			}
			start := l.clock.Now()
			if err := l.stepper.Step(l.cancelCtx, l.dt); err != nil {
				l.setErr(err)
				l.logger.Errorw("control loop stopped", "error", err, "tick", l.ticks.Load())
				return
			}
			l.ticks.Inc()
			if l.clock.Since(start) > l.dt {
				l.overruns.Inc()
			}
		}
	}, l.activeBackgroundWorkers.Done)
	return nil
}

func (l *Loop) setErr(err error) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	l.err = err
}

// Err returns the error that stopped the loop.
func (l *Loop) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// Running reports whether the loop goroutine is alive.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Ticks returns the number of completed steps.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Overruns returns the number of steps that took longer than a tick.
func (l *Loop) Overruns() uint64 {
	return l.overruns.Load()
}

// Wait blocks until the loop goroutine exits.
func (l *Loop) Wait() {
	l.activeBackgroundWorkers.Wait()
}

// Stop stops the loop and waits for the running step to finish.
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.activeBackgroundWorkers.Wait()
}
