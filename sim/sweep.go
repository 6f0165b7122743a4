package sim

import (
	"context"
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/biped/footstep"
	"go.viam.com/biped/logging"
)

// SweepResult is the outcome of one simulation of a sweep.
type SweepResult struct {
	Push    Push
	Fell    bool
	Settled bool
	Summary Summary
}

// Sweep runs one simulation per push, each with the push added to cfg.Pushes, running at most
// parallel simulations at once. steps is called once per simulation since providers are consumed.
func Sweep(
	ctx context.Context,
	cfg Config,
	pushes []Push,
	steps func() footstep.Provider,
	maxTicks, parallel int,
	logger logging.Logger,
) ([]SweepResult, error) {
	results := make([]SweepResult, len(pushes))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, p := range pushes {
		g.Go(func() error {
			runCfg := cfg
			runCfg.Pushes = append(slices.Clone(cfg.Pushes), p)
			s, err := New(runCfg, steps(), logger.Sublogger(fmt.Sprintf("push%d", i)))
			if err != nil {
				return errors.Wrapf(err, "push %d", i)
			}
			err = s.Run(ctx, maxTicks)
			fell := errors.Is(err, ErrFell)
			if err != nil && !fell && !errors.Is(err, ErrNotSettled) {
				return errors.Wrapf(err, "push %d", i)
			}
			results[i] = SweepResult{
				Push:    p,
				Fell:    fell,
				Settled: err == nil,
				Summary: Summarize(s.Samples(), cfg.Walking.ControlDt),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
