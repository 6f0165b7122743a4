// Package main runs the walking controller in simulation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/biped/config"
	"go.viam.com/biped/footstep"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/sim"
	"go.viam.com/biped/sim/recorder"
)

const (
	flagConfig     = "config"
	flagDebug      = "debug"
	flagLogFile    = "log-file"
	flagSteps      = "steps"
	flagStepLength = "step-length"
	flagPushTime   = "push-time"
	flagPushX      = "push-x"
	flagPushY      = "push-y"
	flagMaxTicks   = "max-ticks"
	flagTopView    = "top-view"
	flagTimeline   = "timeline"
	flagDB         = "db"
	flagName       = "name"
	flagWalking    = "walking"
	flagPushMax    = "push-max"
	flagRuns       = "runs"
	flagParallel   = "parallel"
)

func main() {
	var (
		logger  logging.Logger
		logFile io.Closer
	)

	app := &cli.App{
		Name:            "walkingsim",
		Usage:           "run the biped walking controller on a simulated pendulum",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load simulation configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to the rotating `FILE`",
			},
		},
		Before: func(c *cli.Context) error {
			level := logging.INFO
			if c.Bool(flagDebug) {
				level = logging.DEBUG
			}
			if path := c.String(flagLogFile); path != "" {
				logger, logFile = logging.NewFileLogger("walkingsim", path, level)
				return nil
			}
			if level == logging.DEBUG {
				logger = logging.NewDebugLogger("walkingsim")
			} else {
				logger = logging.NewLogger("walkingsim")
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logFile != nil {
				return logFile.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "walk a straight line and print a summary",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagSteps, Value: 4, Usage: "number of footsteps"},
					&cli.Float64Flag{Name: flagStepLength, Value: 0.2, Usage: "forward distance between footsteps in meters"},
					&cli.Float64Flag{Name: flagPushTime, Usage: "time of an extra push in seconds"},
					&cli.Float64Flag{Name: flagPushX, Usage: "forward velocity change of the push in m/s"},
					&cli.Float64Flag{Name: flagPushY, Usage: "lateral velocity change of the push in m/s"},
					&cli.IntFlag{Name: flagMaxTicks, Value: 20000, Usage: "give up after this many control ticks"},
					&cli.StringFlag{Name: flagTopView, Usage: "write a top view plot to `FILE` (png, svg or pdf)"},
					&cli.StringFlag{Name: flagTimeline, Usage: "write a state timeline plot to `FILE`"},
					&cli.StringFlag{Name: flagDB, Usage: "record every tick into the sqlite database at `FILE`"},
					&cli.StringFlag{Name: flagName, Value: "walk", Usage: "run name in the database"},
				},
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "sweep",
				Usage: "push the standing robot sideways with increasing strength and report which pushes it survives",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: flagPushTime, Value: 0.5, Usage: "time of the push in seconds"},
					&cli.Float64Flag{Name: flagPushMax, Value: 1, Usage: "strongest lateral velocity change in m/s"},
					&cli.IntFlag{Name: flagRuns, Value: 10, Usage: "number of pushes between zero and the strongest"},
					&cli.IntFlag{Name: flagParallel, Value: 4, Usage: "simulations run at once"},
					&cli.IntFlag{Name: flagMaxTicks, Value: 4000, Usage: "give up on a run after this many control ticks"},
				},
				Action: func(c *cli.Context) error {
					return sweepAction(c, logger)
				},
			},
			{
				Name:  "validate",
				Usage: "check a configuration file",
				Action: func(c *cli.Context) error {
					if _, err := loadConfig(c); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "config is valid")
					return nil
				},
			},
			{
				Name:  "schema",
				Usage: "print the JSON schema of the configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: flagWalking, Usage: "print the walking controller schema instead"},
				},
				Action: func(c *cli.Context) error {
					schema := config.SimulationSchema()
					if c.Bool(flagWalking) {
						schema = config.WalkingSchema()
					}
					out, err := json.MarshalIndent(schema, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(out))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (sim.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		return sim.DefaultConfig(), nil
	}
	return config.LoadSimulation(path)
}

func runAction(c *cli.Context, logger logging.Logger) error {
	ctx := c.Context
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if dv := (r3.Vector{X: c.Float64(flagPushX), Y: c.Float64(flagPushY)}); dv.Norm() > 0 {
		cfg.Pushes = append(cfg.Pushes, sim.Push{Time: c.Float64(flagPushTime), DeltaV: dv})
		if err := cfg.Validate("flags"); err != nil {
			return err
		}
	}
	if c.Int(flagSteps) < 0 {
		return errors.Errorf("--%s cannot be negative", flagSteps)
	}
	steps := sim.StraightWalk(cfg, c.Int(flagSteps), c.Float64(flagStepLength))

	var opts []sim.Option
	if path := c.String(flagDB); path != "" {
		rec, err := recorder.Open(path, logger.Sublogger("recorder"))
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(context.Background()); err != nil {
				logger.Errorw("cannot close recorder", "error", err)
			}
		}()
		if _, err := rec.StartRun(ctx, c.String(flagName), cfg); err != nil {
			return err
		}
		opts = append(opts, sim.WithSink(rec))
	}

	s, err := sim.New(cfg, steps, logger, opts...)
	if err != nil {
		return err
	}
	runErr := s.Run(ctx, c.Int(flagMaxTicks))
	if runErr != nil && !errors.Is(runErr, sim.ErrFell) && !errors.Is(runErr, sim.ErrNotSettled) {
		return runErr
	}

	samples := s.Samples()
	printSummary(c.App.Writer, sim.Summarize(samples, cfg.Walking.ControlDt), steps.Completed())
	if path := c.String(flagTopView); path != "" {
		p, err := sim.PlotTopView(samples, c.String(flagName))
		if err != nil {
			return err
		}
		if err := sim.SavePlot(p, path); err != nil {
			return err
		}
	}
	if path := c.String(flagTimeline); path != "" {
		p, err := sim.PlotTimeline(samples, c.String(flagName))
		if err != nil {
			return err
		}
		if err := sim.SavePlot(p, path); err != nil {
			return err
		}
	}
	return runErr
}

func printSummary(w io.Writer, sum sim.Summary, completed int) {
	fmt.Fprintf(w, "%d footsteps completed\n", completed)
	fmt.Fprintln(w, sum.String())
}

func sweepAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	runs := c.Int(flagRuns)
	if runs < 1 {
		return errors.Errorf("--%s must be at least 1", flagRuns)
	}
	pushes := lo.Times(runs, func(i int) sim.Push {
		dv := c.Float64(flagPushMax) * float64(i+1) / float64(runs)
		return sim.Push{Time: c.Float64(flagPushTime), DeltaV: r3.Vector{Y: dv}}
	})
	steps := func() footstep.Provider { return footstep.NewListProvider() }
	results, err := sim.Sweep(c.Context, cfg, pushes, steps, c.Int(flagMaxTicks), c.Int(flagParallel), logger)
	if err != nil {
		return err
	}

	fell := color.New(color.FgRed).SprintFunc()
	ok := color.New(color.FgGreen).SprintFunc()
	for _, r := range results {
		outcome := ok("recovered")
		switch {
		case r.Fell:
			outcome = fell("fell")
		case !r.Settled:
			outcome = fell("not settled")
		}
		fmt.Fprintf(c.App.Writer, "push %.3f m/s: %-12s steps %d, max icp error %.4f\n",
			r.Push.DeltaV.Y, outcome, r.Summary.SingleSupports, r.Summary.ICPErrorMax)
	}
	return nil
}
