package recorder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/biped/footstep"
	"go.viam.com/biped/logging"
	"go.viam.com/biped/robotside"
	"go.viam.com/biped/sim"
	"go.viam.com/biped/spatialmath"
	"go.viam.com/biped/walking"
)

func sample(tick int, state walking.State) sim.Sample {
	return sim.Sample{
		Tick:       tick,
		Time:       float64(tick) * 0.005,
		State:      state,
		CoM:        r3.Vector{X: 0.01 * float64(tick), Z: 0.9},
		ICP:        r2.Point{X: 0.02},
		DesiredICP: r2.Point{X: 0.01},
		Feet: robotside.NewSideDependentList(
			spatialmath.NewPose(r3.Vector{Y: 0.1}, 0),
			spatialmath.NewPose(r3.Vector{Y: -0.1, Z: 0.03}, 0),
		),
		PushRecovery: "idle",
	}
}

func TestRecorderBatches(t *testing.T) {
	ctx := context.Background()
	r, err := Open("", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, r.Close(ctx), test.ShouldBeNil)
	}()

	test.That(t, r.Record(ctx, sample(0, walking.DoubleSupport)), test.ShouldNotBeNil)

	r.SetBatchSize(2)
	id, err := r.StartRun(ctx, "standing", map[string]float64{"swing_time": 0.6})
	test.That(t, err, test.ShouldBeNil)
	states := []walking.State{walking.DoubleSupport, walking.DoubleSupport, walking.TransferToRight}
	for i, st := range states {
		test.That(t, r.Record(ctx, sample(i, st)), test.ShouldBeNil)
	}
	test.That(t, r.pending, test.ShouldHaveLength, 1)

	ticks, err := r.Ticks(ctx, id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ticks, test.ShouldHaveLength, 3)
	test.That(t, ticks[2].State, test.ShouldEqual, "TRANSFER_TO_RIGHT")
	test.That(t, ticks[2].CoMX, test.ShouldAlmostEqual, 0.02)
	test.That(t, ticks[1].RightZ, test.ShouldAlmostEqual, 0.03)
	test.That(t, ticks[0].RunID, test.ShouldEqual, id)

	durations, err := r.StateDurations(ctx, id, 0.005)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, durations["DOUBLE_SUPPORT"], test.ShouldAlmostEqual, 0.01)
	test.That(t, durations["TRANSFER_TO_RIGHT"], test.ShouldAlmostEqual, 0.005)

	second, err := r.StartRun(ctx, "again", nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldBeGreaterThan, id)
	runs, err := r.Runs(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, runs, test.ShouldHaveLength, 2)
	test.That(t, runs[0].Name, test.ShouldEqual, "standing")
	test.That(t, runs[0].Config, test.ShouldEqual, `{"swing_time":0.6}`)
	ticks, err = r.Ticks(ctx, second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ticks, test.ShouldBeEmpty)
}

func TestRecorderRecordsSimulation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "walk.db")
	logger := logging.NewTestLogger(t)
	r, err := Open(path, logger)
	test.That(t, err, test.ShouldBeNil)

	cfg := sim.DefaultConfig()
	sole := cfg.Walking.Sole.Polygon()
	steps := footstep.NewListProvider(
		footstep.New(robotside.Left, spatialmath.NewPose(r3.Vector{X: 0.2, Y: 0.1}, 0), sole),
	)
	s, err := sim.New(cfg, steps, logger, sim.WithSink(r))
	test.That(t, err, test.ShouldBeNil)
	id, err := r.StartRun(ctx, "one step", cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Run(ctx, 2000), test.ShouldBeNil)
	test.That(t, r.Close(ctx), test.ShouldBeNil)

	reopened, err := Open(path, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, reopened.Close(ctx), test.ShouldBeNil)
	}()
	ticks, err := reopened.Ticks(ctx, id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ticks, test.ShouldHaveLength, len(s.Samples()))
	durations, err := reopened.StateDurations(ctx, id, cfg.Walking.ControlDt)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, durations, test.ShouldContainKey, "RIGHT_SUPPORT")
}
