package sim

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/biped/robotside"
)

// footholdTolerance merges footholds closer than this.
const footholdTolerance = 1e-3

// PlotTopView draws the CoM, capture point and desired capture point paths over the footholds
// occupied while both feet were down.
func PlotTopView(samples []Sample, title string) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, errors.New("nothing to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	com := make(plotter.XYs, len(samples))
	icp := make(plotter.XYs, len(samples))
	desired := make(plotter.XYs, len(samples))
	for i, s := range samples {
		com[i] = plotter.XY{X: s.CoM.X, Y: s.CoM.Y}
		icp[i] = plotter.XY{X: s.ICP.X, Y: s.ICP.Y}
		desired[i] = plotter.XY{X: s.DesiredICP.X, Y: s.DesiredICP.Y}
	}
	if err := plotutil.AddLines(p, "CoM", com, "ICP", icp, "desired ICP", desired); err != nil {
		return nil, err
	}
	if err := plotutil.AddScatters(p, "footholds", footholds(samples)); err != nil {
		return nil, err
	}
	p.Legend.Top = true
	return p, nil
}

// PlotTimeline draws the sagittal and lateral ICP tracking against time.
func PlotTimeline(samples []Sample, title string) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, errors.New("nothing to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "position (m)"

	series := make([]plotter.XYs, 4)
	for i := range series {
		series[i] = make(plotter.XYs, len(samples))
	}
	for i, s := range samples {
		series[0][i] = plotter.XY{X: s.Time, Y: s.ICP.X}
		series[1][i] = plotter.XY{X: s.Time, Y: s.DesiredICP.X}
		series[2][i] = plotter.XY{X: s.Time, Y: s.ICP.Y}
		series[3][i] = plotter.XY{X: s.Time, Y: s.DesiredICP.Y}
	}
	if err := plotutil.AddLines(p,
		"ICP x", series[0], "desired ICP x", series[1],
		"ICP y", series[2], "desired ICP y", series[3],
	); err != nil {
		return nil, err
	}
	return p, nil
}

// SavePlot writes p to path; the format follows the file extension.
func SavePlot(p *plot.Plot, path string) error {
	return errors.Wrapf(p.Save(8*vg.Inch, 6*vg.Inch, path), "cannot save plot to %q", path)
}

func footholds(samples []Sample) plotter.XYs {
	var out plotter.XYs
	seen := func(x, y float64) bool {
		for _, f := range out {
			if math.Hypot(f.X-x, f.Y-y) < footholdTolerance {
				return true
			}
		}
		return false
	}
	for _, s := range samples {
		if !s.State.IsDoubleSupport() {
			continue
		}
		for _, side := range robotside.Values {
			pose := s.Feet.Get(side)
			if pose.Point.Z > footholdTolerance || seen(pose.Point.X, pose.Point.Y) {
				continue
			}
			out = append(out, plotter.XY{X: pose.Point.X, Y: pose.Point.Y})
		}
	}
	return out
}
