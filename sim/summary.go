package sim

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/biped/pushrecovery"
	"go.viam.com/biped/walking"
)

// Summary condenses a run.
type Summary struct {
	Ticks          int     `json:"ticks"`
	Duration       float64 `json:"duration"`
	Transitions    int     `json:"transitions"`
	SingleSupports int     `json:"single_supports"`

	ICPErrorMean   float64 `json:"icp_error_mean"`
	ICPErrorStdDev float64 `json:"icp_error_std_dev"`
	ICPErrorP95    float64 `json:"icp_error_p95"`
	ICPErrorMax    float64 `json:"icp_error_max"`

	// RecoveryTicks counts ticks spent recovering from a push.
	RecoveryTicks int                       `json:"recovery_ticks"`
	TimeInState   map[walking.State]float64 `json:"time_in_state"`
}

// Summarize computes statistics over samples taken every dt seconds.
func Summarize(samples []Sample, dt float64) Summary {
	sum := Summary{Ticks: len(samples), TimeInState: map[walking.State]float64{}}
	if len(samples) == 0 {
		return sum
	}
	sum.Duration = samples[len(samples)-1].Time - samples[0].Time + dt

	errs := make([]float64, 0, len(samples))
	for i, s := range samples {
		errs = append(errs, s.ICPError())
		sum.TimeInState[s.State] += dt
		if s.PushRecovery != "" && s.PushRecovery != pushrecovery.Idle.String() {
			sum.RecoveryTicks++
		}
		if i > 0 && s.State != samples[i-1].State {
			sum.Transitions++
			if s.State.IsSingleSupport() {
				sum.SingleSupports++
			}
		}
	}
	sum.ICPErrorMean, sum.ICPErrorStdDev = stat.MeanStdDev(errs, nil)
	if len(errs) == 1 {
		sum.ICPErrorStdDev = 0
	}
	sum.ICPErrorMax = floats.Max(errs)
	if p95, err := stats.Percentile(errs, 95); err == nil {
		sum.ICPErrorP95 = p95
	}
	return sum
}

// String renders the summary as a table with one row per visited state.
func (sum Summary) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"ticks", sum.Ticks},
		{"duration", fmt.Sprintf("%.3fs", sum.Duration)},
		{"transitions", sum.Transitions},
		{"single supports", sum.SingleSupports},
		{"icp error", fmt.Sprintf("mean %.4f std %.4f p95 %.4f max %.4f",
			sum.ICPErrorMean, sum.ICPErrorStdDev, sum.ICPErrorP95, sum.ICPErrorMax)},
		{"recovery ticks", sum.RecoveryTicks},
	})
	t.AppendSeparator()

	states := make([]walking.State, 0, len(sum.TimeInState))
	for st := range sum.TimeInState {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	for _, st := range states {
		t.AppendRow(table.Row{st.String(), fmt.Sprintf("%.3fs", sum.TimeInState[st])})
	}
	return t.Render()
}
