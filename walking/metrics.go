package walking

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "go.viam.com/biped/walking"

func defaultMeter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	transitions    metric.Int64Counter
	pushRecoveries metric.Int64Counter
	toeOffs        metric.Int64Counter
	icpError       metric.Float64Histogram
}

func newMetrics(m metric.Meter) (*metrics, error) {
	var (
		out metrics
		err error
	)
	out.transitions, err = m.Int64Counter(
		"walking.state.transitions",
		metric.WithDescription("Walking state transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating transition counter")
	}
	out.pushRecoveries, err = m.Int64Counter(
		"walking.push_recovery.triggers",
		metric.WithDescription("Footstep adjustments and falls caught by push recovery"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating push recovery counter")
	}
	out.toeOffs, err = m.Int64Counter(
		"walking.toe_off.triggers",
		metric.WithDescription("Trailing foot toe-offs"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating toe-off counter")
	}
	out.icpError, err = m.Float64Histogram(
		"walking.icp.error",
		metric.WithDescription("Distance between the capture point and the desired capture point"),
		metric.WithUnit("m"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating ICP error histogram")
	}
	return &out, nil
}

func (m *metrics) transition(ctx context.Context, from, to State, rule string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
		attribute.String("rule", rule),
	))
}

func (m *metrics) pushRecovery(ctx context.Context, kind string) {
	m.pushRecoveries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
