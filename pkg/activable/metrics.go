package activable

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/thebtf/activable"

type removalMetrics struct {
	removals metric.Int64Counter
	failures metric.Int64Counter
	attrs    metric.MeasurementOption
}

func newRemovalMetrics(meter metric.Meter, table string) (*removalMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	removals, err := meter.Int64Counter("activable.removals",
		metric.WithDescription("Rows logically removed, cascades excluded"),
		metric.WithUnit("{row}"))
	if err != nil {
		return nil, fmt.Errorf("create removals counter: %w", err)
	}

	failures, err := meter.Int64Counter("activable.removal.failures",
		metric.WithDescription("Removal operations rolled back"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}

	return &removalMetrics{
		removals: removals,
		failures: failures,
		attrs:    metric.WithAttributes(attribute.String("table", table)),
	}, nil
}

func (m *removalMetrics) record(ctx context.Context, removed int, err error) {
	if err != nil {
		m.failures.Add(ctx, 1, m.attrs)
		return
	}
	if removed > 0 {
		m.removals.Add(ctx, int64(removed), m.attrs)
	}
}
