package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QueueDepthFunc reports the number of jobs per queue and status.
type QueueDepthFunc func(ctx context.Context) (map[string]map[string]int64, error)

// RegisterQueueDepthGauge exposes the dispatch queue depth as an observable gauge
// read on every scrape. A failing read is logged and yields no observation.
func RegisterQueueDepthGauge(
	meterProvider metric.MeterProvider,
	namespace string,
	depth QueueDepthFunc,
	logger *slog.Logger,
) error {
	meter := meterProvider.Meter(namespace)

	gauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_queue_jobs", namespace),
		metric.WithDescription("Number of dispatch jobs per queue and status"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue depth gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := depth(ctx)
		if err != nil {
			logger.Warn("failed to read queue depth", slog.Any("error", err))
			return nil
		}
		for queue, statuses := range counts {
			for status, n := range statuses {
				o.ObserveInt64(gauge, n, metric.WithAttributes(
					attribute.String("queue", queue),
					attribute.String("status", status),
				))
			}
		}
		return nil
	}, gauge)
	if err != nil {
		return fmt.Errorf("failed to register queue depth callback: %w", err)
	}

	return nil
}
