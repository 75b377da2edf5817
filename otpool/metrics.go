// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package otpool

import (
	"context"
	"time"

	"github.com/adriftlabs/parapool"
	"go.opentelemetry.io/otel"
)

// MetricsTask adds metrics collection to a flat task entrypoint.
// This wrapper records count, duration, and failure metrics for each
// dispatched iteration.
func MetricsTask(
	metricName string,
	fn parapool.TaskFunc,
) parapool.TaskFunc {
	return func(ctx context.Context, idx int32, closure parapool.Closure) int {
		startTime := time.Now()
		meter := otel.GetMeterProvider().Meter("otpool")

		// Create metrics
		iterationCounter, _ := meter.Int64Counter(metricName + ".count")
		iterationDuration, _ := meter.Float64Histogram(metricName + ".duration")

		// Track execution
		iterationCounter.Add(ctx, 1)

		// Execute the iteration
		status := fn(ctx, idx, closure)

		// Record duration
		duration := time.Since(startTime).Seconds()
		iterationDuration.Record(ctx, duration)

		// Record failure if any
		if status != 0 {
			failureCounter, _ := meter.Int64Counter(metricName + ".failures")
			failureCounter.Add(ctx, 1)
		}

		return status
	}
}

// MetricsLoopTask adds metrics collection to a batched loop entrypoint.
// This wrapper records batch count, iteration count, duration, and failure
// metrics for each dispatched batch.
func MetricsLoopTask(
	metricName string,
	fn parapool.LoopTaskFunc,
) parapool.LoopTaskFunc {
	return func(ctx context.Context, min, extent int32, closure parapool.Closure) int {
		startTime := time.Now()
		meter := otel.GetMeterProvider().Meter("otpool")

		// Create metrics
		batchCounter, _ := meter.Int64Counter(metricName + ".batches")
		iterationCounter, _ := meter.Int64Counter(metricName + ".iterations")
		batchDuration, _ := meter.Float64Histogram(metricName + ".duration")

		// Track execution
		batchCounter.Add(ctx, 1)
		iterationCounter.Add(ctx, int64(extent))

		// Execute the batch
		status := fn(ctx, min, extent, closure)

		// Record duration
		duration := time.Since(startTime).Seconds()
		batchDuration.Record(ctx, duration)

		// Record failure if any
		if status != 0 {
			failureCounter, _ := meter.Int64Counter(metricName + ".failures")
			failureCounter.Add(ctx, 1)
		}

		return status
	}
}
