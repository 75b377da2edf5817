// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package otpool

import (
	"context"
	"time"

	"github.com/adriftlabs/parapool"
	"go.uber.org/zap"
)

// LoggedTask adds structured logging to a flat task entrypoint.
// This wrapper logs the start and completion of each dispatched iteration,
// including timing information and any non-zero status.
func LoggedTask(
	operationName string,
	fn parapool.TaskFunc,
) parapool.TaskFunc {
	return func(ctx context.Context, idx int32, closure parapool.Closure) int {
		// Get logger from the global registry or use a default
		// This implementation uses zap, but could be adapted for any logger
		logger := zap.L()

		// Log start of operation
		logger.Debug("Starting iteration",
			zap.String("operation", operationName),
			zap.String("component", "otpool"),
			zap.Int32("index", idx))

		// Time the operation
		startTime := time.Now()
		status := fn(ctx, idx, closure)
		duration := time.Since(startTime)

		// Log completion with appropriate level based on success/failure
		if status != 0 {
			logger.Error("Iteration failed",
				zap.String("operation", operationName),
				zap.String("component", "otpool"),
				zap.Int32("index", idx),
				zap.Duration("duration", duration),
				zap.Int("status", status))
		} else {
			logger.Debug("Iteration completed",
				zap.String("operation", operationName),
				zap.String("component", "otpool"),
				zap.Int32("index", idx),
				zap.Duration("duration", duration))
		}

		return status
	}
}

// LoggedLoopTask adds structured logging to a batched loop entrypoint.
// This wrapper logs each dispatched batch of iterations, including the
// claimed range, timing information, and any non-zero status.
func LoggedLoopTask(
	operationName string,
	fn parapool.LoopTaskFunc,
) parapool.LoopTaskFunc {
	return func(ctx context.Context, min, extent int32, closure parapool.Closure) int {
		// Get logger from the global registry or use a default
		logger := zap.L()

		// Log starting batch
		logger.Debug("Starting batch",
			zap.String("operation", operationName),
			zap.String("component", "otpool"),
			zap.Int32("min", min),
			zap.Int32("extent", extent))

		// Time the operation
		startTime := time.Now()
		status := fn(ctx, min, extent, closure)
		duration := time.Since(startTime)

		// Log completion with appropriate level based on success/failure
		if status != 0 {
			logger.Error("Batch failed",
				zap.String("operation", operationName),
				zap.String("component", "otpool"),
				zap.Int32("min", min),
				zap.Int32("extent", extent),
				zap.Duration("duration", duration),
				zap.Int("status", status))
		} else {
			logger.Debug("Batch completed",
				zap.String("operation", operationName),
				zap.String("component", "otpool"),
				zap.Int32("min", min),
				zap.Int32("extent", extent),
				zap.Duration("duration", duration))
		}

		return status
	}
}
