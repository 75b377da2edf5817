// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package otpool

import (
	"context"
	"fmt"

	"github.com/adriftlabs/parapool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedTask adds a span with the given operation name around each
// dispatched iteration of a flat task. The span records the iteration index
// and, for a non-zero status, an error status code.
func TracedTask(
	operationName string,
	fn parapool.TaskFunc,
) parapool.TaskFunc {
	return func(ctx context.Context, idx int32, closure parapool.Closure) int {
		// Create span with meaningful name
		tracer := otel.Tracer("otpool")
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()

		span.SetAttributes(attribute.Int("parapool.index", int(idx)))

		status := fn(ctx, idx, closure)
		if status != 0 {
			span.SetStatus(codes.Error, fmt.Sprintf("iteration returned status %d", status))
		}
		return status
	}
}

// TracedLoopTask adds a span with the given operation name around each
// dispatched batch of a loop task. The span records the claimed range and,
// for a non-zero status, an error status code.
func TracedLoopTask(
	operationName string,
	fn parapool.LoopTaskFunc,
) parapool.LoopTaskFunc {
	return func(ctx context.Context, min, extent int32, closure parapool.Closure) int {
		// Create span with meaningful name
		tracer := otel.Tracer("otpool")
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()

		span.SetAttributes(
			attribute.Int("parapool.min", int(min)),
			attribute.Int("parapool.extent", int(extent)),
		)

		status := fn(ctx, min, extent, closure)
		if status != 0 {
			span.SetStatus(codes.Error, fmt.Sprintf("batch returned status %d", status))
		}
		return status
	}
}

// LinkedLoopTask is like [TracedLoopTask] but additionally links every batch
// span back to the span active in submitCtx at wrap time. Each batch span
// takes its parent from the context the scheduler passes in, which is the
// context given to the submitting call; the link ties it to the span in
// submitCtx as well, which need not be that parent.
func LinkedLoopTask(
	submitCtx context.Context,
	operationName string,
	fn parapool.LoopTaskFunc,
) parapool.LoopTaskFunc {
	link := trace.LinkFromContext(submitCtx)

	return func(ctx context.Context, min, extent int32, closure parapool.Closure) int {
		tracer := otel.Tracer("otpool")
		ctx, span := tracer.Start(ctx, operationName, trace.WithLinks(link))
		defer span.End()

		span.SetAttributes(
			attribute.Int("parapool.min", int(min)),
			attribute.Int("parapool.extent", int(extent)),
		)

		status := fn(ctx, min, extent, closure)
		if status != 0 {
			span.SetStatus(codes.Error, fmt.Sprintf("batch returned status %d", status))
		}
		return status
	}
}
