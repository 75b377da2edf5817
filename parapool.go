// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package parapool

import (
	"context"
	"sync"
)

// defaultScheduler returns the process-wide Scheduler used by the
// package-level entry points. Construction is idempotent and guarded;
// workers are not spawned until the first submission.
var defaultScheduler = sync.OnceValue(NewScheduler)

// The Do* entry points are package-level variables so that an embedding
// program can replace any of them wholesale, exactly as a compiled pipeline
// expects of its runtime: an embedder that swaps DoParFor bypasses this
// scheduler entirely, while one that swaps only DoTask interposes on every
// iteration the pool dispatches.
var (
	// DoTask invokes one iteration of a flat loop. The default simply
	// calls fn.
	DoTask = func(ctx context.Context, fn TaskFunc, idx int32, closure Closure) int {
		return fn(ctx, idx, closure)
	}

	// DoLoopTask invokes a batch of loop iterations. The default simply
	// calls fn.
	DoLoopTask = func(ctx context.Context, fn LoopTaskFunc, min, extent int32, closure Closure) int {
		return fn(ctx, min, extent, closure)
	}

	// DoParFor executes a flat parallel loop. The default submits it to
	// the default Scheduler.
	DoParFor = func(ctx context.Context, fn TaskFunc, min, size int32, closure Closure) int {
		return defaultScheduler().ParFor(ctx, fn, min, size, closure)
	}

	// DoParallelTasks executes a group of parallel tasks. The default
	// submits them to the default Scheduler.
	DoParallelTasks = func(ctx context.Context, tasks []TaskDescriptor) int {
		return defaultScheduler().ParallelTasks(ctx, tasks)
	}
)

// ParFor executes fn for every index in [min, min+size) on the default
// Scheduler. See [Scheduler.ParFor].
func ParFor(ctx context.Context, fn TaskFunc, min, size int32, closure Closure) int {
	return DoParFor(ctx, fn, min, size, closure)
}

// ParallelTasks executes a group of tasks on the default Scheduler. See
// [Scheduler.ParallelTasks].
func ParallelTasks(ctx context.Context, tasks []TaskDescriptor) int {
	return DoParallelTasks(ctx, tasks)
}

// SetNumThreads sets the desired worker count of the default Scheduler and
// returns the previous value. See [Scheduler.SetNumThreads].
func SetNumThreads(n int) int {
	return defaultScheduler().SetNumThreads(n)
}

// ShutdownThreadPool joins and tears down the default Scheduler's workers.
// Safe to call repeatedly; the next submission re-initializes the pool. See
// [Scheduler.Shutdown].
func ShutdownThreadPool() {
	defaultScheduler().Shutdown()
}
