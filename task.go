// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package parapool

import "context"

// A Closure is an opaque value passed through the scheduler to a task
// entrypoint unchanged. A Go task function typically captures what it needs
// lexically and ignores its closure argument; the parameter exists for
// embedders that hand the scheduler a pre-built [TaskDescriptor] whose
// entrypoint is shared across many submissions and needs per-submission
// state threaded through.
type Closure = any

// A TaskFunc is the flat entrypoint used by [ParFor]: it executes exactly one
// iteration of a parallel loop, identified by idx. It returns 0 on success;
// any non-zero status is recorded on the submission and surfaced as the
// return value of the enclosing [ParFor] call. Iterations of the same loop
// run concurrently, so a TaskFunc must be thread-safe, including access to
// any captured variables.
//
// A TaskFunc may itself call [ParFor] or [ParallelTasks]; the calling
// goroutine then assists the pool with runnable work while it waits for the
// nested submission, so nesting does not deadlock the pool.
type TaskFunc func(ctx context.Context, idx int32, closure Closure) int

// A LoopTaskFunc is the batched entrypoint used by [ParallelTasks]: it
// executes the half-open iteration range [min, min+extent). The scheduler
// decides the batch sizes; a serial task may receive many iterations in one
// call, a parallel task receives them one at a time. Returns 0 on success.
type LoopTaskFunc func(ctx context.Context, min, extent int32, closure Closure) int

// A SemaphoreRequirement names a semaphore that must be acquired, and by how
// much, before each iteration of a task may run.
type SemaphoreRequirement struct {
	Sem   *Semaphore
	Count int
}

// A TaskDescriptor describes one parallel task submitted via
// [ParallelTasks]. The scheduler copies the descriptor at submission time
// and mutates its copy as iterations are claimed; the caller's value is not
// touched.
type TaskDescriptor struct {
	// Fn is the batched loop entrypoint for the task.
	Fn LoopTaskFunc

	// Name is an optional diagnostic label. The scheduler itself ignores
	// it, and the otpool decorators take their own operation name rather
	// than reading it.
	Name string

	// Closure is passed through to Fn unchanged.
	Closure Closure

	// Min and Extent define the iteration range [Min, Min+Extent).
	// Descriptors with Extent <= 0 are skipped at submission.
	Min, Extent int32

	// Semaphores lists the preconditions acquired, in order, before each
	// iteration runs. A task that waits on a semaphore it does not itself
	// signal must also set MayBlock.
	Semaphores []SemaphoreRequirement

	// MinThreads is the minimum number of concurrently assisting threads
	// the task needs to make forward progress. Only MayBlock tasks count
	// toward the workers spawned at submission; for every task, the
	// dispatch loop refuses to start it until that much help could
	// plausibly arrive, which is what keeps a blocked task from waiting
	// forever on threads that cannot exist.
	MinThreads int

	// Serial forces iterations to run single-threaded in increasing
	// order.
	Serial bool

	// MayBlock marks a task that may suspend on a semaphore it does not
	// itself signal. Blocking tasks are never stolen by owners of
	// unrelated submissions.
	MayBlock bool
}
