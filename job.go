// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package parapool

import (
	"context"

	"github.com/adriftlabs/parapool/internal/groupid"
)

// A job is the scheduler's record of one in-flight parallel task. Jobs live
// in scratch storage owned by the submitting call to [ParFor] or
// [ParallelTasks]; the scheduler's stack holds only borrowed pointers, which
// are unlinked before the submitting call returns. A job must never outlive
// its submitter.
//
// All fields except the semaphores named by the descriptor are protected by
// the owning scheduler's mutex.
type job struct {
	// task is the scheduler's mutable copy of the submitted descriptor.
	// Min and Extent advance as iterations are claimed.
	task TaskDescriptor

	// taskFn is the alternative flat entrypoint, set only by ParFor. When
	// non-nil it is dispatched one iteration at a time via DoTask and
	// task.Fn is nil.
	taskFn TaskFunc

	// ctx is the submitting caller's context, passed through to every
	// entrypoint invocation.
	ctx context.Context

	// group identifies the sibling set submitted by the same call. A
	// waiting owner may assist jobs of its own group, or any job that
	// cannot block, but never an unrelated blocking job.
	group groupid.ID

	// activeWorkers counts the threads currently executing an iteration
	// of this job. It keeps running() true while iterations are in
	// flight but momentarily absent from the stack.
	activeWorkers int

	// exitStatus holds the last non-zero status reported by any
	// iteration. Last writer wins; when several iterations fail the
	// reported status is deliberately non-deterministic.
	exitStatus int

	// nextSemaphore indexes the first unacquired precondition for the
	// pending iteration.
	nextSemaphore int

	// ownerIsSleeping is true while the submitting owner is blocked on
	// the owners wake channel waiting for this job.
	ownerIsSleeping bool
}

// makeRunnable tries to acquire the remaining semaphore preconditions for
// the pending iteration, in order. On failure it returns false and keeps the
// preconditions already acquired: a job has at most one consumer working
// through its preconditions at a time, so there is never another claimant to
// release them for, and holding them avoids re-racing for the same counts on
// the next attempt. On success nextSemaphore resets to zero so the following
// iteration acquires afresh.
func (j *job) makeRunnable() bool {
	for ; j.nextSemaphore < len(j.task.Semaphores); j.nextSemaphore++ {
		req := j.task.Semaphores[j.nextSemaphore]
		if !req.Sem.TryAcquire(req.Count) {
			return false
		}
	}
	j.nextSemaphore = 0
	return true
}

// running reports whether the job still has unclaimed iterations or
// iterations currently executing. A job is unlinked from the stack when its
// extent reaches zero but is only complete once running returns false.
func (j *job) running() bool {
	return j.task.Extent != 0 || j.activeWorkers != 0
}
