// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package parapool

import (
	"context"
	"sync"

	"github.com/adriftlabs/parapool/internal/envthreads"
	"github.com/adriftlabs/parapool/internal/groupid"
	"github.com/adriftlabs/parapool/internal/workstack"
)

// MaxThreads is the hard cap on pool workers. The desired worker count is
// always clamped into [1, MaxThreads], and a task declaring a MinThreads
// requirement beyond the cap has the requirement clamped at submission so
// the dispatch gate can still be satisfied once every worker is available to
// assist.
const MaxThreads = 256

func clampNumThreads(threads int) int {
	if threads > MaxThreads {
		threads = MaxThreads
	} else if threads < 1 {
		threads = 1
	}
	return threads
}

// A Scheduler is a cooperative work-stealing pool: a single LIFO stack of
// jobs, a set of lazily spawned workers, and the dispatch loop that both
// workers and submitting owners run. One Scheduler is typically shared by a
// whole process (the package-level [ParFor] and [ParallelTasks] use a
// default instance), but independent Schedulers are themselves independent:
// they share no state and their workers never touch each other's jobs.
//
// Every field is protected by mu. Task bodies always execute with mu
// released; threads suspend only on the three wake channels.
//
// Create a Scheduler with [NewScheduler]. The zero value is not ready to
// use.
type Scheduler struct {
	mu sync.Mutex

	// Workers sleep on one of two wake channels so that a small
	// submission can wake a correspondingly small number of them. The
	// A team is the subset currently eligible to work; workers in excess
	// of targetATeamSize demote themselves to the B team as they go to
	// sleep and are recalled only when a submission raises the target.
	// Owners sleep on their own channel so that finishing a job can wake
	// exactly the threads that might care.
	wakeATeam  *sync.Cond
	wakeBTeam  *sync.Cond
	wakeOwners *sync.Cond

	// jobs is the LIFO stack of submitted work. Every job on it has
	// running() == true.
	jobs workstack.Stack[*job]

	threadsCreated        int
	desiredThreadsWorking int

	aTeamSize       int
	targetATeamSize int

	// Sleeping-thread counts are transient over-estimates: a woken
	// thread may not have decremented its count yet. Consumers only use
	// them as a hint and always re-check actual runnability, so the
	// slack is harmless.
	workersSleeping int
	ownersSleeping  int

	wg sync.WaitGroup

	shutdown    bool
	initialized bool
}

// NewScheduler creates an empty Scheduler. No workers are spawned until the
// first submission; the desired worker count is resolved at that point from
// [SetNumThreads], the HL_NUM_THREADS environment variable, or the host CPU
// count, in that order of preference.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	s.wakeATeam = sync.NewCond(&s.mu)
	s.wakeBTeam = sync.NewCond(&s.mu)
	s.wakeOwners = sync.NewCond(&s.mu)
	return s
}

func (s *Scheduler) initLocked() {
	s.shutdown = false
	if s.desiredThreadsWorking == 0 {
		s.desiredThreadsWorking = envthreads.Desired()
	}
	s.desiredThreadsWorking = clampNumThreads(s.desiredThreadsWorking)
	s.aTeamSize = 0
	s.targetATeamSize = 0
	s.threadsCreated = 0
	s.workersSleeping = 0
	s.ownersSleeping = 0
	s.initialized = true
}

// enqueueLocked links a batch of jobs submitted by one call onto the stack,
// spawns workers as needed, and wakes an appropriate number of sleeping
// threads. Called with mu held.
func (s *Scheduler) enqueueLocked(jobs []*job) {
	if !s.initialized {
		s.initLocked()
	}

	// Some tasks require a minimum number of threads to make forward
	// progress. Assume the blocking tasks need their declared concurrency
	// simultaneously; non-blocking tasks can always be finished by
	// whoever picks them up.
	minThreads := 0

	// Count how many workers to wake. Start at -1 because the submitting
	// thread will itself assist.
	workersToWake := -1

	// Could stalled owners of unrelated submissions conceivably help
	// with one of these jobs?
	stealableJobs := false

	for _, j := range jobs {
		if j.task.MinThreads > MaxThreads {
			j.task.MinThreads = MaxThreads
		}
		if !j.task.MayBlock {
			stealableJobs = true
		} else {
			minThreads += j.task.MinThreads
		}
		if j.task.Serial {
			workersToWake++
		} else {
			workersToWake += int(j.task.Extent)
		}
	}

	// Spawn more workers if the desired count has been raised or this
	// batch needs more concurrency than exists. The -1 accounts for the
	// submitting thread.
	for (s.threadsCreated < s.desiredThreadsWorking-1 ||
		s.threadsCreated < minThreads-1) &&
		s.threadsCreated < MaxThreads {
		s.aTeamSize++
		s.threadsCreated++
		s.wg.Add(1)
		go s.worker()
	}

	// All jobs of one submission share a group token so the owner can
	// recognize its siblings while it waits.
	group := groupid.New()
	for _, j := range jobs {
		j.group = group
	}
	s.jobs.PushTopAll(jobs)

	nestedParallelism := s.ownersSleeping > 0 ||
		s.workersSleeping < s.threadsCreated

	if nestedParallelism || workersToWake > s.workersSleeping {
		// With nested parallelism in play the sleeping counts are too
		// coarse to aim with, so wake everyone.
		s.targetATeamSize = s.threadsCreated
	} else {
		s.targetATeamSize = workersToWake
	}

	s.wakeATeam.Broadcast()
	if s.targetATeamSize > s.aTeamSize {
		s.wakeBTeam.Broadcast()
		if stealableJobs {
			s.wakeOwners.Broadcast()
		}
	}
}

// worker is the body of a pool-spawned goroutine: run the dispatch loop with
// no owned job until shutdown.
func (s *Scheduler) worker() {
	defer s.wg.Done()
	s.mu.Lock()
	s.dispatchLocked(nil)
	s.mu.Unlock()
}

// dispatchLocked is the dispatch loop shared by workers and owners. A
// worker (owned == nil) loops until shutdown; an owner loops until the job
// it submitted completes, assisting with whatever runnable work it is
// allowed to touch in the meantime. Called with mu held; returns with mu
// held. Task bodies execute with mu released.
func (s *Scheduler) dispatchLocked(owned *job) {
	for {
		if owned != nil {
			if !owned.running() {
				return
			}
		} else if s.shutdown {
			return
		}

		// Find a job to run, preferring those near the top of the
		// stack. Only claim a task with enough potential helpers
		// around to complete it: helpers may be stolen away later,
		// but only by tasks that can themselves use them to finish,
		// so forward progress is preserved.
		var claimed *job
		depth := 0
		for ; depth < s.jobs.Len(); depth++ {
			j := s.jobs.At(depth)
			threadsThatCouldAssist := 1 + s.workersSleeping
			if !j.task.MayBlock {
				// Sleeping owners may steal non-blocking work.
				threadsThatCouldAssist += s.ownersSleeping
			} else if j.ownerIsSleeping {
				// The job's own owner will help once woken.
				threadsThatCouldAssist++
			}
			enoughThreads := j.task.MinThreads <= threadsThatCouldAssist
			// An owner may only assist its own sibling group or
			// steal work that cannot block; otherwise it could be
			// trapped behind an unrelated job that never finishes.
			mayTry := (owned == nil || j.group == owned.group || !j.task.MayBlock) &&
				(!j.task.Serial || j.activeWorkers == 0)
			if mayTry && enoughThreads && j.makeRunnable() {
				claimed = j
				break
			}
		}

		if claimed == nil {
			// No runnable job. Go to sleep.
			if owned != nil {
				s.ownersSleeping++
				owned.ownerIsSleeping = true
				s.wakeOwners.Wait()
				owned.ownerIsSleeping = false
				s.ownersSleeping--
			} else {
				s.workersSleeping++
				if s.aTeamSize > s.targetATeamSize {
					// Transition to the B team.
					s.aTeamSize--
					s.wakeBTeam.Wait()
					s.aTeamSize++
				} else {
					s.wakeATeam.Wait()
				}
				s.workersSleeping--
			}
			continue
		}

		// Mark this thread active on the job so that running() holds
		// even while its iterations are momentarily off the stack.
		claimed.activeWorkers++

		var result int
		if claimed.task.Serial {
			result = s.runSerialLocked(claimed, depth)
		} else {
			result = s.runOneLocked(claimed, depth)
		}

		if result != 0 {
			claimed.exitStatus = result
		}
		claimed.activeWorkers--

		if !claimed.running() && claimed.ownerIsSleeping {
			// The job just finished. Wake its owner.
			s.wakeOwners.Broadcast()
		}
	}
}

// runSerialLocked executes iterations of a serial job. The job is unlinked
// from the stack for the duration so no second thread starts on it, and
// relinked if iterations remain (a semaphore precondition failed, or a batch
// returned a non-zero status).
// Iterations are claimed in contiguous batches under the lock, then executed
// in a single entrypoint call with the lock released.
func (s *Scheduler) runSerialLocked(j *job, depth int) int {
	s.jobs.RemoveAt(depth)

	result := 0
	// The runnability check that claimed the job already acquired the
	// preconditions for the first iteration.
	iters := int32(1)
	for {
		// Claim as many contiguous iterations as possible.
		for j.task.Extent > iters && j.makeRunnable() {
			iters++
		}
		if iters == 0 {
			break
		}

		min := j.task.Min
		s.mu.Unlock()
		result = DoLoopTask(j.ctx, j.task.Fn, min, iters, j.task.Closure)
		s.mu.Lock()
		j.task.Min += iters
		j.task.Extent -= iters
		iters = 0

		if result != 0 {
			break
		}
	}

	// Put it back on the stack if it still has iterations to run.
	if j.task.Extent > 0 {
		s.jobs.PushTop(j)
	}
	return result
}

// runOneLocked claims and executes a single iteration of a parallel job. The
// iteration's inputs are captured under the lock; when the claim empties the
// job it is unlinked from the stack before the lock is released.
func (s *Scheduler) runOneLocked(j *job, depth int) int {
	ctx := j.ctx
	taskFn := j.taskFn
	loopFn := j.task.Fn
	min := j.task.Min
	closure := j.task.Closure

	j.task.Min++
	j.task.Extent--
	if j.task.Extent == 0 {
		s.jobs.RemoveAt(depth)
	}

	s.mu.Unlock()
	var result int
	if taskFn != nil {
		result = DoTask(ctx, taskFn, min, closure)
	} else {
		result = DoLoopTask(ctx, loopFn, min, 1, closure)
	}
	s.mu.Lock()
	return result
}

// wakeOnSemaphoreRelease is called by a bound [Semaphore] whose value just
// transitioned from exhausted to available: a job gated on it may now be
// runnable, so wake the threads that might claim one. Broadcasting without
// the mutex is fine; every waiter re-checks its predicate under the lock.
func (s *Scheduler) wakeOnSemaphoreRelease() {
	s.wakeATeam.Broadcast()
	s.wakeOwners.Broadcast()
}

// ParFor executes fn for every index in the half-open range [min, min+size)
// using the pool, returning when all iterations have completed. The calling
// goroutine assists the pool while it waits. Returns 0 when every iteration
// returned 0, otherwise the last non-zero status observed; a non-zero status
// does not cancel sibling iterations. If size <= 0, ParFor returns 0 without
// touching the pool, and if ctx is already canceled at submission it returns
// [ExitCanceled] without enqueuing anything.
func (s *Scheduler) ParFor(ctx context.Context, fn TaskFunc, min, size int32, closure Closure) int {
	if size <= 0 {
		return 0
	}
	if ctx.Err() != nil {
		return ExitCanceled
	}

	j := job{
		task: TaskDescriptor{
			Closure:    closure,
			Min:        min,
			Extent:     size,
			MinThreads: 1,
		},
		taskFn: fn,
		ctx:    ctx,
	}

	s.mu.Lock()
	s.enqueueLocked([]*job{&j})
	s.dispatchLocked(&j)
	s.mu.Unlock()
	return j.exitStatus
}

// ParallelTasks submits a group of tasks as one batch and returns when every
// one of them has completed. Descriptors with Extent <= 0 are skipped; if
// all are skipped, ParallelTasks returns 0 without touching the pool. The
// calling goroutine becomes the group's owner: it assists with its own
// sibling tasks (and any work that cannot block) until the whole group is
// done. Returns 0 when every iteration of every task returned 0, otherwise
// the last non-zero status observed across the group. If ctx is already
// canceled at submission, returns [ExitCanceled] without enqueuing anything.
func (s *Scheduler) ParallelTasks(ctx context.Context, tasks []TaskDescriptor) int {
	if ctx.Err() != nil {
		return ExitCanceled
	}

	// Scratch storage owned by this call. The scheduler's stack holds
	// only borrowed pointers into it, all unlinked before we return.
	scratch := make([]job, 0, len(tasks))
	for _, task := range tasks {
		if task.Extent <= 0 {
			continue
		}
		scratch = append(scratch, job{task: task, ctx: ctx})
	}
	if len(scratch) == 0 {
		return 0
	}
	jobs := make([]*job, len(scratch))
	for i := range scratch {
		jobs[i] = &scratch[i]
	}

	s.mu.Lock()
	s.enqueueLocked(jobs)
	exitStatus := 0
	for _, j := range jobs {
		// Join the jobs in submission order. The order doesn't affect
		// completion since the owner happily assists siblings too.
		s.dispatchLocked(j)
		if j.exitStatus != 0 {
			exitStatus = j.exitStatus
		}
	}
	s.mu.Unlock()
	return exitStatus
}

// SetNumThreads sets the desired number of pool workers and returns the
// previous value. n is clamped into [1, MaxThreads]; passing 0 restores the
// environment-derived default. Passing a negative count is caller misuse and
// is reported through [ErrorHandler].
//
// Raising the count takes effect at the next submission; lowering it never
// terminates existing workers.
func (s *Scheduler) SetNumThreads(n int) int {
	if n < 0 {
		ErrorHandler(ErrNegativeThreadCount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == 0 {
		n = envthreads.Desired()
	}
	old := s.desiredThreadsWorking
	s.desiredThreadsWorking = clampNumThreads(n)
	return old
}

// Shutdown wakes every worker, tells them the pool is closing, and joins
// them. It must not be called while any submission is still in flight.
// After Shutdown the Scheduler is reusable: the next submission
// re-initializes it. Calling Shutdown on a Scheduler that was never used is
// a no-op, so repeated calls are safe.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.wakeATeam.Broadcast()
	s.wakeBTeam.Broadcast()
	s.wakeOwners.Broadcast()
	s.initialized = false
	s.mu.Unlock()

	// Wait until they leave.
	s.wg.Wait()
}
