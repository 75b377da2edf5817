// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package parapool

import "sync/atomic"

// A Semaphore is a counting semaphore that gates job readiness rather than
// parking goroutines itself; all blocking in this package happens in the
// scheduler's dispatch loop, never inside the semaphore. TryAcquire
// therefore never sleeps: it either succeeds immediately or fails
// immediately, leaving the value unchanged.
//
// The zero value is not ready to use; create one with [NewSemaphore] or
// [SemaphoreInit].
type Semaphore struct {
	value atomic.Int64
	sched *Scheduler
}

// NewSemaphore creates a Semaphore bound to sched with an initial value of
// n. Binding to a scheduler lets Release wake the scheduler's A-team and
// sleeping owners whenever the semaphore transitions from exhausted to
// available, exactly as it would need to for a job gated on this semaphore
// to become runnable.
func NewSemaphore(sched *Scheduler, n int) *Semaphore {
	s := &Semaphore{sched: sched}
	s.value.Store(int64(n))
	return s
}

// SemaphoreInit initializes s to n against the package-level default
// scheduler and returns n, matching the shape of the entry point an
// embedding pipeline links against directly.
func SemaphoreInit(s *Semaphore, n int) int {
	s.sched = defaultScheduler()
	s.value.Store(int64(n))
	return n
}

// Release atomically adds n to the semaphore's value and returns the new
// value. Release is monotone increasing: it never decreases the value.
//
// If the value transitions away from exhausted (the post-release value
// equals n, meaning it was zero beforehand), a job that was blocked behind
// this semaphore may now be runnable, so Release broadcasts the bound
// scheduler's A-team and owners wake channels.
func (s *Semaphore) Release(n int) int {
	newValue := s.value.Add(int64(n))
	if newValue == int64(n) && s.sched != nil {
		s.sched.wakeOnSemaphoreRelease()
	}
	return int(newValue)
}

// TryAcquire attempts to atomically decrement the semaphore's value by n.
// It never blocks: on success the value is decremented by exactly n and
// true is returned; on failure (the decrement would have driven the value
// negative) the value is restored and false is returned.
func (s *Semaphore) TryAcquire(n int) bool {
	newValue := s.value.Add(int64(-n))
	if newValue < 0 {
		s.value.Add(int64(n))
		return false
	}
	return true
}

// Value returns the semaphore's current value. Intended for tests and
// diagnostics; ordinary scheduling code only ever needs Release and
// TryAcquire.
func (s *Semaphore) Value() int {
	return int(s.value.Load())
}
