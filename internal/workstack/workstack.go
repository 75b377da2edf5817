// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

// Package workstack implements the scheduler's LIFO job stack. The dispatch
// loop walks it from the most recently pushed job toward the oldest one and
// splices out whichever job it claims, so the stack needs indexed access and
// removal-by-depth in addition to plain push. Every method assumes the caller
// already holds whatever lock protects the stack; nothing here is safe for
// unsynchronized concurrent use.
package workstack

import "github.com/gammazero/deque"

// Stack is a LIFO stack that also supports an indexed top-to-bottom scan.
// Depth 0 is the most recently pushed job still on the stack.
//
// The zero value is an empty stack ready to use.
type Stack[T any] struct {
	q deque.Deque[T]
}

// Len returns the number of jobs currently on the stack.
func (s *Stack[T]) Len() int {
	return s.q.Len()
}

// PushTop pushes one job onto the top of the stack.
func (s *Stack[T]) PushTop(v T) {
	s.q.PushFront(v)
}

// PushTopAll pushes a batch of jobs so that vs[0] ends up on top, without
// requiring the caller to reverse its slice first.
func (s *Stack[T]) PushTopAll(vs []T) {
	for i := len(vs) - 1; i >= 0; i-- {
		s.q.PushFront(vs[i])
	}
}

// At returns the job at the given depth from the top.
func (s *Stack[T]) At(depth int) T {
	return s.q.At(depth)
}

// RemoveAt splices the job at the given depth out of the stack, preserving
// the relative order of the remaining jobs.
func (s *Stack[T]) RemoveAt(depth int) T {
	return s.q.Remove(depth)
}
