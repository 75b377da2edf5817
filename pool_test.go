// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package parapool_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/adriftlabs/parapool"
	"github.com/stretchr/testify/require"
)

func TestParForCoversRange(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(8)

	const min, size = 3, 1000
	counts := make([]atomic.Int32, size)
	status := s.ParFor(ctx, func(_ context.Context, idx int32, _ parapool.Closure) int {
		counts[idx-min].Add(1)
		return 0
	}, min, size, nil)

	chk.Zero(status)
	for i := range counts {
		chk.Equal(int32(1), counts[i].Load(), "index %d", i)
	}
}

func TestParForPassesClosureAndContext(t *testing.T) {
	chk := require.New(t)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "pipeline-7")

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(2)

	counts := make([]atomic.Int32, 16)
	status := s.ParFor(ctx, func(ctx context.Context, idx int32, closure parapool.Closure) int {
		if ctx.Value(ctxKey{}) != "pipeline-7" {
			return -1
		}
		closure.([]atomic.Int32)[idx].Add(1)
		return 0
	}, 0, int32(len(counts)), counts)

	chk.Zero(status)
	for i := range counts {
		chk.Equal(int32(1), counts[i].Load())
	}
}

func TestParForZeroSize(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()

	called := false
	status := s.ParFor(context.Background(), func(_ context.Context, _ int32, _ parapool.Closure) int {
		called = true
		return 0
	}, 0, 0, nil)

	chk.Zero(status)
	chk.False(called)

	status = s.ParFor(context.Background(), nil, 10, -3, nil)
	chk.Zero(status)
}

func TestParForCanceledContext(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := s.ParFor(ctx, func(_ context.Context, _ int32, _ parapool.Closure) int {
		return 0
	}, 0, 10, nil)
	chk.Equal(parapool.ExitCanceled, status)
}

func TestParForErrorPropagation(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(4)

	var ran atomic.Int32
	status := s.ParFor(context.Background(), func(_ context.Context, idx int32, _ parapool.Closure) int {
		ran.Add(1)
		if idx == 3 {
			return -7
		}
		return 0
	}, 0, 5, nil)

	// The failure is reported, but it does not cancel the sibling
	// iterations.
	chk.Equal(-7, status)
	chk.Equal(int32(5), ran.Load())
}

func TestSerialTaskRunsInOrder(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(4)

	// Serial iterations never overlap and successive batches are
	// ordered by the pool, so a plain slice is safe here.
	var log []int32
	status := s.ParallelTasks(context.Background(), []parapool.TaskDescriptor{{
		Name: "append_to_log",
		Fn: func(_ context.Context, min, extent int32, _ parapool.Closure) int {
			for i := int32(0); i < extent; i++ {
				log = append(log, min+i)
			}
			return 0
		},
		Min:        0,
		Extent:     5,
		MinThreads: 1,
		Serial:     true,
	}})

	chk.Zero(status)
	chk.Equal([]int32{0, 1, 2, 3, 4}, log)
}

func TestParallelTasksSkipsEmptyTasks(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()

	called := false
	fn := func(_ context.Context, _, _ int32, _ parapool.Closure) int {
		called = true
		return 0
	}
	status := s.ParallelTasks(context.Background(), []parapool.TaskDescriptor{
		{Fn: fn, Min: 0, Extent: 0, MinThreads: 1},
		{Fn: fn, Min: 0, Extent: -4, MinThreads: 1},
	})

	chk.Zero(status)
	chk.False(called)
}

func TestParallelTasksSemaphoreGating(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(4)

	sem := parapool.NewSemaphore(s, 0)

	const extent = 10
	var produced atomic.Int32
	var orderViolations atomic.Int32

	status := s.ParallelTasks(ctx, []parapool.TaskDescriptor{
		{
			Name: "producer",
			Fn: func(_ context.Context, min, extent int32, _ parapool.Closure) int {
				for i := int32(0); i < extent; i++ {
					produced.Add(1)
					sem.Release(1)
				}
				return 0
			},
			Min:        0,
			Extent:     extent,
			MinThreads: 1,
		},
		{
			Name: "consumer",
			Fn: func(_ context.Context, min, extent int32, _ parapool.Closure) int {
				for i := min; i < min+extent; i++ {
					// Iteration k acquires the semaphore k+1 times in
					// total, and the producer bumps its counter before
					// each release.
					if produced.Load() < i+1 {
						orderViolations.Add(1)
					}
				}
				return 0
			},
			Min:        0,
			Extent:     extent,
			Semaphores: []parapool.SemaphoreRequirement{{Sem: sem, Count: 1}},
			MinThreads: 1,
			MayBlock:   true,
		},
	})

	chk.Zero(status)
	chk.Equal(int32(extent), produced.Load())
	chk.Zero(orderViolations.Load())
	chk.Equal(0, sem.Value())
}

func TestNestedParallelism(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(2)

	var total atomic.Int32
	status := s.ParFor(ctx, func(ctx context.Context, _ int32, _ parapool.Closure) int {
		return s.ParFor(ctx, func(_ context.Context, _ int32, _ parapool.Closure) int {
			total.Add(1)
			return 0
		}, 0, 100, nil)
	}, 0, 4, nil)

	chk.Zero(status)
	chk.Equal(int32(400), total.Load())
}

func TestBlockingTaskSpawnsMinThreads(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(2)

	// The pool only has 2 desired workers, but the task declares it
	// needs 4 threads of potential help. Submission must spawn the
	// difference and the call must complete.
	var ran atomic.Int32
	status := s.ParallelTasks(context.Background(), []parapool.TaskDescriptor{{
		Name: "wide_blocking_task",
		Fn: func(_ context.Context, _, _ int32, _ parapool.Closure) int {
			ran.Add(1)
			return 0
		},
		Min:        0,
		Extent:     1,
		MinThreads: 4,
		MayBlock:   true,
	}})

	chk.Zero(status)
	chk.Equal(int32(1), ran.Load())
}

func TestBlockingTaskMinThreadsBeyondCap(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(1)

	// A requirement beyond MaxThreads is clamped at submission; with
	// the submitting thread counting toward the requirement the call
	// still completes.
	var ran atomic.Int32
	status := s.ParallelTasks(context.Background(), []parapool.TaskDescriptor{{
		Fn: func(_ context.Context, _, _ int32, _ parapool.Closure) int {
			ran.Add(1)
			return 0
		},
		Min:        0,
		Extent:     1,
		MinThreads: parapool.MaxThreads + 50,
		MayBlock:   true,
	}})

	chk.Zero(status)
	chk.Equal(int32(1), ran.Load())
}

func TestParallelTasksAggregatesStatus(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()
	s.SetNumThreads(2)

	ok := func(_ context.Context, _, _ int32, _ parapool.Closure) int { return 0 }
	fail := func(_ context.Context, _, _ int32, _ parapool.Closure) int { return 42 }

	status := s.ParallelTasks(context.Background(), []parapool.TaskDescriptor{
		{Fn: ok, Min: 0, Extent: 3, MinThreads: 1},
		{Fn: fail, Min: 0, Extent: 1, MinThreads: 1},
		{Fn: ok, Min: 0, Extent: 3, MinThreads: 1},
	})
	chk.Equal(42, status)
}

func TestSetNumThreads(t *testing.T) {
	chk := require.New(t)
	t.Setenv("HL_NUM_THREADS", "6")

	s := parapool.NewScheduler()
	defer s.Shutdown()

	chk.Equal(0, s.SetNumThreads(5))
	chk.Equal(5, s.SetNumThreads(3))

	// Zero restores the environment-derived default.
	chk.Equal(3, s.SetNumThreads(0))
	chk.Equal(6, s.SetNumThreads(2))

	// Values beyond the cap are clamped.
	chk.Equal(2, s.SetNumThreads(parapool.MaxThreads+100))
	chk.Equal(parapool.MaxThreads, s.SetNumThreads(1))
}

func TestSetNumThreadsNegativeIsMisuse(t *testing.T) {
	chk := require.New(t)

	s := parapool.NewScheduler()
	defer s.Shutdown()

	chk.PanicsWithValue(parapool.ErrNegativeThreadCount, func() {
		s.SetNumThreads(-1)
	})
}

func TestShutdownIdempotent(t *testing.T) {
	chk := require.New(t)

	// Shutdown of a pool that was never used is a no-op.
	s := parapool.NewScheduler()
	s.Shutdown()
	s.Shutdown()

	// And a used pool can be shut down repeatedly, then reused.
	s.SetNumThreads(2)
	var ran atomic.Int32
	body := func(_ context.Context, _ int32, _ parapool.Closure) int {
		ran.Add(1)
		return 0
	}
	chk.Zero(s.ParFor(context.Background(), body, 0, 10, nil))
	s.Shutdown()
	s.Shutdown()

	chk.Zero(s.ParFor(context.Background(), body, 0, 10, nil))
	s.Shutdown()
	chk.Equal(int32(20), ran.Load())
}
