// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

// Package parapool provides a cooperative work-stealing thread pool for
// executing parallel loops and task graphs on behalf of a compiled
// pipeline. Callers submit either a flat parallel loop ([ParFor]) or a set
// of parallel tasks ([ParallelTasks]) that may themselves recursively
// submit further parallel work and synchronize through counting
// semaphores ([Semaphore]).
//
// Submitting goroutines become owners: rather than blocking on a channel
// while the pool's workers make progress, an owner joins the pool's
// dispatch loop and assists with any runnable work until its own
// submission completes. This lets deeply nested parallelism (a task body
// that itself calls [ParFor]) make forward progress without growing the
// goroutine count unboundedly and without deadlocking behind unrelated
// blocking work.
//
// Tasks that declare MayBlock require a minimum number of concurrently
// assisting threads (MinThreads) to avoid a task waiting forever for help
// that can never arrive; the dispatch loop only claims such a task when
// enough owners or workers could plausibly assist it.
package parapool
