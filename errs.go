// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

package parapool

import (
	"math"

	"github.com/adriftlabs/parapool/internal/cerr"
)

// ErrNegativeThreadCount is reported through [ErrorHandler] when
// [SetNumThreads] is called with a negative count.
const ErrNegativeThreadCount = cerr.Error("parapool: thread count must be >= 0")

// ExitCanceled is the status [ParFor] and [ParallelTasks] return when the
// supplied context is already canceled at submission time. It gates
// submission only: a context canceled after work has been enqueued does not
// preempt in-flight iterations, which always run to completion.
const ExitCanceled = math.MinInt32

// ErrorHandler is invoked for caller misuse, such as a negative count passed
// to [SetNumThreads]. An embedding program may replace it to route the error
// into its own reporting; the default panics, and behavior after a handler
// returns normally is undefined.
var ErrorHandler = func(err error) {
	panic(err)
}
