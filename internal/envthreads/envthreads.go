// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

// Package envthreads resolves the pool's default worker count from the
// environment. HL_NUM_THREADS is preferred; HL_NUMTHREADS is a legacy alias
// honored for pipelines built against older runtimes.
package envthreads

import (
	"os"
	"runtime"
	"strconv"
)

// Desired returns the environment-derived worker count, falling back to the
// host CPU count when neither variable is set. The value is returned
// unclamped; a set-but-unparseable variable yields 0, which the scheduler's
// clamp raises to 1. Callers are expected to clamp.
func Desired() int {
	for _, name := range []string{"HL_NUM_THREADS", "HL_NUMTHREADS"} {
		if v, ok := os.LookupEnv(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return runtime.NumCPU()
}
