// Copyright (c) The parapool authors. All rights reserved.
// Licensed under the MIT License.

// Package groupid mints opaque, monotonically increasing identifiers used
// to recognize sibling jobs submitted by the same call. A fresh integer per
// submission is deliberately preferred over any address-identity trick:
// only equality is ever asked of a token, and an integer stays valid no
// matter how the submitting call's frame moves.
package groupid

import "sync/atomic"

var next atomic.Uint64

// ID identifies the set of jobs submitted together by one call to ParFor
// or ParallelTasks. The zero ID is never issued by New, so it can be used
// by callers as an "unset" sentinel.
type ID uint64

// New returns a fresh ID, distinct from every ID returned previously in
// the lifetime of the process.
func New() ID {
	return ID(next.Add(1))
}
