// SPDX-License-Identifier: MIT

// Package agent runs the VEN side of the protocol: polling a program's
// events, rebuilding the timeline and emitting enforced-limits
// snapshots at interval boundaries.
package agent

import "time"

// Clock abstracts wall time so the update loop can be driven by a
// simulated clock in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
