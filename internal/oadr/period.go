// SPDX-License-Identifier: MIT

package oadr

import "time"

// IntervalPeriod defines a time window: a start instant, an optional
// duration (missing means the window extends to end-of-time) and an
// optional randomization window applied to the start.
type IntervalPeriod struct {
	Start          time.Time `json:"start"`
	Duration       *Duration `json:"duration,omitempty"`
	RandomizeStart *Duration `json:"randomizeStart,omitempty"`
}
