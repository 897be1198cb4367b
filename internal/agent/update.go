// SPDX-License-Identifier: MIT

package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gridlink/openadr3/internal/log"
	"github.com/gridlink/openadr3/internal/metrics"
	"github.com/gridlink/openadr3/internal/timeline"
)

// ScheduleEntry is one future limit change in an EnforcedLimits
// snapshot.
type ScheduleEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Limits    Limits    `json:"limits"`
}

// EnforcedLimits is the per-tick snapshot emitted to the downstream
// consumer: the limit in force now, the known future schedule, and how
// long the snapshot stays meaningful.
type EnforcedLimits struct {
	ID             uuid.UUID       `json:"id"`
	ValidUntil     time.Time       `json:"validUntil"`
	LimitsRootSide Limits          `json:"limitsRootSide"`
	Schedule       []ScheduleEntry `json:"schedule"`
}

// Run is the update task: it waits for either a new timeline or the
// next interval boundary of the current one, then emits a snapshot of
// the currently enforced limits. It exits when the timeline channel
// closes or the context is cancelled.
func Run(ctx context.Context, clk Clock, timelines <-chan *timeline.Timeline, sink func(EnforcedLimits)) {
	logger := log.WithComponent("agent.update")
	var current *timeline.Timeline

	for {
		var wake <-chan time.Time
		if current != nil {
			if next, ok := current.NextUpdate(clk.Now()); ok {
				delta := next.Sub(clk.Now())
				if delta < 0 {
					// Clock jumped past the boundary; fire immediately.
					delta = 0
				}
				wake = clk.After(delta)
			}
		}

		select {
		case tl, ok := <-timelines:
			if !ok {
				logger.Debug().Str("event", "update.channel_closed").Msg("update loop exiting")
				return
			}
			current = tl
		case <-wake:
		case <-ctx.Done():
			return
		}

		if snapshot, ok := buildSnapshot(current, clk.Now()); ok {
			metrics.EnforcedLimitsEmittedTotal.Inc()
			sink(snapshot)
		}
	}
}

// buildSnapshot derives an EnforcedLimits from the timeline at now:
// the active interval's limit, the schedule over all not-yet-finished
// ranges, and valid_until as the furthest known range end. No snapshot
// is produced when no interval is active or the active one carries no
// import-capacity limit.
func buildSnapshot(tl *timeline.Timeline, now time.Time) (EnforcedLimits, bool) {
	if tl == nil {
		return EnforcedLimits{}, false
	}
	active, ok := tl.At(now)
	if !ok {
		return EnforcedLimits{}, false
	}
	limits := ExtractImportCapacity(active.Interval.Payloads)
	if limits == nil {
		return EnforcedLimits{}, false
	}

	var schedule []ScheduleEntry
	var validUntil time.Time
	for _, e := range tl.Entries() {
		if e.Range.End.Before(now) {
			continue
		}
		if e.Range.End.After(validUntil) {
			validUntil = e.Range.End
		}
		if l := ExtractImportCapacity(e.Interval.Payloads); l != nil {
			schedule = append(schedule, ScheduleEntry{Timestamp: e.Range.Start, Limits: *l})
		}
	}

	return EnforcedLimits{
		ID:             uuid.New(),
		ValidUntil:     validUntil,
		LimitsRootSide: *limits,
		Schedule:       schedule,
	}, true
}
