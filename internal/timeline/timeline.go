// SPDX-License-Identifier: MIT

// Package timeline resolves a set of events into a non-overlapping,
// priority-ordered map over time. Clients use it to answer "what values
// apply right now, and when does that change".
package timeline

import (
	"errors"
	"sort"
	"time"

	"github.com/gridlink/openadr3/internal/log"
	"github.com/gridlink/openadr3/internal/oadr"
)

// EndOfTime stands in for the end of a range whose interval period has
// no duration.
var EndOfTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// ErrUnresolvableInterval is returned by New when an event interval has
// no interval period of its own and neither the event nor the program
// provides one.
var ErrUnresolvableInterval = errors.New("timeline: interval has no resolvable interval period")

// Range is a half-open time range [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r Range) overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Interval is the value carried by one timeline range.
type Interval struct {
	// EventID is the stable post-sort index of the source event.
	EventID int
	// Priority is the source event's priority.
	Priority oadr.Priority
	// RandomizeStart, when non-nil, is the resolved randomization window.
	// Only the chronologically first surviving fragment of a source event
	// carries it.
	RandomizeStart *time.Duration
	// Payloads are the value maps of the source interval.
	Payloads []oadr.EventValuesMap
}

// Entry pairs a range with its interval.
type Entry struct {
	Range    Range
	Interval Interval
}

// Timeline is a priority-resolved sequence of non-overlapping entries in
// ascending start order. It is immutable after construction; consumers
// treat it as a snapshot.
type Timeline struct {
	entries []Entry
}

// New builds a timeline from a program and its events.
//
// Events are applied in ascending priority order so that higher-priority
// events overwrite lower-priority ones. When two events of equal
// priority overlap, the event later in the input wins; the overlap is
// logged as a warning since the protocol leaves the winner undefined.
func New(program *oadr.ProgramContent, events []*oadr.EventContent) (*Timeline, error) {
	sorted := make([]*oadr.EventContent, len(events))
	copy(sorted, events)
	// Highest priority last: the final insertion wins any overlap.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[j].Priority.Wins(sorted[i].Priority)
	})

	logger := log.WithComponent("timeline")
	tl := &Timeline{}
	for id, ev := range sorted {
		for _, iv := range ev.Intervals {
			period := iv.IntervalPeriod
			if period == nil {
				period = ev.IntervalPeriod
			}
			if period == nil {
				period = program.IntervalPeriod
			}
			if period == nil {
				return nil, ErrUnresolvableInterval
			}

			r := Range{Start: period.Start, End: EndOfTime}
			if period.Duration != nil {
				r.End = r.Start.Add(period.Duration.Resolve(r.Start))
			}
			if !r.End.After(r.Start) {
				continue
			}

			var randomize *time.Duration
			if period.RandomizeStart != nil {
				d := period.RandomizeStart.Resolve(r.Start)
				randomize = &d
			}

			for _, existing := range tl.entries {
				if existing.Range.overlaps(r) && existing.Interval.Priority.Equal(ev.Priority) {
					logger.Warn().
						Str("event", "timeline.overlap_same_priority").
						Int("existing_event", existing.Interval.EventID).
						Int("new_event", id).
						Msg("overlapping intervals with equal priority, insertion order decides the winner")
				}
			}

			tl.insert(r, Interval{
				EventID:        id,
				Priority:       ev.Priority,
				RandomizeStart: randomize,
				Payloads:       append([]oadr.EventValuesMap(nil), iv.Payloads...),
			})
		}
	}

	tl.normalizeRandomizeStart()
	return tl, nil
}

// insert places r into the map, truncating or removing existing ranges
// so that no two stored ranges overlap. Existing ranges strictly inside
// r are removed; partial overlaps keep their non-overlapping leftovers.
func (t *Timeline) insert(r Range, iv Interval) {
	out := make([]Entry, 0, len(t.entries)+2)
	for _, e := range t.entries {
		if !e.Range.overlaps(r) {
			out = append(out, e)
			continue
		}
		if e.Range.Start.Before(r.Start) {
			out = append(out, Entry{Range: Range{Start: e.Range.Start, End: r.Start}, Interval: e.Interval})
		}
		if e.Range.End.After(r.End) {
			out = append(out, Entry{Range: Range{Start: r.End, End: e.Range.End}, Interval: e.Interval})
		}
	}
	idx := sort.Search(len(out), func(i int) bool {
		return out[i].Range.Start.After(r.Start)
	})
	out = append(out, Entry{})
	copy(out[idx+1:], out[idx:])
	out[idx] = Entry{Range: r, Interval: iv}
	t.entries = out
}

// normalizeRandomizeStart clears RandomizeStart on every fragment of a
// source event except the chronologically first one, so that an interval
// split by a higher-priority intrusion randomizes only once.
func (t *Timeline) normalizeRandomizeStart() {
	seen := make(map[int]struct{}, len(t.entries))
	for i := range t.entries {
		id := t.entries[i].Interval.EventID
		if _, dup := seen[id]; dup {
			t.entries[i].Interval.RandomizeStart = nil
			continue
		}
		seen[id] = struct{}{}
	}
}

// At returns the unique entry containing t, if any.
func (t *Timeline) At(at time.Time) (Entry, bool) {
	idx := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Range.Start.After(at)
	})
	if idx == 0 {
		return Entry{}, false
	}
	e := t.entries[idx-1]
	if !e.Range.Contains(at) {
		return Entry{}, false
	}
	return e, true
}

// NextUpdate returns the next instant at which the timeline's answer to
// At changes: the end of the range containing t, or the start of the
// next range at or after t.
func (t *Timeline) NextUpdate(at time.Time) (time.Time, bool) {
	if e, ok := t.At(at); ok {
		return e.Range.End, true
	}
	idx := sort.Search(len(t.entries), func(i int) bool {
		return !t.entries[i].Range.Start.Before(at)
	})
	if idx == len(t.entries) {
		return time.Time{}, false
	}
	return t.entries[idx].Range.Start, true
}

// Entries returns the entries in ascending start order. The slice is
// shared; callers must not mutate it.
func (t *Timeline) Entries() []Entry {
	return t.entries
}

// Len returns the number of stored ranges.
func (t *Timeline) Len() int {
	return len(t.entries)
}
