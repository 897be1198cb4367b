// SPDX-License-Identifier: MIT

package timeline

import (
	"testing"
	"time"

	"github.com/gridlink/openadr3/internal/oadr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

func hours(h float64) *oadr.Duration {
	return &oadr.Duration{Hours: h}
}

func period(start time.Time, duration *oadr.Duration) *oadr.IntervalPeriod {
	return &oadr.IntervalPeriod{Start: start, Duration: duration}
}

func event(priority oadr.Priority, p *oadr.IntervalPeriod, payload float64) *oadr.EventContent {
	return &oadr.EventContent{
		ProgramID:      "program-1",
		Priority:       priority,
		IntervalPeriod: p,
		Intervals: []oadr.EventInterval{{
			ID: 0,
			Payloads: []oadr.EventValuesMap{{
				Type:   oadr.ValueTypeImportCapacityLimit,
				Values: []oadr.Value{oadr.NumberValue(payload)},
			}},
		}},
	}
}

func payloadOf(t *testing.T, e Entry) float64 {
	t.Helper()
	require.Len(t, e.Interval.Payloads, 1)
	require.Len(t, e.Interval.Payloads[0].Values, 1)
	v, ok := e.Interval.Payloads[0].Values[0].Numeric()
	require.True(t, ok)
	return v
}

func assertNoOverlaps(t *testing.T, tl *Timeline) {
	t.Helper()
	entries := tl.Entries()
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i-1].Range.Start.After(entries[i].Range.Start), "entries out of order")
		assert.False(t, entries[i].Range.Start.Before(entries[i-1].Range.End), "entries overlap")
	}
}

func TestSamePriorityInsertOrderWins(t *testing.T) {
	// E1=[0h,10h) then E2=[5h,15h), both unspecified priority.
	e1 := event(oadr.UnspecifiedPriority(), period(epoch, hours(10)), 1)
	e2 := event(oadr.UnspecifiedPriority(), period(epoch.Add(5*time.Hour), hours(10)), 2)

	tl, err := New(&oadr.ProgramContent{ProgramName: "p"}, []*oadr.EventContent{e1, e2})
	require.NoError(t, err)
	require.Equal(t, 2, tl.Len())
	assertNoOverlaps(t, tl)

	entries := tl.Entries()
	assert.Equal(t, Range{epoch, epoch.Add(5 * time.Hour)}, entries[0].Range)
	assert.Equal(t, 1.0, payloadOf(t, entries[0]))
	assert.Equal(t, Range{epoch.Add(5 * time.Hour), epoch.Add(15 * time.Hour)}, entries[1].Range)
	assert.Equal(t, 2.0, payloadOf(t, entries[1]))
}

func TestHigherPriorityCarvesMiddle(t *testing.T) {
	// E1=[0h,10h)@p=2, E2=[5h,8h)@p=1. 0 is highest, so E2 wins the middle.
	e1 := event(oadr.NewPriority(2), period(epoch, hours(10)), 1)
	e2 := event(oadr.NewPriority(1), period(epoch.Add(5*time.Hour), hours(3)), 2)

	tl, err := New(&oadr.ProgramContent{ProgramName: "p"}, []*oadr.EventContent{e1, e2})
	require.NoError(t, err)
	require.Equal(t, 3, tl.Len())
	assertNoOverlaps(t, tl)

	entries := tl.Entries()
	assert.Equal(t, Range{epoch, epoch.Add(5 * time.Hour)}, entries[0].Range)
	assert.Equal(t, 1.0, payloadOf(t, entries[0]))
	assert.Equal(t, Range{epoch.Add(5 * time.Hour), epoch.Add(8 * time.Hour)}, entries[1].Range)
	assert.Equal(t, 2.0, payloadOf(t, entries[1]))
	assert.Equal(t, Range{epoch.Add(8 * time.Hour), epoch.Add(10 * time.Hour)}, entries[2].Range)
	assert.Equal(t, 1.0, payloadOf(t, entries[2]))
}

func TestRandomizeStartOnlyOnFirstFragment(t *testing.T) {
	p1 := period(epoch, hours(10))
	p1.RandomizeStart = &oadr.Duration{Minutes: 5}
	e1 := event(oadr.NewPriority(2), p1, 1)
	e2 := event(oadr.NewPriority(1), period(epoch.Add(5*time.Hour), hours(3)), 2)

	tl, err := New(&oadr.ProgramContent{ProgramName: "p"}, []*oadr.EventContent{e1, e2})
	require.NoError(t, err)
	require.Equal(t, 3, tl.Len())

	entries := tl.Entries()
	require.NotNil(t, entries[0].Interval.RandomizeStart)
	assert.Equal(t, 5*time.Minute, *entries[0].Interval.RandomizeStart)
	assert.Nil(t, entries[1].Interval.RandomizeStart)
	assert.Nil(t, entries[2].Interval.RandomizeStart, "second fragment of the split event must not randomize again")
}

func TestIntervalPeriodInheritance(t *testing.T) {
	program := &oadr.ProgramContent{
		ProgramName:    "p",
		IntervalPeriod: period(epoch, hours(2)),
	}
	// Event has no period anywhere of its own: inherits the program's.
	ev := &oadr.EventContent{
		ProgramID: "program-1",
		Priority:  oadr.UnspecifiedPriority(),
		Intervals: []oadr.EventInterval{{ID: 0}},
	}

	tl, err := New(program, []*oadr.EventContent{ev})
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len())
	assert.Equal(t, Range{epoch, epoch.Add(2 * time.Hour)}, tl.Entries()[0].Range)
}

func TestUnresolvableIntervalPeriod(t *testing.T) {
	ev := &oadr.EventContent{
		ProgramID: "program-1",
		Priority:  oadr.UnspecifiedPriority(),
		Intervals: []oadr.EventInterval{{ID: 0}},
	}
	_, err := New(&oadr.ProgramContent{ProgramName: "p"}, []*oadr.EventContent{ev})
	assert.ErrorIs(t, err, ErrUnresolvableInterval)
}

func TestMissingDurationExtendsToEndOfTime(t *testing.T) {
	ev := event(oadr.UnspecifiedPriority(), period(epoch, nil), 1)
	tl, err := New(&oadr.ProgramContent{ProgramName: "p"}, []*oadr.EventContent{ev})
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len())
	assert.Equal(t, EndOfTime, tl.Entries()[0].Range.End)

	_, ok := tl.At(epoch.Add(100000 * time.Hour))
	assert.True(t, ok)
}

func TestAt(t *testing.T) {
	e1 := event(oadr.UnspecifiedPriority(), period(epoch.Add(time.Hour), hours(1)), 1)
	tl, err := New(&oadr.ProgramContent{ProgramName: "p"}, []*oadr.EventContent{e1})
	require.NoError(t, err)

	_, ok := tl.At(epoch)
	assert.False(t, ok)

	e, ok := tl.At(epoch.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, 1.0, payloadOf(t, e))

	// End is exclusive.
	_, ok = tl.At(epoch.Add(2 * time.Hour))
	assert.False(t, ok)
}

func TestNextUpdate(t *testing.T) {
	e1 := event(oadr.UnspecifiedPriority(), period(epoch.Add(time.Hour), hours(1)), 1)
	e2 := event(oadr.UnspecifiedPriority(), period(epoch.Add(4*time.Hour), hours(1)), 2)
	tl, err := New(&oadr.ProgramContent{ProgramName: "p"}, []*oadr.EventContent{e1, e2})
	require.NoError(t, err)

	// Before any range: the start of the first one.
	next, ok := tl.NextUpdate(epoch)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Hour), next)

	// Inside a range: its end.
	next, ok = tl.NextUpdate(epoch.Add(90 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, epoch.Add(2*time.Hour), next)

	// In the gap: the start of the following range.
	next, ok = tl.NextUpdate(epoch.Add(3 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, epoch.Add(4*time.Hour), next)

	// After everything: nothing left.
	_, ok = tl.NextUpdate(epoch.Add(6 * time.Hour))
	assert.False(t, ok)
}

func TestInteriorInsertionSplitsAndReinserts(t *testing.T) {
	// Three stacked events: the lowest covers everything, the middle
	// carves its window, the highest carves an inner window again.
	e1 := event(oadr.UnspecifiedPriority(), period(epoch, hours(24)), 1)
	e2 := event(oadr.NewPriority(10), period(epoch.Add(6*time.Hour), hours(12)), 2)
	e3 := event(oadr.NewPriority(0), period(epoch.Add(10*time.Hour), hours(2)), 3)

	tl, err := New(&oadr.ProgramContent{ProgramName: "p"}, []*oadr.EventContent{e3, e1, e2})
	require.NoError(t, err)
	assertNoOverlaps(t, tl)
	require.Equal(t, 5, tl.Len())

	values := make([]float64, 0, 5)
	for _, e := range tl.Entries() {
		values = append(values, payloadOf(t, e))
	}
	assert.Equal(t, []float64{1, 2, 3, 2, 1}, values)
}
