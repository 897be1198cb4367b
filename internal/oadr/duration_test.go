// SPDX-License-Identifier: MIT

package oadr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISODuration(t *testing.T) {
	cases := []struct {
		in   string
		want Duration
	}{
		{"PT1H", Duration{Hours: 1}},
		{"PT1H30M", Duration{Hours: 1, Minutes: 30}},
		{"P1DT12H", Duration{Days: 1, Hours: 12}},
		{"P1Y2M3DT4H5M6.5S", Duration{Years: 1, Months: 2, Days: 3, Hours: 4, Minutes: 5, Seconds: 6.5}},
		{"PT0S", Duration{}},
		{"-PT15M", Duration{Negative: true, Minutes: 15}},
		{"PT0,5H", Duration{Hours: 0.5}},
	}
	for _, tc := range cases {
		got, err := ParseISODuration(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseISODurationRejects(t *testing.T) {
	for _, s := range []string{"", "P", "PT", "1H", "PT1X", "P-1D", "one hour"} {
		_, err := ParseISODuration(s)
		assert.Error(t, err, s)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	durations := []Duration{
		{},
		{Hours: 1},
		{Years: 1, Months: 2, Days: 3, Hours: 4, Minutes: 5, Seconds: 6.25},
		{Negative: true, Minutes: 90},
		{Seconds: 0.001},
	}
	for _, d := range durations {
		parsed, err := ParseISODuration(d.String())
		require.NoError(t, err, d.String())
		assert.Equal(t, d, parsed, d.String())
	}
}

func TestDurationResolve(t *testing.T) {
	anchor := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Hour, Duration{Hours: 1}.Resolve(anchor))
	assert.Equal(t, 90*time.Minute, Duration{Hours: 1, Minutes: 30}.Resolve(anchor))
	assert.Equal(t, -15*time.Minute, Duration{Negative: true, Minutes: 15}.Resolve(anchor))

	// One month from mid-January is 31 days: calendar arithmetic, not a
	// fixed 30-day block.
	assert.Equal(t, 31*24*time.Hour, Duration{Months: 1}.Resolve(anchor))

	// A year spanning February 2024 is 366 days.
	assert.Equal(t, 366*24*time.Hour, Duration{Years: 1}.Resolve(time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDurationJSON(t *testing.T) {
	d := Duration{Hours: 1, Minutes: 30}
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"P0Y0M0DT1H30M0S"`, string(b))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(b))
	assert.Equal(t, d, back)
}
