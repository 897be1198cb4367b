// SPDX-License-Identifier: MIT

package oadr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration is an ISO-8601 duration with six independent float components.
// Year and month components are anchor-dependent, so converting to a
// concrete time span goes through Resolve.
type Duration struct {
	Negative bool
	Years    float64
	Months   float64
	Days     float64
	Hours    float64
	Minutes  float64
	Seconds  float64
}

var durationPattern = regexp.MustCompile(
	`^(-)?P(?:(\d+(?:[.,]\d+)?)Y)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)D)?` +
		`(?:T(?:(\d+(?:[.,]\d+)?)H)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`)

// ParseISODuration parses an ISO-8601 duration literal such as "PT1H30M"
// or "-P1DT12H". A bare "P" or "PT" with no components is rejected.
func ParseISODuration(s string) (Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return Duration{}, fmt.Errorf("invalid ISO 8601 duration: %q", s)
	}
	any := false
	component := func(raw string) float64 {
		if raw == "" {
			return 0
		}
		any = true
		v, _ := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		return v
	}
	d := Duration{
		Negative: m[1] == "-",
		Years:    component(m[2]),
		Months:   component(m[3]),
		Days:     component(m[4]),
		Hours:    component(m[5]),
		Minutes:  component(m[6]),
		Seconds:  component(m[7]),
	}
	if !any {
		return Duration{}, fmt.Errorf("ISO 8601 duration without components: %q", s)
	}
	return d, nil
}

// String always prints the full component form so that parse∘print is
// the identity on the component vector.
func (d Duration) String() string {
	var b strings.Builder
	if d.Negative {
		b.WriteByte('-')
	}
	fmt.Fprintf(&b, "P%sY%sM%sDT%sH%sM%sS",
		formatComponent(d.Years), formatComponent(d.Months), formatComponent(d.Days),
		formatComponent(d.Hours), formatComponent(d.Minutes), formatComponent(d.Seconds))
	return b.String()
}

func formatComponent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsZero reports whether all components are zero.
func (d Duration) IsZero() bool {
	return d.Years == 0 && d.Months == 0 && d.Days == 0 &&
		d.Hours == 0 && d.Minutes == 0 && d.Seconds == 0
}

// Resolve converts the duration into a concrete time span at the given
// anchor. Whole years and months use calendar arithmetic at the anchor;
// a fractional month remainder is approximated as 30 days. Days and the
// sub-day components are fixed offsets. Leap seconds are ignored.
func (d Duration) Resolve(anchor time.Time) time.Duration {
	months := d.Years*12 + d.Months
	whole := int(months)
	frac := months - float64(whole)

	end := anchor.AddDate(0, whole, 0)
	seconds := frac*30*86400 + d.Days*86400 + d.Hours*3600 + d.Minutes*60 + d.Seconds
	end = end.Add(time.Duration(seconds * float64(time.Second)))

	span := end.Sub(anchor)
	if d.Negative {
		return -span
	}
	return span
}

// MarshalJSON encodes the duration as its ISO-8601 string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes and validates an ISO-8601 duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseISODuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
