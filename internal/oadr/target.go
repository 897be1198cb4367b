// SPDX-License-Identifier: MIT

package oadr

import "fmt"

// TargetLabel tags a target entry. The named constants carry storage
// semantics (VEN_NAME targets become program↔VEN assignments, the name
// labels become dedicated query joins); any other string is a private
// label matched by JSON containment.
type TargetLabel string

const (
	TargetPowerServiceLocation TargetLabel = "POWER_SERVICE_LOCATION"
	TargetServiceArea          TargetLabel = "SERVICE_AREA"
	TargetGroup                TargetLabel = "GROUP"
	TargetResourceName         TargetLabel = "RESOURCE_NAME"
	TargetVenName              TargetLabel = "VEN_NAME"
	TargetEventName            TargetLabel = "EVENT_NAME"
	TargetProgramName          TargetLabel = "PROGRAM_NAME"
)

// Validate bounds the length of private target labels.
func (l TargetLabel) Validate() error {
	if len(l) < 1 || len(l) > 128 {
		return fmt.Errorf("target label must be between 1 and 128 characters, got %d", len(l))
	}
	return nil
}

// TargetEntry is one (label, values) tag used to filter or route
// programs and events.
type TargetEntry struct {
	Label  TargetLabel `json:"type"`
	Values []Value     `json:"values"`
}

// Validate checks the label bounds and that at least one value is given.
func (t TargetEntry) Validate() error {
	if err := t.Label.Validate(); err != nil {
		return err
	}
	if len(t.Values) == 0 {
		return fmt.Errorf("target %q has no values", t.Label)
	}
	return nil
}

// StringValues returns the string-typed values of the entry. VEN_NAME
// targets must be strings; other kinds are skipped.
func (t TargetEntry) StringValues() []string {
	out := make([]string, 0, len(t.Values))
	for _, v := range t.Values {
		if s, ok := v.Str(); ok {
			out = append(out, s)
		}
	}
	return out
}
