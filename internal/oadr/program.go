// SPDX-License-Identifier: MIT

package oadr

import (
	"fmt"
	"time"
)

// Program is a persisted Demand-Response program.
type Program struct {
	ID         Identifier     `json:"id"`
	CreatedAt  time.Time      `json:"createdDateTime"`
	ModifiedAt time.Time      `json:"modificationDateTime"`
	Content    ProgramContent `json:"content"`
}

// ProgramContent is the caller-supplied part of a program.
type ProgramContent struct {
	ProgramName          string              `json:"programName"`
	ProgramLongName      *string             `json:"programLongName,omitempty"`
	RetailerName         *string             `json:"retailerName,omitempty"`
	RetailerLongName     *string             `json:"retailerLongName,omitempty"`
	ProgramType          *string             `json:"programType,omitempty"`
	Country              *string             `json:"country,omitempty"`
	PrincipalSubdivision *string             `json:"principalSubdivision,omitempty"`
	TimeZoneOffset       *Duration           `json:"timeZoneOffset,omitempty"`
	IntervalPeriod       *IntervalPeriod     `json:"intervalPeriod,omitempty"`
	PayloadDescriptors   []PayloadDescriptor `json:"payloadDescriptors,omitempty"`
	Targets              []TargetEntry       `json:"targets,omitempty"`
	BusinessID           *Identifier         `json:"businessId,omitempty"`
}

// PayloadDescriptor documents the payload types a program or event emits.
type PayloadDescriptor struct {
	PayloadType ValueType `json:"payloadType"`
	Units       *string   `json:"units,omitempty"`
	Currency    *string   `json:"currency,omitempty"`
}

// Validate enforces structural rules on a program content.
func (c *ProgramContent) Validate() error {
	if err := validateName("programName", c.ProgramName); err != nil {
		return err
	}
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("program target: %w", err)
		}
	}
	for _, d := range c.PayloadDescriptors {
		if err := d.PayloadType.Validate(); err != nil {
			return fmt.Errorf("program payload descriptor: %w", err)
		}
	}
	return nil
}

// VenNames returns the values of all VEN_NAME targets; these are
// materialized as program↔VEN assignments at write time.
func (c *ProgramContent) VenNames() []string {
	var names []string
	for _, t := range c.Targets {
		if t.Label == TargetVenName {
			names = append(names, t.StringValues()...)
		}
	}
	return names
}

// NonVenTargets returns the targets persisted inline, i.e. everything
// except the VEN_NAME entries.
func (c *ProgramContent) NonVenTargets() []TargetEntry {
	var out []TargetEntry
	for _, t := range c.Targets {
		if t.Label != TargetVenName {
			out = append(out, t)
		}
	}
	return out
}

func validateName(field, value string) error {
	if len(value) < 1 || len(value) > 128 {
		return fmt.Errorf("%s must be between 1 and 128 characters, got %d", field, len(value))
	}
	return nil
}
