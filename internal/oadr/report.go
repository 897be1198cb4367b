// SPDX-License-Identifier: MIT

package oadr

import (
	"errors"
	"fmt"
	"time"
)

// Report is telemetry submitted by a VEN in response to an event.
type Report struct {
	ID         Identifier    `json:"id"`
	CreatedAt  time.Time     `json:"createdDateTime"`
	ModifiedAt time.Time     `json:"modificationDateTime"`
	Content    ReportContent `json:"content"`
}

// ReportContent is the caller-supplied part of a report. EventID must
// reference an event belonging to ProgramID; the store rejects the pair
// otherwise.
type ReportContent struct {
	ProgramID          Identifier          `json:"programID"`
	EventID            Identifier          `json:"eventID"`
	ClientName         string              `json:"clientName"`
	ReportName         *string             `json:"reportName,omitempty"`
	PayloadDescriptors []PayloadDescriptor `json:"payloadDescriptors,omitempty"`
	Resources          []ReportResource    `json:"resources"`
}

// ReportResource carries the interval data of one resource.
type ReportResource struct {
	ResourceName   string           `json:"resourceName"`
	IntervalPeriod *IntervalPeriod  `json:"intervalPeriod,omitempty"`
	Intervals      []ReportInterval `json:"intervals"`
}

// ReportInterval is one sample window of a report resource.
type ReportInterval struct {
	ID             int32            `json:"id"`
	IntervalPeriod *IntervalPeriod  `json:"intervalPeriod,omitempty"`
	Payloads       []EventValuesMap `json:"payloads"`
}

// Validate enforces structural rules on a report content.
func (c *ReportContent) Validate() error {
	if c.ProgramID == "" {
		return errors.New("report programID is required")
	}
	if c.EventID == "" {
		return errors.New("report eventID is required")
	}
	if err := validateName("clientName", c.ClientName); err != nil {
		return err
	}
	if c.ReportName != nil {
		if err := validateName("reportName", *c.ReportName); err != nil {
			return err
		}
	}
	for _, r := range c.Resources {
		if err := validateName("resourceName", r.ResourceName); err != nil {
			return fmt.Errorf("report resource: %w", err)
		}
	}
	return nil
}
