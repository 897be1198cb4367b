// SPDX-License-Identifier: MIT

package oadr

import (
	"errors"
	"fmt"
	"time"
)

// Event is a persisted time-ranged instruction from the VTN to VENs.
type Event struct {
	ID         Identifier   `json:"id"`
	CreatedAt  time.Time    `json:"createdDateTime"`
	ModifiedAt time.Time    `json:"modificationDateTime"`
	Content    EventContent `json:"content"`
}

// EventContent is the caller-supplied part of an event.
type EventContent struct {
	ProgramID          Identifier          `json:"programID"`
	EventName          *string             `json:"eventName,omitempty"`
	Priority           Priority            `json:"priority"`
	Targets            []TargetEntry       `json:"targets,omitempty"`
	ReportDescriptors  []ReportDescriptor  `json:"reportDescriptors,omitempty"`
	PayloadDescriptors []PayloadDescriptor `json:"payloadDescriptors,omitempty"`
	IntervalPeriod     *IntervalPeriod     `json:"intervalPeriod,omitempty"`
	Intervals          []EventInterval     `json:"intervals"`
}

// EventInterval carries concrete values over a sub-range of the event's
// time window. A nil IntervalPeriod inherits the event's, then the
// program's.
type EventInterval struct {
	ID             int32            `json:"id"`
	IntervalPeriod *IntervalPeriod  `json:"intervalPeriod,omitempty"`
	Payloads       []EventValuesMap `json:"payloads"`
}

// ReportDescriptor asks VENs for a particular telemetry stream.
type ReportDescriptor struct {
	PayloadType ValueType `json:"payloadType"`
	ReadingType *string   `json:"readingType,omitempty"`
	Units       *string   `json:"units,omitempty"`
	Aggregate   bool      `json:"aggregate"`
}

// NewEventContent constructs a minimal event content. Unlike the wire
// decoder, which tolerates empty interval lists, constructing from
// scratch requires at least one interval.
func NewEventContent(programID Identifier, intervals []EventInterval) (EventContent, error) {
	if len(intervals) == 0 {
		return EventContent{}, errors.New("an event requires at least one interval")
	}
	c := EventContent{
		ProgramID: programID,
		Priority:  UnspecifiedPriority(),
		Intervals: intervals,
	}
	return c, c.Validate()
}

// Validate enforces structural rules on an event content.
func (c *EventContent) Validate() error {
	if c.ProgramID == "" {
		return errors.New("event programID is required")
	}
	if c.EventName != nil {
		if err := validateName("eventName", *c.EventName); err != nil {
			return err
		}
	}
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("event target: %w", err)
		}
	}
	for _, iv := range c.Intervals {
		for _, p := range iv.Payloads {
			if err := p.Validate(); err != nil {
				return fmt.Errorf("interval %d payload: %w", iv.ID, err)
			}
		}
	}
	return nil
}
