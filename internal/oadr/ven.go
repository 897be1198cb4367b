// SPDX-License-Identifier: MIT

package oadr

import (
	"fmt"
	"time"
)

// Ven is a persisted Virtual End Node.
type Ven struct {
	ID         Identifier `json:"id"`
	CreatedAt  time.Time  `json:"createdDateTime"`
	ModifiedAt time.Time  `json:"modificationDateTime"`
	Content    VenContent `json:"content"`
	// Resources are the resources owned by this VEN, filled on read.
	Resources []Resource `json:"resources,omitempty"`
}

// VenContent is the caller-supplied part of a VEN.
type VenContent struct {
	VenName    string           `json:"venName"`
	Attributes []EventValuesMap `json:"attributes,omitempty"`
	Targets    []TargetEntry    `json:"targets,omitempty"`
}

// Validate enforces structural rules on a VEN content.
func (c *VenContent) Validate() error {
	if err := validateName("venName", c.VenName); err != nil {
		return err
	}
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("ven target: %w", err)
		}
	}
	return nil
}
