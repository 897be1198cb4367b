// SPDX-License-Identifier: MIT

package oadr

import (
	"fmt"
	"time"
)

// Resource is a controllable asset owned by a VEN. (VenID, ID) is the
// retrieval key.
type Resource struct {
	ID         Identifier      `json:"id"`
	VenID      Identifier      `json:"venID"`
	CreatedAt  time.Time       `json:"createdDateTime"`
	ModifiedAt time.Time       `json:"modificationDateTime"`
	Content    ResourceContent `json:"content"`
}

// ResourceContent is the caller-supplied part of a resource.
type ResourceContent struct {
	ResourceName string           `json:"resourceName"`
	Attributes   []EventValuesMap `json:"attributes,omitempty"`
	Targets      []TargetEntry    `json:"targets,omitempty"`
}

// Validate enforces structural rules on a resource content.
func (c *ResourceContent) Validate() error {
	if err := validateName("resourceName", c.ResourceName); err != nil {
		return err
	}
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("resource target: %w", err)
		}
	}
	return nil
}
