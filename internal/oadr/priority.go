// SPDX-License-Identifier: MIT

package oadr

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Priority orders events: 0 is the highest priority, larger values are
// lower, and an unspecified priority is strictly the lowest of all. The
// inverted comparison lives entirely in Wins so callers never reason
// about the numeric direction.
type Priority struct {
	value     uint32
	specified bool
}

// NewPriority returns a specified priority.
func NewPriority(v uint32) Priority {
	return Priority{value: v, specified: true}
}

// UnspecifiedPriority returns the lowest possible priority.
func UnspecifiedPriority() Priority {
	return Priority{}
}

// Value returns the numeric priority and whether one was specified.
func (p Priority) Value() (uint32, bool) {
	return p.value, p.specified
}

// Wins reports whether p is strictly higher priority than q.
func (p Priority) Wins(q Priority) bool {
	if !p.specified {
		return false
	}
	if !q.specified {
		return true
	}
	return p.value < q.value
}

// Equal reports whether two priorities compare equal.
func (p Priority) Equal(q Priority) bool {
	if p.specified != q.specified {
		return false
	}
	return !p.specified || p.value == q.value
}

func (p Priority) String() string {
	if !p.specified {
		return "unspecified"
	}
	return strconv.FormatUint(uint64(p.value), 10)
}

// MarshalJSON encodes an unspecified priority as null.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.specified {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON accepts null or any non-negative integer.
func (p *Priority) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = UnspecifiedPriority()
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("priority must be null or a non-negative integer: %w", err)
	}
	if v < 0 || v > int64(^uint32(0)) {
		return fmt.Errorf("priority %d out of range", v)
	}
	*p = NewPriority(uint32(v))
	return nil
}
