// SPDX-License-Identifier: MIT

package agent

import (
	"fmt"

	"github.com/gridlink/openadr3/internal/oadr"
)

// Limits is the control snapshot handed to the downstream energy
// controller.
type Limits struct {
	TotalPowerW float64 `json:"total_power_w"`
}

// ExtractImportCapacity scans a payload list for an
// IMPORT_CAPACITY_LIMIT entry. A well-formed entry carries exactly one
// numeric value; anything else under that label is a programmer error
// on the authoring side and fatal in this consumer. Payloads without
// the label yield nil.
func ExtractImportCapacity(payloads []oadr.EventValuesMap) *Limits {
	for _, p := range payloads {
		if p.Type != oadr.ValueTypeImportCapacityLimit {
			continue
		}
		if len(p.Values) != 1 {
			panic(fmt.Sprintf("IMPORT_CAPACITY_LIMIT carries %d values, want exactly 1", len(p.Values)))
		}
		w, ok := p.Values[0].Numeric()
		if !ok {
			panic(fmt.Sprintf("IMPORT_CAPACITY_LIMIT value %s is not numeric", p.Values[0]))
		}
		return &Limits{TotalPowerW: w}
	}
	return nil
}
