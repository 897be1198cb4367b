// SPDX-License-Identifier: MIT

package oadr

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueType tags the payload entries of an event interval. The named
// constants cover the standard OpenADR 3.0 set; any other string is a
// private type and passes through length-validated.
type ValueType string

const (
	ValueTypeSimple                       ValueType = "SIMPLE"
	ValueTypePrice                        ValueType = "PRICE"
	ValueTypeChargeStateSetpoint          ValueType = "CHARGE_STATE_SETPOINT"
	ValueTypeDispatchSetpoint             ValueType = "DISPATCH_SETPOINT"
	ValueTypeDispatchSetpointRelative     ValueType = "DISPATCH_SETPOINT_RELATIVE"
	ValueTypeControlSetpoint              ValueType = "CONTROL_SETPOINT"
	ValueTypeExportPrice                  ValueType = "EXPORT_PRICE"
	ValueTypeGHG                          ValueType = "GHG"
	ValueTypeCurve                        ValueType = "CURVE"
	ValueTypeOLS                          ValueType = "OLS"
	ValueTypeImportCapacitySubscription   ValueType = "IMPORT_CAPACITY_SUBSCRIPTION"
	ValueTypeImportCapacityReservation    ValueType = "IMPORT_CAPACITY_RESERVATION"
	ValueTypeImportCapacityReservationFee ValueType = "IMPORT_CAPACITY_RESERVATION_FEE"
	ValueTypeImportCapacityAvailable      ValueType = "IMPORT_CAPACITY_AVAILABLE"
	ValueTypeImportCapacityAvailablePrice ValueType = "IMPORT_CAPACITY_AVAILABLE_PRICE"
	ValueTypeImportCapacityLimit          ValueType = "IMPORT_CAPACITY_LIMIT"
)

// Validate bounds the length of private value types.
func (t ValueType) Validate() error {
	if len(t) < 1 || len(t) > 128 {
		return fmt.Errorf("value type must be between 1 and 128 characters, got %d", len(t))
	}
	return nil
}

// Point is a two-dimensional payload value.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type valueKind uint8

const (
	kindInteger valueKind = iota
	kindNumber
	kindBoolean
	kindPoint
	kindString
)

// Value is one element of a heterogeneous payload list: an integer,
// number, boolean, point or string.
type Value struct {
	kind valueKind
	i    int64
	f    float64
	b    bool
	p    Point
	s    string
}

// IntegerValue wraps an integer payload value.
func IntegerValue(v int64) Value { return Value{kind: kindInteger, i: v} }

// NumberValue wraps a floating-point payload value.
func NumberValue(v float64) Value { return Value{kind: kindNumber, f: v} }

// BooleanValue wraps a boolean payload value.
func BooleanValue(v bool) Value { return Value{kind: kindBoolean, b: v} }

// PointValue wraps a point payload value.
func PointValue(x, y float64) Value { return Value{kind: kindPoint, p: Point{X: x, Y: y}} }

// StringValue wraps a string payload value.
func StringValue(v string) Value { return Value{kind: kindString, s: v} }

// Integer returns the integer payload, if this value is one.
func (v Value) Integer() (int64, bool) { return v.i, v.kind == kindInteger }

// Number returns the floating-point payload, if this value is one.
func (v Value) Number() (float64, bool) { return v.f, v.kind == kindNumber }

// Boolean returns the boolean payload, if this value is one.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == kindBoolean }

// Pt returns the point payload, if this value is one.
func (v Value) Pt() (Point, bool) { return v.p, v.kind == kindPoint }

// Str returns the string payload, if this value is one.
func (v Value) Str() (string, bool) { return v.s, v.kind == kindString }

// Numeric returns the value as a float64 when it is an integer or a
// number; the limits extractor relies on this.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case kindInteger:
		return float64(v.i), true
	case kindNumber:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case kindInteger:
		return strconv.FormatInt(v.i, 10)
	case kindNumber:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case kindBoolean:
		return strconv.FormatBool(v.b)
	case kindPoint:
		return fmt.Sprintf("(%g,%g)", v.p.X, v.p.Y)
	default:
		return v.s
	}
}

// MarshalJSON encodes the wrapped value directly.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindInteger:
		return json.Marshal(v.i)
	case kindNumber:
		return json.Marshal(v.f)
	case kindBoolean:
		return json.Marshal(v.b)
	case kindPoint:
		return json.Marshal(v.p)
	default:
		return json.Marshal(v.s)
	}
}

// UnmarshalJSON sniffs the JSON form: integers are distinguished from
// numbers by the absence of a fraction or exponent.
func (v *Value) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("empty payload value")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case '{':
		var p Point
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*v = Value{kind: kindPoint, p: p}
		return nil
	case 't', 'f':
		var bv bool
		if err := json.Unmarshal(b, &bv); err != nil {
			return err
		}
		*v = BooleanValue(bv)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unsupported payload value %s", b)
	}
	if i, err := n.Int64(); err == nil && !hasFraction(string(n)) {
		*v = IntegerValue(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	*v = NumberValue(f)
	return nil
}

func hasFraction(s string) bool {
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return true
		}
	}
	return false
}

// EventValuesMap pairs a value type with its heterogeneous value list.
type EventValuesMap struct {
	Type   ValueType `json:"type"`
	Values []Value   `json:"values"`
}

// Validate checks the value type bounds.
func (m EventValuesMap) Validate() error {
	return m.Type.Validate()
}
