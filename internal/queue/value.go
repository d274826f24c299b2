package queue

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value is the sum type used for every user-defined blob column: task
// metadata, results, retry policies, and checkpoint payloads. It marshals
// to a JSON text column and back, so callers never hand-roll map[string]any
// scanning at the Store boundary.
type Value struct {
	raw any
}

// NewValue wraps a Go value (string, float64/int, bool, []Value, map[string]Value,
// or nil) as a Value. It does not validate the shape; callers that build
// values programmatically are expected to pass one of the supported kinds.
func NewValue(v any) Value {
	return Value{raw: v}
}

// Null is the absence of a value, distinct from an empty string or zero number.
func Null() Value { return Value{raw: nil} }

// IsNull reports whether the value is the JSON null.
func (v Value) IsNull() bool { return v.raw == nil }

// Raw returns the underlying decoded value (string, float64, bool, []any, map[string]any, or nil).
func (v Value) Raw() any { return v.raw }

// String returns the value as a string, or "" with ok=false if it is not one.
func (v Value) String() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &v.raw)
}

// SQLValue returns the Value as a driver.Value for use as a query argument:
// it is stored as a JSON text column. Value itself does not implement
// driver.Valuer.
func (v Value) SQLValue() (driver.Value, error) {
	if v.raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(v.raw)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return string(b), nil
}

// ScanValue decodes a nullable TEXT column into a Value. SQLite may hand
// back either []byte or string depending on driver path, and NULL as nil.
func ScanValue(src any) (Value, error) {
	switch t := src.(type) {
	case nil:
		return Null(), nil
	case []byte:
		if len(t) == 0 {
			return Null(), nil
		}
		var v Value
		if err := json.Unmarshal(t, &v); err != nil {
			return Value{}, fmt.Errorf("scan value: %w", err)
		}
		return v, nil
	case string:
		if t == "" {
			return Null(), nil
		}
		var v Value
		if err := json.Unmarshal([]byte(t), &v); err != nil {
			return Value{}, fmt.Errorf("scan value: %w", err)
		}
		return v, nil
	default:
		return Value{}, fmt.Errorf("scan value: unsupported source type %T", src)
	}
}

// valueToColumn converts a Value to the string to bind as a query argument,
// returning nil for a null value so the column stores SQL NULL.
func valueToColumn(v Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	b, err := json.Marshal(v.raw)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return string(b), nil
}
