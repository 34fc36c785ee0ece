package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string, number, or boolean into its text form.
// The upstream API is inconsistent about quoting codes and names.
type FlexString struct {
	Value string
	Valid bool
}

// NewFlexString returns a valid FlexString holding s.
func NewFlexString(s string) FlexString {
	return FlexString{Value: s, Valid: true}
}

// String returns the text form, or "" when the value was null or absent.
func (f FlexString) String() string {
	return f.Value
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = FlexString{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode string: %w", err)
		}
		*f = NewFlexString(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decode bool: %w", err)
		}
		*f = NewFlexString(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*f = NewFlexString(n.String())
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// FlexNumber keeps the literal text of a JSON number so it can be rendered
// exactly as the source sent it ("5" stays "5", "4.5" stays "4.5").
type FlexNumber struct {
	Literal string
	Valid   bool
}

// NewFlexNumber returns a valid FlexNumber with the given literal.
func NewFlexNumber(literal string) FlexNumber {
	return FlexNumber{Literal: literal, Valid: true}
}

// String returns the literal, or "" when absent.
func (n FlexNumber) String() string {
	return n.Literal
}

// Float64 parses the literal. ok is false when the value is absent or not numeric.
func (n FlexNumber) Float64() (float64, bool) {
	if !n.Valid {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(n.Literal), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Equal compares numerically when both sides parse, textually otherwise.
func (n FlexNumber) Equal(other FlexNumber) bool {
	if n.Valid != other.Valid {
		return false
	}
	a, errA := strconv.ParseFloat(n.Literal, 64)
	b, errB := strconv.ParseFloat(other.Literal, 64)
	if errA == nil && errB == nil {
		return a == b
	}
	return n.Literal == other.Literal
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = FlexNumber{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode numeric string: %w", err)
		}
		*n = NewFlexNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected number, got %s", data)
	}
	*n = NewFlexNumber(num.String())
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(n.Literal, 64); err == nil {
		return []byte(n.Literal), nil
	}
	return json.Marshal(n.Literal)
}
