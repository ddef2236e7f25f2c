package model

import "encoding/json"

// OptionalFloat is a float64 that may be absent.
// It keeps "no value" distinguishable from a true zero, e.g. the mean
// accuracy of an empty bin versus a bin whose predictions were all wrong.
// The zero value is absent.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// Some returns a present OptionalFloat holding v.
func Some(v float64) OptionalFloat {
	return OptionalFloat{Value: v, Valid: true}
}

// None returns an absent OptionalFloat.
func None() OptionalFloat {
	return OptionalFloat{}
}

// Get returns the value and whether it is present.
func (o OptionalFloat) Get() (float64, bool) {
	return o.Value, o.Valid
}

// Ptr returns a pointer to a copy of the value, or nil when absent.
func (o OptionalFloat) Ptr() *float64 {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// FromPtr converts a nullable pointer into an OptionalFloat.
func FromPtr(p *float64) OptionalFloat {
	if p == nil {
		return None()
	}
	return Some(*p)
}

// String formats the value, or "-" when absent.
func (o OptionalFloat) String() string {
	if !o.Valid {
		return "-"
	}
	return formatFloat(o.Value)
}

// MarshalJSON encodes the value, or null when absent.
func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Ptr())
}

// UnmarshalJSON decodes a number or null.
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	var p *float64
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = FromPtr(p)
	return nil
}
