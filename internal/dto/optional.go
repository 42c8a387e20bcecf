package dto

import (
	"bytes"
	"encoding/json"
	"time"
)

var jsonNull = []byte("null")

// OptionalString distinguishes an absent field from an explicit null in a PATCH body.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records that the field was present.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Cleared reports an explicit null or empty string.
func (o OptionalString) Cleared() bool {
	return o.Set && (o.Value == nil || *o.Value == "")
}

// OptionalTime distinguishes an absent timestamp from an explicit null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON records that the field was present.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		o.Value = nil
		return nil
	}
	var v time.Time
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	v = v.UTC()
	o.Value = &v
	return nil
}
