package models

import (
	"bytes"
	"encoding/json"
)

// Patch is a field in a partial update: absent, explicitly null, or set.
// When decoded from JSON, Present is true whenever the key appears, including as null.
type Patch[T any] struct {
	Present bool
	Value   *T
}

// Set returns a present patch holding v.
func Set[T any](v T) Patch[T] {
	return Patch[T]{Present: true, Value: &v}
}

// Null returns a present patch that clears the field.
func Null[T any]() Patch[T] {
	return Patch[T]{Present: true}
}

// PatchFromPtr returns a present patch that sets v, or clears when v is nil.
func PatchFromPtr[T any](v *T) Patch[T] {
	return Patch[T]{Present: true, Value: v}
}

// Apply returns the value after patching prior.
func (p Patch[T]) Apply(prior *T) *T {
	if !p.Present {
		return prior
	}
	return p.Value
}

func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		p.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.Value = &v
	return nil
}

func (p Patch[T]) MarshalJSON() ([]byte, error) {
	if p.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.Value)
}
