// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import "errors"

var (
	// ErrNotFound is returned when a path or name does not resolve to
	// a capability.
	ErrNotFound = errors.New("capability not found")

	// ErrParameterType is returned when an invocation's parameter does
	// not match the capability's declared parameter type.
	ErrParameterType = errors.New("parameter does not match capability parameter type")

	// ErrStateless is returned by ChangeState on a capability that has
	// no state.
	ErrStateless = errors.New("capability has no state")

	// ErrStateType is returned by ChangeState when the new state is
	// not the same type as the current one.
	ErrStateType = errors.New("state does not match capability state type")
)

// ParameterType declares what an invocation must carry. The letters
// follow the single-character type codes applications already use in
// their action descriptions.
type ParameterType string

const (
	NoParameter ParameterType = ""
	Boolean     ParameterType = "b"
	String      ParameterType = "s"
	Int64       ParameterType = "x"
	Uint32      ParameterType = "u"
	Double      ParameterType = "d"
	Variant     ParameterType = "v"
)

// Valid reports whether p is a known parameter type.
func (p ParameterType) Valid() bool {
	switch p {
	case NoParameter, Boolean, String, Int64, Uint32, Double, Variant:
		return true
	}
	return false
}

// Accepts reports whether parameter is acceptable for p. Integer types
// accept any Go integer kind because socket decoding produces uint64
// for non-negative values and int64 for negative ones.
func (p ParameterType) Accepts(parameter any) bool {
	switch p {
	case NoParameter:
		return parameter == nil
	case Variant:
		return parameter != nil
	case Boolean:
		_, ok := parameter.(bool)
		return ok
	case String:
		_, ok := parameter.(string)
		return ok
	case Double:
		switch parameter.(type) {
		case float64, float32:
			return true
		}
		return false
	case Int64:
		value, ok := integerValue(parameter)
		return ok && value.fitsInt64()
	case Uint32:
		value, ok := integerValue(parameter)
		return ok && !value.negative && value.magnitude <= 1<<32-1
	}
	return false
}

type integer struct {
	negative  bool
	magnitude uint64
}

func (i integer) fitsInt64() bool {
	if i.negative {
		return i.magnitude <= 1<<63
	}
	return i.magnitude <= 1<<63-1
}

func integerValue(parameter any) (integer, bool) {
	var signed int64
	switch value := parameter.(type) {
	case uint64:
		return integer{magnitude: value}, true
	case uint32:
		return integer{magnitude: uint64(value)}, true
	case uint:
		return integer{magnitude: uint64(value)}, true
	case int64:
		signed = value
	case int32:
		signed = int64(value)
	case int:
		signed = int64(value)
	default:
		return integer{}, false
	}
	if signed < 0 {
		return integer{negative: true, magnitude: uint64(-(signed + 1)) + 1}, true
	}
	return integer{magnitude: uint64(signed)}, true
}

// Handler runs when a capability is invoked. name is the capability's
// local name; parameter has already been checked against the declared
// type.
type Handler func(name string, parameter any)

// Capability is one invocable command.
type Capability struct {
	name          string
	parameterType ParameterType
	stateful      bool
	state         any
	handler       Handler
}

// New returns a stateless capability. A nil handler makes invocation a
// no-op.
func New(name string, parameterType ParameterType, handler Handler) *Capability {
	return &Capability{
		name:          name,
		parameterType: parameterType,
		handler:       handler,
	}
}

// NewStateful returns a capability carrying observable state.
func NewStateful(name string, parameterType ParameterType, state any, handler Handler) *Capability {
	return &Capability{
		name:          name,
		parameterType: parameterType,
		stateful:      true,
		state:         state,
		handler:       handler,
	}
}

// Name returns the capability's local name.
func (c *Capability) Name() string { return c.name }

// Info describes a capability for listing and presentation.
type Info struct {
	Name          string        `json:"name"`
	ParameterType ParameterType `json:"parameter_type,omitempty"`
	Stateful      bool          `json:"stateful,omitempty"`
	State         any           `json:"state,omitempty"`
}

func (c *Capability) info(name string) Info {
	return Info{
		Name:          name,
		ParameterType: c.parameterType,
		Stateful:      c.stateful,
		State:         c.state,
	}
}
