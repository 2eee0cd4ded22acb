// Package flow implements the typed key/value dataflow bus primitives: the
// Value cell, its provisioning states, and provisioning capabilities (spec §3).
package flow

import (
	"encoding/json"
	"fmt"

	"github.com/relrun/relrun/internal/step"
)

// StateKind discriminates the two live ValueState variants. The legacy
// UserDefined variant named in spec §3 collapses into NeedsProvision in this
// implementation, matching the original's modern `plugin_api/src/flow/kv.rs`
// model rather than the older `Scope`-based one (see DESIGN.md Open Question 1).
type StateKind int

const (
	// Ready means the value is present.
	Ready StateKind = iota
	// NeedsProvision means the value must be supplied by another plugin or the environment.
	NeedsProvision
)

// ProvisionRequest describes how a NeedsProvision value is expected to be filled.
type ProvisionRequest struct {
	Key         string
	FromEnv     bool
	RequiredAt  step.Step
	HasRequired bool
}

// ValueState is a tagged union: Ready(data) or NeedsProvision(request).
type ValueState struct {
	Kind    StateKind
	Data    json.RawMessage
	Request ProvisionRequest
}

// Value is a cell on the dataflow bus: a key, whether user config may
// override it, and its current state.
type Value struct {
	Protected bool
	Key       string
	State     ValueState
}

// IsReady reports whether the value currently holds data.
func (v Value) IsReady() bool {
	return v.State.Kind == Ready
}

// AsValue returns the ready payload. Calling this on a non-ready value is a
// programming error and panics, matching the original's `as_value`
// contract ("requesting a non-ready value is a programming error", spec §3).
func (v Value) AsValue() json.RawMessage {
	if v.State.Kind != Ready {
		panic(fmt.Sprintf("flow: value for key %q was requested before being provisioned (request: %+v)", v.Key, v.State.Request))
	}
	return v.State.Data
}

// Builder constructs Value cells ergonomically (spec §9, item 9).
type Builder struct {
	protected  bool
	key        string
	hasValue   bool
	value      json.RawMessage
	fromEnv    bool
	requiredAt step.Step
	hasReqAt   bool
}

// NewBuilder starts building a Value cell for key.
func NewBuilder(key string) *Builder {
	return &Builder{key: key}
}

// Protected marks the value as not overridable by user config.
func (b *Builder) Protected() *Builder {
	b.protected = true
	return b
}

// Value sets the ready payload from an already-marshaled JSON value.
func (b *Builder) Value(raw json.RawMessage) *Builder {
	b.hasValue = true
	b.value = raw
	return b
}

// ValueAny marshals v and sets it as the ready payload.
func (b *Builder) ValueAny(v any) *Builder {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("flow: value for key %q could not be marshaled: %v", b.key, err))
	}
	return b.Value(raw)
}

// RequiredAt marks the provision request as required no later than step s.
func (b *Builder) RequiredAt(s step.Step) *Builder {
	b.requiredAt = s
	b.hasReqAt = true
	return b
}

// LoadFromEnv marks the provision request as resolved from the process environment.
func (b *Builder) LoadFromEnv() *Builder {
	b.fromEnv = true
	return b
}

// Build produces the Value cell.
func (b *Builder) Build() Value {
	if b.hasValue {
		return Value{
			Protected: b.protected,
			Key:       b.key,
			State:     ValueState{Kind: Ready, Data: b.value},
		}
	}
	return Value{
		Protected: b.protected,
		Key:       b.key,
		State: ValueState{
			Kind: NeedsProvision,
			Request: ProvisionRequest{
				Key:         b.key,
				FromEnv:     b.fromEnv,
				RequiredAt:  b.requiredAt,
				HasRequired: b.hasReqAt,
			},
		},
	}
}

// FromKey builds a Value that requires provision with no env binding or step bound.
func FromKey(key string) Value {
	return NewBuilder(key).Build()
}

// ProtectedKey builds a protected Value that requires provision.
func ProtectedKey(key string) Value {
	return NewBuilder(key).Protected().Build()
}

// WithValue builds a ready Value from an already-marshaled payload.
func WithValue(key string, raw json.RawMessage) Value {
	return NewBuilder(key).Value(raw).Build()
}

// WithValueAny builds a ready Value by marshaling v.
func WithValueAny(key string, v any) Value {
	return NewBuilder(key).ValueAny(v).Build()
}

// RequiredAtStep builds a Value that requires provision no later than s.
func RequiredAtStep(key string, s step.Step) Value {
	return NewBuilder(key).RequiredAt(s).Build()
}

// LoadFromEnv builds a Value resolved from the process environment.
func LoadFromEnv(key string) Value {
	return NewBuilder(key).LoadFromEnv().Build()
}

// AvailabilityKind discriminates the two Availability variants.
type AvailabilityKind int

const (
	// Always means the capability can be consumed at any step.
	Always AvailabilityKind = iota
	// AfterStepKind means the capability is available starting at a given step.
	AfterStepKind
)

// Availability describes when a ProvisionCapability can be consumed.
type Availability struct {
	Kind  AvailabilityKind
	After step.Step
}

// AlwaysAvailable is the Always availability value.
func AlwaysAvailable() Availability {
	return Availability{Kind: Always}
}

// AfterStep builds an AfterStep(s) availability value.
func AfterStep(s step.Step) Availability {
	return Availability{Kind: AfterStepKind, After: s}
}

// ProvisionCapability is a plugin's promise to supply Key from When onward.
type ProvisionCapability struct {
	Key  string
	When Availability
}
