// Package pluginapi defines the contract every plugin satisfies and the
// uniform response envelope plugins use to report data, warnings, and
// errors back to the kernel (spec §4.2).
package pluginapi

import (
	"errors"
	"strings"
)

// Response is the uniform shape every plugin operation returns: zero or
// more warnings plus either data or a list of error messages.
type Response[T any] struct {
	Warnings []string
	data     T
	errs     []string
}

// Ok builds a successful Response carrying v.
func Ok[T any](v T) Response[T] {
	return Response[T]{data: v}
}

// Failed builds a failed Response carrying one or more error messages.
func Failed[T any](errs ...string) Response[T] {
	return Response[T]{errs: errs}
}

// FromError builds a failed Response from a Go error.
func FromError[T any](err error) Response[T] {
	return Failed[T](err.Error())
}

// NotImplemented builds the default "method not implemented" failure
// returned by every per-step entry point unless a plugin overrides it
// (spec §4.2).
func NotImplemented[T any]() Response[T] {
	return FromError[T](errors.New("method not implemented"))
}

// WithWarning appends a warning and returns the response for chaining.
func (r Response[T]) WithWarning(w string) Response[T] {
	r.Warnings = append(append([]string(nil), r.Warnings...), w)
	return r
}

// IsError reports whether the response carries error messages.
func (r Response[T]) IsError() bool {
	return len(r.errs) > 0
}

// Resolve returns the data on success, or a joined error on failure. It does
// not consult or clear Warnings — callers should log Response.Warnings
// themselves regardless of outcome, mirroring the original's
// `into_result`, which logs warnings unconditionally before inspecting the body.
func (r Response[T]) Resolve() (T, error) {
	var zero T
	if r.IsError() {
		msg := strings.Join(r.errs, "\n\t")
		if msg == "" {
			msg = "<empty error message>"
		}
		return zero, errors.New(msg)
	}
	return r.data, nil
}

// Builder assembles a Response from zero or more warnings/errors plus data.
type Builder[T any] struct {
	warnings []string
	errs     []string
	data     T
	hasData  bool
}

// NewBuilder starts building a Response.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

// Warning appends a warning message.
func (b *Builder[T]) Warning(w string) *Builder[T] {
	b.warnings = append(b.warnings, w)
	return b
}

// Error appends an error message.
func (b *Builder[T]) Error(err error) *Builder[T] {
	b.errs = append(b.errs, err.Error())
	return b
}

// Data sets the success payload.
func (b *Builder[T]) Data(v T) *Builder[T] {
	b.data = v
	b.hasData = true
	return b
}

// Build assembles the final Response.
func (b *Builder[T]) Build() Response[T] {
	if len(b.errs) > 0 {
		return Response[T]{Warnings: b.warnings, errs: b.errs}
	}
	return Response[T]{Warnings: b.warnings, data: b.data}
}
