// Package relerr defines the structured error kinds surfaced by config
// loading, plugin resolution, capability discovery, planning, and execution
// (spec §7). Each kind carries enough context to name the plugin, step, and
// key involved. ConfigError and ExecutionError also wrap an underlying cause
// and expose it via Unwrap; the other kinds carry a message only.
package relerr

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a problem found while loading or validating releaserc.toml.
type ConfigError struct {
	Path    string
	Message string
	Err     error
}

// NewConfigError constructs a ConfigError.
func NewConfigError(path, message string, err error) error {
	return &ConfigError{Path: path, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap exposes the underlying cause.
func (e *ConfigError) Unwrap() error { return e.Err }

// ResolutionError reports a plugin that could not be resolved to an implementation.
type ResolutionError struct {
	Plugins []string
	Message string
}

// NewResolutionError constructs a ResolutionError naming the offending plugins.
func NewResolutionError(message string, plugins ...string) error {
	return &ResolutionError{Plugins: plugins, Message: message}
}

func (e *ResolutionError) Error() string {
	if len(e.Plugins) == 0 {
		return fmt.Sprintf("resolution error: %s", e.Message)
	}
	return fmt.Sprintf("resolution error: %s: %s", e.Message, strings.Join(e.Plugins, ", "))
}

// CapabilityError reports a mismatch between a step definition and what a
// plugin actually implements (e.g. a plugin that doesn't implement a step
// it's named for), or a plugin whose capability probe failed. A singleton
// step declared with multiple plugins is reported as a ConfigError instead.
type CapabilityError struct {
	Step    string
	Plugin  string
	Message string
}

// NewCapabilityError constructs a CapabilityError.
func NewCapabilityError(step, plugin, message string) error {
	return &CapabilityError{Step: step, Plugin: plugin, Message: message}
}

func (e *CapabilityError) Error() string {
	switch {
	case e.Plugin != "" && e.Step != "":
		return fmt.Sprintf("capability error: step %s, plugin %s: %s", e.Step, e.Plugin, e.Message)
	case e.Step != "":
		return fmt.Sprintf("capability error: step %s: %s", e.Step, e.Message)
	default:
		return fmt.Sprintf("capability error: %s", e.Message)
	}
}

// PlanningError reports a scheduling failure surfaced at plan time, before
// any side effect runs (spec §7: "Planning diagnostics are emitted at
// plan-time").
type PlanningError struct {
	Step    string
	Plugin  string
	Key     string
	Message string
}

// NewPlanningError constructs a PlanningError.
func NewPlanningError(step, plugin, key, message string) error {
	return &PlanningError{Step: step, Plugin: plugin, Key: key, Message: message}
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning error: step %s, plugin %s, key %s: %s", e.Step, e.Plugin, e.Key, e.Message)
}

// ExecutionError reports a failure raised while walking the action sequence:
// a plugin-returned error, or data unavailable at consumption time.
type ExecutionError struct {
	Step    string
	Plugin  string
	Key     string
	Err     error
	Message string
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(step, plugin, key string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ExecutionError{Step: step, Plugin: plugin, Key: key, Err: err, Message: msg}
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	b.WriteString("execution error")
	if e.Plugin != "" {
		fmt.Fprintf(&b, " [%s]", e.Plugin)
	}
	if e.Step != "" {
		fmt.Fprintf(&b, " at step %s", e.Step)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " (key %s)", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *ExecutionError) Unwrap() error { return e.Err }

// ErrEarlyExit is the sentinel a plugin call returns to end the run
// successfully before the full sequence completes (spec §7, Control kind).
// It is not a user-facing failure: the kernel catches it, logs an
// informational message, and returns success.
var ErrEarlyExit = &earlyExitError{}

type earlyExitError struct{}

func (*earlyExitError) Error() string { return "kernel finished early" }

// IsEarlyExit reports whether err is (or wraps, or carries the message of)
// ErrEarlyExit. A plugin signals early exit by returning
// pluginapi.FromError(ErrEarlyExit) from a step method; pluginapi.Response's
// error channel is a plain string list (mirroring the original's
// serializable error protocol), so the sentinel's identity does not survive
// a Response round-trip intact. Falling back to a message-substring match is
// the pragmatic equivalent of that protocol's string-tagged error codes.
func IsEarlyExit(err error) bool {
	if errors.Is(err, ErrEarlyExit) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), ErrEarlyExit.Error())
}
