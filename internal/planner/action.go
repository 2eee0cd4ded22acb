// Package planner builds the ordered Action sequence the kernel executes:
// one pass per step, resolving each plugin's declared config dependencies
// against what other plugins provision, in declaration order (spec §4.5).
// Grounded on original_source/src/plugin_runtime/graph.rs's PluginSequence
// and StepSequenceBuilder.
package planner

import (
	"encoding/json"
	"fmt"

	"github.com/relrun/relrun/internal/step"
)

// ActionKind discriminates the eight Action variants (spec §4.5).
type ActionKind int

const (
	// ActionCall invokes a plugin's entry point for a step.
	ActionCall ActionKind = iota
	// ActionGet reads a key from a plugin into the data bus.
	ActionGet
	// ActionSet writes a bus value into a plugin's destination key.
	ActionSet
	// ActionSetValue writes a literal JSON value into a plugin's destination key.
	ActionSetValue
	// ActionRequireConfigEntry asserts a key must already be on the bus.
	ActionRequireConfigEntry
	// ActionRequireEnvValue reads an environment variable into a plugin's destination key.
	ActionRequireEnvValue
	// ActionPreStepHook fires the before-step hooks.
	ActionPreStepHook
	// ActionPostStepHook fires the after-step hooks.
	ActionPostStepHook
)

// Action is one unit of scheduled work (spec §4.5, GLOSSARY "Action").
type Action struct {
	Kind ActionKind
	// Plugin is the index into the declaration-ordered plugin slice. Unused
	// (zero) for the two hook marker kinds.
	Plugin int
	Step   step.Step

	// Key names the data-bus key for ActionGet and ActionRequireConfigEntry.
	Key string
	// DestKey/SrcKey name the plugin-local destination and bus source key
	// for ActionSet and ActionRequireEnvValue.
	DestKey string
	SrcKey  string
	// Value carries the literal payload for ActionSetValue.
	Value json.RawMessage
}

func call(plugin int, s step.Step) Action { return Action{Kind: ActionCall, Plugin: plugin, Step: s} }
func get(plugin int, key string) Action   { return Action{Kind: ActionGet, Plugin: plugin, Key: key} }
func set(plugin int, dest, src string) Action {
	return Action{Kind: ActionSet, Plugin: plugin, DestKey: dest, SrcKey: src}
}
func setValue(plugin int, dest string, v json.RawMessage) Action {
	return Action{Kind: ActionSetValue, Plugin: plugin, DestKey: dest, Value: v}
}
func requireConfigEntry(plugin int, key string) Action {
	return Action{Kind: ActionRequireConfigEntry, Plugin: plugin, Key: key}
}
func requireEnvValue(plugin int, dest, envKey string) Action {
	return Action{Kind: ActionRequireEnvValue, Plugin: plugin, DestKey: dest, SrcKey: envKey}
}
func preStepHook(s step.Step) Action  { return Action{Kind: ActionPreStepHook, Step: s} }
func postStepHook(s step.Step) Action { return Action{Kind: ActionPostStepHook, Step: s} }

// String renders a one-line human-readable description of the action, used
// by the plan command and the plan-viewer TUI.
func (a Action) String() string {
	switch a.Kind {
	case ActionCall:
		return fmt.Sprintf("call        step=%s plugin=#%d", a.Step, a.Plugin)
	case ActionGet:
		return fmt.Sprintf("get         plugin=#%d key=%s", a.Plugin, a.Key)
	case ActionSet:
		return fmt.Sprintf("set         plugin=#%d dest=%s src=%s", a.Plugin, a.DestKey, a.SrcKey)
	case ActionSetValue:
		return fmt.Sprintf("set_value   plugin=#%d dest=%s value=%s", a.Plugin, a.DestKey, string(a.Value))
	case ActionRequireConfigEntry:
		return fmt.Sprintf("require_cfg plugin=#%d key=%s", a.Plugin, a.Key)
	case ActionRequireEnvValue:
		return fmt.Sprintf("require_env plugin=#%d dest=%s env=%s", a.Plugin, a.DestKey, a.SrcKey)
	case ActionPreStepHook:
		return fmt.Sprintf("pre_hook    step=%s", a.Step)
	case ActionPostStepHook:
		return fmt.Sprintf("post_hook   step=%s", a.Step)
	default:
		return "unknown action"
	}
}
