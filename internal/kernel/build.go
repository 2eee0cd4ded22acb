package kernel

import (
	"context"
	"fmt"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/databus"
	"github.com/relrun/relrun/internal/discovery"
	"github.com/relrun/relrun/internal/planner"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/resolver"
	"github.com/relrun/relrun/internal/rtlog"
	"github.com/relrun/relrun/internal/step"
)

// InjectionKind discriminates the two ways an injected plugin can name its
// target step (spec §4.7, "Plugin injection").
type InjectionKind int

const (
	// InjectBefore names its target via InjectBeforeStep.
	InjectBefore InjectionKind = iota
	// InjectAfter names its target via InjectAfterStep.
	InjectAfter
)

// InjectionTarget names the single step an injected plugin participates
// in. Unlike a Hook's HookTarget, it never means "every step": the planner
// treats the named step as the sole step the injected plugin takes part in
// (spec §4.7), regardless of whether it was built with InjectBeforeStep or
// InjectAfterStep.
type InjectionTarget struct {
	Kind InjectionKind
	Step step.Step
}

// InjectBeforeStep builds a target reading as "run this plugin as part of
// the work that precedes s".
func InjectBeforeStep(s step.Step) InjectionTarget { return InjectionTarget{Kind: InjectBefore, Step: s} }

// InjectAfterStep builds a target reading as "run this plugin as part of
// the work that follows s".
func InjectAfterStep(s step.Step) InjectionTarget { return InjectionTarget{Kind: InjectAfter, Step: s} }

// Injection pairs a ready-to-run plugin instance with the step it should be
// scheduled for, for builders that need to graft in a plugin the config
// file never declared (spec §2 item 8, §4.7: "Supports injection of
// additional plugins before/after a given step").
type Injection struct {
	Name   string
	Plugin pluginapi.Plugin
	Target InjectionTarget
}

// Build runs the full startup pipeline named in spec §4.3-4.5 — resolve,
// start, discover, plan, seed the data bus — and returns a Kernel ready for
// Run. hooks may be nil; a fresh empty registry is used in that case.
// injected plugins are prepended to the plugin list ahead of every
// config-declared plugin, taking ids 0..len(injected)-1, and are
// constrained to the single step each names as its target (spec §4.7).
func Build(ctx context.Context, cfg *config.Config, isDryRun bool, hooks *Hooks, injected []Injection, log *rtlog.Logger) (*Kernel, error) {
	raws, err := resolver.ResolveAll(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	started, err := resolver.StartAll(ctx, raws, log)
	if err != nil {
		return nil, err
	}

	started = prependInjected(injected, started)

	caps, err := discovery.Discover(cfg, started)
	if err != nil {
		return nil, err
	}

	if err := forceInjectedStepIndex(injected, caps); err != nil {
		return nil, err
	}

	sequence, err := planner.Plan(cfg, caps, started, isDryRun, log)
	if err != nil {
		return nil, err
	}

	bus := databus.New(cfg)

	return New(started, bus, sequence, hooks, isDryRun, log)
}

// prependInjected puts every injected plugin ahead of started, already in
// the Started state: an injected plugin is handed over ready to run, with
// no resolve/start phase of its own (spec §4.7).
func prependInjected(injected []Injection, started []pluginapi.RawPlugin) []pluginapi.RawPlugin {
	if len(injected) == 0 {
		return started
	}
	out := make([]pluginapi.RawPlugin, 0, len(injected)+len(started))
	for _, inj := range injected {
		out = append(out, pluginapi.RawPlugin{Name: inj.Name, State: pluginapi.Started, Started: inj.Plugin})
	}
	out = append(out, started...)
	return out
}

// forceInjectedStepIndex grafts each injected plugin's id into its target
// step's plugin set, and strips it out of every other one. A
// StepDefinitionDiscover step enables any plugin that implements its
// method, so an injected plugin capable of more than one step could
// otherwise be scheduled beyond the step it was injected for; injection
// overrides discovery's normal rule so the declared target is the sole
// step the plugin takes part in (spec §4.7).
func forceInjectedStepIndex(injected []Injection, caps *discovery.Capabilities) error {
	if len(injected) == 0 {
		return nil
	}
	for s, ids := range caps.StepIndex {
		caps.StepIndex[s] = removeBelow(ids, len(injected))
	}
	for id, inj := range injected {
		if !inj.Target.Step.Valid() {
			return fmt.Errorf("kernel: injected plugin %q targets an invalid step", inj.Name)
		}
		caps.StepIndex[inj.Target.Step] = insertSorted(caps.StepIndex[inj.Target.Step], id)
	}
	return nil
}

// removeBelow drops every id less than limit from ids, preserving order.
func removeBelow(ids []int, limit int) []int {
	out := ids[:0:0]
	for _, id := range ids {
		if id >= limit {
			out = append(out, id)
		}
	}
	return out
}

// insertSorted inserts id into ids, keeping it in ascending order to match
// buildStepIndex's own output (discovery/discovery.go, matchingIDs).
func insertSorted(ids []int, id int) []int {
	pos := len(ids)
	for i, existing := range ids {
		if existing == id {
			return ids
		}
		if existing > id {
			pos = i
			break
		}
	}
	out := make([]int, 0, len(ids)+1)
	out = append(out, ids[:pos]...)
	out = append(out, id)
	out = append(out, ids[pos:]...)
	return out
}
