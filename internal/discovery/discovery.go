// Package discovery probes each started plugin for the steps it implements
// and the keys it can provision, then validates and indexes that against
// the config's step definitions (spec §4.4). Grounded on
// original_source/core/src/runtime/discovery.rs (per-plugin discover) and
// src/plugin_runtime/graph.rs's build_steps_to_plugins_map (the
// Discover/Singleton/Shared validation and indexing rules).
package discovery

import (
	"fmt"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/relerr"
	"github.com/relrun/relrun/internal/step"
)

// Capabilities is the result of probing every plugin: their stable names
// (in declaration order — this order is the plugin ID space every later
// stage indexes into), their provision capabilities, and the per-step set
// of plugin indices allowed to run that step.
type Capabilities struct {
	Names     []string
	ProvCaps  [][]flow.ProvisionCapability
	StepIndex map[step.Step][]int
}

// Discover calls Methods() and ProvisionCapabilities() on every started
// plugin (in declaration order) and cross-checks the config's step
// definitions against what was actually discovered.
func Discover(cfg *config.Config, plugins []pluginapi.RawPlugin) (*Capabilities, error) {
	names := make([]string, len(plugins))
	provCaps := make([][]flow.ProvisionCapability, len(plugins))
	methodsByStep := make(map[step.Step][]string)

	for i, p := range plugins {
		if p.State != pluginapi.Started {
			return nil, fmt.Errorf("discovery: plugin %q has not been started", p.Name)
		}
		names[i] = p.Name

		methodsResp := p.Started.Methods()
		methods, err := methodsResp.Resolve()
		if err != nil {
			return nil, relerr.NewCapabilityError("", p.Name, err.Error())
		}
		for _, s := range methods {
			methodsByStep[s] = append(methodsByStep[s], p.Name)
		}

		capsResp := p.Started.ProvisionCapabilities()
		caps, err := capsResp.Resolve()
		if err != nil {
			return nil, relerr.NewCapabilityError("", p.Name, err.Error())
		}
		provCaps[i] = caps
	}

	stepIndex, err := buildStepIndex(cfg, names, methodsByStep)
	if err != nil {
		return nil, err
	}

	return &Capabilities{Names: names, ProvCaps: provCaps, StepIndex: stepIndex}, nil
}

// buildStepIndex resolves each declared StepDefinition into the set of
// plugin indices enabled for that step. The resulting index always lists
// plugins in declaration order (the index into `names`/`plugins`), never in
// the order a Shared list happens to name them: the original's
// build_steps_to_plugins_map filters the plugin array by membership, it
// never reorders by the config list (see DESIGN.md Open Question 3).
func buildStepIndex(cfg *config.Config, names []string, methodsByStep map[step.Step][]string) (map[step.Step][]int, error) {
	idx := make(map[step.Step][]int, len(cfg.Steps))

	for s, def := range cfg.Steps {
		implementors := methodsByStep[s]

		switch def.Kind {
		case config.StepDefinitionDiscover:
			idx[s] = matchingIDs(names, implementors)

		case config.StepDefinitionSingleton:
			if !containsName(implementors, def.Singleton) {
				return nil, relerr.NewCapabilityError(s.String(), def.Singleton, "plugin does not implement this step")
			}
			idx[s] = matchingIDs(names, []string{def.Singleton})

		case config.StepDefinitionShared:
			if len(def.Shared) == 0 {
				continue
			}
			for _, name := range def.Shared {
				if !containsName(implementors, name) {
					return nil, relerr.NewCapabilityError(s.String(), name, "plugin does not implement this step")
				}
			}
			idx[s] = matchingIDs(names, def.Shared)
		}
	}

	return idx, nil
}

// matchingIDs returns, in declaration order, the indices of every name in
// names that also appears in allowed.
func matchingIDs(names []string, allowed []string) []int {
	var ids []int
	for i, n := range names {
		if containsName(allowed, n) {
			ids = append(ids, i)
		}
	}
	return ids
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}
