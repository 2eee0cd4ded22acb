package planner

import (
	"context"
	"sort"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/discovery"
	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/rtlog"
	"github.com/relrun/relrun/internal/step"
)

// unresolvedEntry pairs a plugin's destination key with the bus key its
// provision request names.
type unresolvedEntry struct {
	destKey string
	srcKey  string
}

// Plan builds the full ordered Action sequence for a run: collect every
// plugin's current config and provision capabilities, apply [cfg]
// overrides, then build one step's worth of actions at a time, in the
// fixed total step order, skipping wet steps when isDryRun (spec §4.5).
func Plan(cfg *config.Config, caps *discovery.Capabilities, plugins []pluginapi.RawPlugin, isDryRun bool, log *rtlog.Logger) ([]Action, error) {
	configs, err := collectConfigs(plugins)
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg, caps.Names, configs, log)

	var seq []Action
	for _, s := range step.All() {
		if isDryRun && s.IsWet() {
			continue
		}
		stepSeq := buildStep(s, caps.Names, configs, caps.ProvCaps, caps.StepIndex, log)
		seq = append(seq, stepSeq...)
	}
	return seq, nil
}

func collectConfigs(plugins []pluginapi.RawPlugin) ([]map[string]flow.Value, error) {
	configs := make([]map[string]flow.Value, len(plugins))
	for i, p := range plugins {
		cfg, err := p.Started.GetConfig().Resolve()
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			cfg = map[string]flow.Value{}
		}
		configs[i] = cfg
	}
	return configs, nil
}

// applyOverrides mirrors apply_releaserc_overrides: a top-level [cfg] entry
// whose name matches a plugin is treated as a table of per-key overrides
// for that plugin's initial config. Overrides only apply to keys the
// plugin already declared and did not mark Protected; unknown and protected
// keys are logged and skipped, matching
// the original's warn-and-continue behavior (this is config personalization,
// not a hard validation rule, so it never fails the run).
//
// A "from:" override is inserted under the *referenced* key, not the
// destination key being overridden: this reproduces the original's
// `cfg.insert(key.clone(), ...)` call verbatim (graph.rs
// apply_releaserc_overrides), which keys off the reference's own key
// rather than the override's destination key.
func applyOverrides(cfg *config.Config, names []string, configs []map[string]flow.Value, log *rtlog.Logger) {
	nameIndex := make(map[string]int, len(names))
	for i, n := range names {
		nameIndex[n] = i
	}

	for _, name := range cfg.Cfg.Keys() {
		id, isPlugin := nameIndex[name]
		if !isPlugin {
			continue
		}
		vd, _ := cfg.Cfg.Get(name)

		if vd.Kind == config.ValueDefinitionFrom {
			log.With("plugin", name).Warn(context.Background(), "'from' statements are not supported for top-level plugin configuration tables; entry ignored")
			continue
		}

		overrides, err := config.ParseValueDefinitionMap(vd.Literal)
		if err != nil {
			log.With("plugin", name).Warn(context.Background(), "failed to parse configuration table; entry ignored", "error", err)
			continue
		}

		pluginCfg := configs[id]
		for destKey, ov := range overrides {
			current, exists := pluginCfg[destKey]
			if !exists {
				log.With("plugin", name, "key", destKey).Warn(context.Background(), "configuration key is not supported by this plugin; entry ignored")
				continue
			}
			if current.Protected {
				log.With("plugin", name, "key", destKey).Warn(context.Background(), "configuration key is protected by this plugin; entry ignored")
				continue
			}
			switch ov.Kind {
			case config.ValueDefinitionLiteral:
				pluginCfg[destKey] = flow.WithValue(destKey, ov.Literal)
			case config.ValueDefinitionFrom:
				b := flow.NewBuilder(ov.From.Key)
				if ov.From.HasRequired {
					b = b.RequiredAt(ov.From.RequiredAt)
				}
				if ov.From.FromEnv {
					b = b.LoadFromEnv()
				}
				pluginCfg[ov.From.Key] = b.Build()
			}
		}
	}
}

// buildStep resolves one step's worth of Actions for every plugin's
// declared config, then sequences the per-plugin Call actions (spec §4.5).
func buildStep(
	s step.Step,
	names []string,
	configs []map[string]flow.Value,
	caps [][]flow.ProvisionCapability,
	stepIndex map[step.Step][]int,
	log *rtlog.Logger,
) []Action {
	isEnabled := func(id int) bool {
		for _, eid := range stepIndex[s] {
			if eid == id {
				return true
			}
		}
		return false
	}

	var seq []Action
	unresolved := make([][]unresolvedEntry, len(names))

	for id, cfg := range configs {
		keys := sortedKeys(cfg)
		for _, destKey := range keys {
			value := cfg[destKey]
			if value.IsReady() {
				seq = append(seq, setValue(id, destKey, value.AsValue()))
				continue
			}
			req := value.State.Request
			if req.FromEnv {
				seq = append(seq, requireEnvValue(id, destKey, req.Key))
				continue
			}
			if req.HasRequired && req.RequiredAt > s {
				continue
			}
			unresolved[id] = append(unresolved[id], unresolvedEntry{destKey: destKey, srcKey: req.Key})
		}
	}

	availableAlways := map[string][]int{}
	availableSince := map[string][]sourceAt{}
	availableSameStep := map[string][]int{}
	availableInFuture := map[string][]sourceAt{}

	for sourceID, capList := range caps {
		for _, c := range capList {
			switch c.When.Kind {
			case flow.Always:
				availableAlways[c.Key] = append(availableAlways[c.Key], sourceID)
			case flow.AfterStepKind:
				switch {
				case c.When.After < s:
					availableSince[c.Key] = append(availableSince[c.Key], sourceAt{sourceID, c.When.After})
				case c.When.After == s:
					availableSameStep[c.Key] = append(availableSameStep[c.Key], sourceID)
				default:
					availableInFuture[c.Key] = append(availableInFuture[c.Key], sourceAt{sourceID, c.When.After})
				}
			}
		}
	}

	unresolved = resolveAlreadyAvailable(s, &seq, unresolved, availableAlways, availableSince, names, isEnabled, stepIndex, log)
	unresolved = resolveShouldBeInConfig(s, &seq, unresolved, availableSameStep, availableInFuture, names, log)
	resolveSameStepAndBuildCallSequence(s, &seq, unresolved, names, caps, isEnabled, availableSameStep, log)

	return seq
}

type sourceAt struct {
	id    int
	after step.Step
}

func sortedKeys(m map[string]flow.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resolveAlreadyAvailable(
	s step.Step,
	seq *[]Action,
	unresolved [][]unresolvedEntry,
	availableAlways map[string][]int,
	availableSince map[string][]sourceAt,
	names []string,
	isEnabled func(int) bool,
	stepIndex map[step.Step][]int,
	log *rtlog.Logger,
) [][]unresolvedEntry {
	next := make([][]unresolvedEntry, len(unresolved))
	for destID, entries := range unresolved {
		var remaining []unresolvedEntry
		for _, e := range entries {
			resolved := false

			if plugins, ok := availableAlways[e.srcKey]; ok {
				for _, sourceID := range plugins {
					if sourceID != destID {
						*seq = append(*seq, get(sourceID, e.srcKey))
					}
				}
				resolved = true
			}

			if plugins, ok := availableSince[e.srcKey]; ok {
				for _, p := range plugins {
					if isEnabledForStep(p.id, p.after, stepIndex) {
						*seq = append(*seq, get(p.id, e.srcKey))
						resolved = true
					} else {
						log.With("plugin", names[destID], "key", e.srcKey, "source", names[p.id]).
							Warn(context.Background(), "matching source plugin can supply this key, but is not enabled for the step it was discovered at")
					}
				}
			}

			if resolved {
				*seq = append(*seq, set(destID, e.destKey, e.srcKey))
			} else {
				remaining = append(remaining, e)
			}
		}
		next[destID] = remaining
	}
	return next
}

func resolveShouldBeInConfig(
	s step.Step,
	seq *[]Action,
	unresolved [][]unresolvedEntry,
	availableSameStep map[string][]int,
	availableInFuture map[string][]sourceAt,
	names []string,
	log *rtlog.Logger,
) [][]unresolvedEntry {
	next := make([][]unresolvedEntry, len(unresolved))
	for destID, entries := range unresolved {
		var remaining []unresolvedEntry
		for _, e := range entries {
			if _, ok := availableSameStep[e.srcKey]; ok {
				remaining = append(remaining, e)
				continue
			}
			if plugins, ok := availableInFuture[e.srcKey]; ok {
				for _, p := range plugins {
					log.With("plugin", names[destID], "key", e.srcKey, "source", names[p.id], "step", s, "available_after", p.after).
						Warn(context.Background(), "matching source plugin can only supply this key in a future step; cfg entry must be defined")
				}
				*seq = prepend(*seq, requireConfigEntry(destID, e.srcKey))
				continue
			}
			*seq = prepend(*seq, requireConfigEntry(destID, e.srcKey))
		}
		next[destID] = remaining
	}
	return next
}

// resolveSameStepAndBuildCallSequence is the final pass: if every plugin's
// config fully resolved, emit one hook-bracketed run of Call actions in
// declaration order. Otherwise interleave Get/Set actions for same-step
// producer/consumer pairs, in the exact order plugins are declared — that
// order IS the contract: a consumer must be declared after its same-step
// producer, or the key must be defined in config (spec §4.5, "same-step
// misorder requires config entry").
func resolveSameStepAndBuildCallSequence(
	s step.Step,
	seq *[]Action,
	unresolved [][]unresolvedEntry,
	names []string,
	caps [][]flow.ProvisionCapability,
	isEnabled func(int) bool,
	availableSameStep map[string][]int,
	log *rtlog.Logger,
) {
	allEmpty := true
	for _, entries := range unresolved {
		if len(entries) > 0 {
			allEmpty = false
			break
		}
	}

	if allEmpty {
		*seq = append(*seq, preStepHook(s))
		for id := range names {
			if isEnabled(id) {
				*seq = append(*seq, call(id, s))
			}
		}
		*seq = append(*seq, postStepHook(s))
		return
	}

	becameAvailable := map[string][]int{}
	*seq = append(*seq, preStepHook(s))

	for destID, entries := range unresolved {
		for _, c := range caps[destID] {
			available := c.When.Kind == flow.Always ||
				(c.When.Kind == flow.AfterStepKind && c.When.After <= s && isEnabled(destID))
			if available {
				becameAvailable[c.Key] = append(becameAvailable[c.Key], destID)
			}
		}

		if !isEnabled(destID) {
			continue
		}

		for _, e := range entries {
			if plugins, ok := becameAvailable[e.srcKey]; ok {
				for _, sourceID := range plugins {
					if sourceID != destID {
						*seq = append(*seq, get(sourceID, e.srcKey))
					}
				}
				*seq = append(*seq, set(destID, e.destKey, e.srcKey))
			} else {
				for _, sourceID := range availableSameStep[e.srcKey] {
					log.With("plugin", names[destID], "key", e.srcKey, "source", names[sourceID], "step", s).
						Error(context.Background(), "source plugin supplies this key at the current step but runs after the consumer; reorder plugins or define the key manually")
				}
				*seq = prepend(*seq, requireConfigEntry(destID, e.destKey))
			}
		}

		*seq = append(*seq, call(destID, s))
	}

	*seq = append(*seq, postStepHook(s))
}

func isEnabledForStep(id int, s step.Step, stepIndex map[step.Step][]int) bool {
	for _, eid := range stepIndex[s] {
		if eid == id {
			return true
		}
	}
	return false
}

func prepend(seq []Action, a Action) []Action {
	out := make([]Action, 0, len(seq)+1)
	out = append(out, a)
	out = append(out, seq...)
	return out
}
