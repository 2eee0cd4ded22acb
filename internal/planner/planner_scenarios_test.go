package planner

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/discovery"
	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/rtlog"
	"github.com/relrun/relrun/internal/step"
)

// scenarioPlugin is a minimal pluginapi.Plugin whose Methods/
// ProvisionCapabilities/GetConfig are fixed at construction, enough to drive
// the planner through discovery without a real builtin.
type scenarioPlugin struct {
	pluginapi.BasePlugin
	methods []step.Step
	caps    []flow.ProvisionCapability
}

func (p *scenarioPlugin) Methods() pluginapi.Response[[]step.Step] {
	return pluginapi.Ok(p.methods)
}

func (p *scenarioPlugin) ProvisionCapabilities() pluginapi.Response[[]flow.ProvisionCapability] {
	return pluginapi.Ok(p.caps)
}

func newScenarioPlugin(name string, cfg map[string]flow.Value, methods []step.Step, caps []flow.ProvisionCapability) pluginapi.RawPlugin {
	p := &scenarioPlugin{
		BasePlugin: pluginapi.BasePlugin{PluginName: name, Config: cfg},
		methods:    methods,
		caps:       caps,
	}
	return pluginapi.RawPlugin{Name: name, State: pluginapi.Started, Started: p}
}

func testLogger(t *testing.T) *rtlog.Logger {
	t.Helper()
	log, err := rtlog.New(rtlog.Options{Writer: os.Stderr, Level: "silent"})
	require.NoError(t, err)
	return log
}

func discoverAndEnableAll(t *testing.T, cfg *config.Config, raws []pluginapi.RawPlugin) *discovery.Capabilities {
	t.Helper()
	caps, err := discovery.Discover(cfg, raws)
	require.NoError(t, err)
	return caps
}

// discoverAllSteps builds a Discover-kind StepDefinition for every step a
// plugin implements, so the planner schedules every call without needing a
// hand-written releaserc.toml.
func discoverAllSteps(raws []pluginapi.RawPlugin) *config.Config {
	cfg := config.New()
	seen := map[step.Step]bool{}
	for _, r := range raws {
		methods, _ := r.Started.Methods().Resolve()
		for _, s := range methods {
			if !seen[s] {
				cfg.Steps[s] = config.StepDefinition{Kind: config.StepDefinitionDiscover}
				seen[s] = true
			}
		}
	}
	return cfg
}

// TestMinimalSequence: a single plugin implementing pre_flight with a fully
// resolved (empty) config produces exactly one Call, for pre_flight, bracketed
// by that step's hooks; every other one of the nine steps still gets its own
// (empty) hook-bracketed pass, since hook bracketing is unconditional per
// step regardless of whether any plugin is enabled for it (spec §8 S1; see
// DESIGN.md Open Question 5).
func TestMinimalSequence(t *testing.T) {
	raws := []pluginapi.RawPlugin{
		newScenarioPlugin("solo", map[string]flow.Value{}, []step.Step{step.PreFlight}, nil),
	}
	cfg := discoverAllSteps(raws)
	caps := discoverAndEnableAll(t, cfg, raws)

	seq, err := Plan(cfg, caps, raws, false, testLogger(t))
	require.NoError(t, err)

	var calls []Action
	for _, a := range seq {
		if a.Kind == ActionCall {
			calls = append(calls, a)
		}
	}
	require.Equal(t, []Action{call(0, step.PreFlight)}, calls)

	for _, s := range step.All() {
		require.Contains(t, seq, preStepHook(s))
		require.Contains(t, seq, postStepHook(s))
	}
}

// TestCrossStepProvisioning: a producer plugin provisions a key from
// get_last_release on (AfterStep(get_last_release)), and a consumer declared for
// derive_next_version needs it unresolved in its config; the planner must
// emit a Get/Set pair ahead of the consumer's call (spec §8 S2).
func TestCrossStepProvisioning(t *testing.T) {
	producer := newScenarioPlugin("producer", map[string]flow.Value{}, []step.Step{step.GetLastRelease},
		[]flow.ProvisionCapability{{Key: "tag_name", When: flow.AfterStep(step.GetLastRelease)}})
	consumer := newScenarioPlugin("consumer", map[string]flow.Value{"tag_name": flow.FromKey("tag_name")},
		[]step.Step{step.DeriveNextVersion}, nil)

	raws := []pluginapi.RawPlugin{producer, consumer}
	cfg := discoverAllSteps(raws)
	caps := discoverAndEnableAll(t, cfg, raws)

	seq, err := Plan(cfg, caps, raws, false, testLogger(t))
	require.NoError(t, err)

	require.Contains(t, seq, get(0, "tag_name"))
	require.Contains(t, seq, set(1, "tag_name", "tag_name"))
	require.Contains(t, seq, call(1, step.DeriveNextVersion))

	// the Get/Set pair for derive_next_version must precede the consumer's call;
	// the pair is re-emitted on every later step pass, so only the first
	// occurrence of each is the one that belongs to derive_next_version
	getIdx, setIdx, callIdx := -1, -1, -1
	for i, a := range seq {
		switch {
		case a.Kind == ActionGet && a.Key == "tag_name" && getIdx < 0:
			getIdx = i
		case a.Kind == ActionSet && a.DestKey == "tag_name" && setIdx < 0:
			setIdx = i
		case a.Kind == ActionCall && a.Plugin == 1 && a.Step == step.DeriveNextVersion:
			callIdx = i
		}
	}
	require.Less(t, getIdx, callIdx)
	require.Less(t, setIdx, callIdx)
}

// TestSameStepMisorderRequiresConfigEntry: a would-be producer is declared
// after its consumer for the same step, so the key can only be resolved if
// it's already on the bus (spec §8 S3).
func TestSameStepMisorderRequiresConfigEntry(t *testing.T) {
	consumer := newScenarioPlugin("consumer", map[string]flow.Value{"next_version": flow.FromKey("next_version")},
		[]step.Step{step.DeriveNextVersion}, nil)
	producer := newScenarioPlugin("producer", map[string]flow.Value{}, []step.Step{step.DeriveNextVersion},
		[]flow.ProvisionCapability{{Key: "next_version", When: flow.AfterStep(step.DeriveNextVersion)}})

	raws := []pluginapi.RawPlugin{consumer, producer}
	cfg := discoverAllSteps(raws)
	caps := discoverAndEnableAll(t, cfg, raws)

	seq, err := Plan(cfg, caps, raws, false, testLogger(t))
	require.NoError(t, err)

	var found bool
	for _, a := range seq {
		if a.Kind == ActionRequireConfigEntry && a.Plugin == 0 && a.Key == "next_version" {
			found = true
		}
	}
	require.True(t, found, "expected a require_config_entry action for the misordered consumer, got %v", seq)
}

// TestDryRunPrunesWetSteps: when dry-run is set, the planner must never
// schedule calls for wet steps (commit/publish/notify), even if a plugin
// declares it implements them (spec §8 S6).
func TestDryRunPrunesWetSteps(t *testing.T) {
	p := newScenarioPlugin("releaser", map[string]flow.Value{}, []step.Step{step.PreFlight, step.Commit, step.Publish, step.Notify}, nil)
	raws := []pluginapi.RawPlugin{p}
	cfg := discoverAllSteps(raws)
	caps := discoverAndEnableAll(t, cfg, raws)

	seq, err := Plan(cfg, caps, raws, true, testLogger(t))
	require.NoError(t, err)

	for _, a := range seq {
		if a.Kind == ActionCall {
			require.True(t, a.Step.IsDry(), "dry-run plan scheduled a call for wet step %s", a.Step)
		}
	}
	require.Contains(t, seq, call(0, step.PreFlight))
}

// TestApplyOverridesLiteral: a [cfg.<plugin>] override supplies a literal
// value for a key the plugin already declared unresolved, resolving it to a
// SetValue action rather than a cross-plugin Get/Set.
func TestApplyOverridesLiteral(t *testing.T) {
	p := newScenarioPlugin("releaser", map[string]flow.Value{"dry_run": flow.FromKey("dry_run")}, nil, nil)
	raws := []pluginapi.RawPlugin{p}
	cfg := discoverAllSteps(raws)

	vd, err := config.ParseValueDefinition(map[string]any{"dry_run": true})
	require.NoError(t, err)
	cfg.Cfg.Set("releaser", vd)

	caps := discoverAndEnableAll(t, cfg, raws)
	seq, err := Plan(cfg, caps, raws, false, testLogger(t))
	require.NoError(t, err)

	require.Contains(t, seq, setValue(0, "dry_run", json.RawMessage("true")))
}
