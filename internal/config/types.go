// Package config loads releaserc.toml into the in-memory configuration tree
// described in spec §3/§6. TOML deserialization is treated as an external
// collaborator: this package uses BurntSushi/toml purely to get at
// declaration order and a generic value tree, then builds the typed,
// order-preserving Config model itself.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/relrun/relrun/internal/dsl"
	"github.com/relrun/relrun/internal/orderedmap"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/step"
)

// Config is the full in-memory releaserc.toml document (spec §3).
type Config struct {
	// Plugins maps plugin name -> PluginDefinition, in declaration order.
	Plugins *orderedmap.Map[PluginDefinition]
	// Steps maps each declared step -> StepDefinition. Declaration order of
	// this table itself is not significant (the planner always iterates
	// steps in the fixed total order). The plugin lists inside Shared
	// definitions are plain slices taken straight from TOML arrays; discovery
	// uses them only to decide which plugins take part in a step, and those
	// plugins always run in [plugins] declaration order.
	Steps map[step.Step]StepDefinition
	// Cfg holds every top-level [cfg] entry, in declaration order. A plugin
	// override sub-table (cfg.<plugin_name> = {...}) is still just one
	// ValueDefinitionLiteral entry here, holding a JSON object; the
	// planner's pre-processing stage re-parses its sub-keys.
	Cfg *orderedmap.Map[ValueDefinition]
	// Settings holds ambient run settings outside the core plugin/step/cfg
	// model (log level, verbosity). Not part of the dataflow model; carried
	// for the CLI and logging setup.
	Settings Settings
}

// Settings are ambient run options validated with go-playground/validator.
type Settings struct {
	LogLevel  string `toml:"log_level" validate:"omitempty,oneof=trace debug info warn error silent"`
	Verbosity int    `toml:"verbosity" validate:"omitempty,min=0,max=3"`
}

// New returns an empty Config with its maps initialized.
func New() *Config {
	return &Config{
		Plugins: orderedmap.New[PluginDefinition](),
		Steps:   make(map[step.Step]StepDefinition),
		Cfg:     orderedmap.New[ValueDefinition](),
	}
}

// PluginDefinitionKind discriminates the two PluginDefinition variants.
type PluginDefinitionKind int

const (
	// PluginDefinitionFull carries a fully-qualified UnresolvedPlugin.
	PluginDefinitionFull PluginDefinitionKind = iota
	// PluginDefinitionShort carries a short alias such as "builtin".
	PluginDefinitionShort
)

// PluginDefinition is either a fully-qualified plugin location or a short
// alias that expands to one (spec §3).
type PluginDefinition struct {
	Kind  PluginDefinitionKind
	Full  pluginapi.UnresolvedPlugin
	Short string
}

// IntoFull expands a PluginDefinition into an UnresolvedPlugin, resolving
// short aliases.
func (d PluginDefinition) IntoFull() (pluginapi.UnresolvedPlugin, error) {
	switch d.Kind {
	case PluginDefinitionFull:
		return d.Full, nil
	case PluginDefinitionShort:
		switch d.Short {
		case "builtin":
			return pluginapi.UnresolvedPlugin{Kind: pluginapi.Builtin}, nil
		default:
			return pluginapi.UnresolvedPlugin{}, fmt.Errorf("config: unknown short plugin alias %q", d.Short)
		}
	default:
		return pluginapi.UnresolvedPlugin{}, fmt.Errorf("config: invalid plugin definition")
	}
}

// StepDefinitionKind discriminates the three StepDefinition variants.
type StepDefinitionKind int

const (
	// StepDefinitionDiscover means "use every plugin implementing this step, in plugin declaration order".
	StepDefinitionDiscover StepDefinitionKind = iota
	// StepDefinitionSingleton names exactly one plugin.
	StepDefinitionSingleton
	// StepDefinitionShared names a list of plugins; they run in plugin
	// declaration order, not in the order the list names them.
	StepDefinitionShared
)

// StepDefinition configures which plugin(s) handle a step (spec §3).
type StepDefinition struct {
	Kind      StepDefinitionKind
	Singleton string
	Shared    []string
}

// ValueDefinitionKind discriminates the two ValueDefinition variants.
type ValueDefinitionKind int

const (
	// ValueDefinitionLiteral carries a literal JSON payload.
	ValueDefinitionLiteral ValueDefinitionKind = iota
	// ValueDefinitionFrom carries a parsed "from:" dataflow reference.
	ValueDefinitionFrom
)

// ValueDefinition is a single [cfg] entry: either a literal value or a
// dataflow reference parsed by the DSL (spec §3, §6).
type ValueDefinition struct {
	Kind    ValueDefinitionKind
	Literal json.RawMessage
	From    dsl.Ref
}

// ParseValueDefinition interprets a TOML-decoded generic value as a
// ValueDefinition: a "from:"-prefixed string is parsed by the DSL; anything
// else (including nested tables and arrays) becomes a literal JSON payload.
func ParseValueDefinition(raw any) (ValueDefinition, error) {
	if s, ok := raw.(string); ok && dsl.IsReference(s) {
		ref, err := dsl.Parse(s)
		if err != nil {
			return ValueDefinition{}, err
		}
		return ValueDefinition{Kind: ValueDefinitionFrom, From: ref}, nil
	}

	data, err := json.Marshal(normalizeTOMLValue(raw))
	if err != nil {
		return ValueDefinition{}, fmt.Errorf("config: could not encode value: %w", err)
	}
	return ValueDefinition{Kind: ValueDefinitionLiteral, Literal: data}, nil
}

// ParseValueDefinitionMap interprets a literal JSON object (typically the
// payload of a cfg.<plugin_name> override table) as a map of per-key
// ValueDefinitions.
func ParseValueDefinitionMap(raw json.RawMessage) (map[string]ValueDefinition, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("config: override table is not an object: %w", err)
	}
	out := make(map[string]ValueDefinition, len(generic))
	for k, v := range generic {
		vd, err := ParseValueDefinition(v)
		if err != nil {
			return nil, fmt.Errorf("config: entry %q: %w", k, err)
		}
		out[k] = vd
	}
	return out, nil
}

// normalizeTOMLValue recursively converts BurntSushi's decoded value tree
// (map[string]interface{}, []interface{}, int64, float64, string, bool,
// time.Time) into something encoding/json marshals predictably. Only
// map/slice nodes need walking; scalars already marshal correctly.
func normalizeTOMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeTOMLValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeTOMLValue(vv)
		}
		return out
	default:
		return v
	}
}
