package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/step"
)

// Load reads and parses a releaserc.toml document from path, returning the
// validated Config tree.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(string(data))
}

// Parse parses releaserc.toml document text into a validated Config tree.
// Exported separately from Load so tests can exercise it without a
// filesystem round-trip.
func Parse(text string) (*Config, error) {
	var doc map[string]any
	meta, err := toml.Decode(text, &doc)
	if err != nil {
		return nil, fmt.Errorf("config: parsing document: %w", err)
	}

	cfg := New()

	if settingsRaw, ok := doc["settings"]; ok {
		if err := decodeSettings(settingsRaw, &cfg.Settings); err != nil {
			return nil, err
		}
	}

	if err := loadPlugins(doc, meta, cfg); err != nil {
		return nil, err
	}
	if err := loadSteps(doc, cfg); err != nil {
		return nil, err
	}
	if err := loadCfg(doc, meta, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadPlugins(doc map[string]any, meta toml.MetaData, cfg *Config) error {
	pluginsRaw, _ := doc["plugins"].(map[string]any)
	for _, name := range pluginDeclarationOrder(meta) {
		def, err := parsePluginDefinition(pluginsRaw[name])
		if err != nil {
			return fmt.Errorf("config: plugins.%s: %w", name, err)
		}
		cfg.Plugins.Set(name, def)
	}
	return nil
}

// pluginDeclarationOrder walks meta.Keys(), which lists every key
// encountered in document order, and extracts the first-seen order of the
// top-level names directly under [plugins]. Plain TOML key/value decoding
// into a map loses this order; meta.Keys() is the reason BurntSushi/toml was
// chosen over a plain-map-returning TOML library.
func pluginDeclarationOrder(meta toml.MetaData) []string {
	seen := make(map[string]bool)
	var order []string
	for _, key := range meta.Keys() {
		if len(key) < 2 || key[0] != "plugins" {
			continue
		}
		name := key[1]
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	return order
}

func parsePluginDefinition(raw any) (PluginDefinition, error) {
	switch v := raw.(type) {
	case string:
		return PluginDefinition{Kind: PluginDefinitionShort, Short: v}, nil
	case map[string]any:
		locationRaw, _ := v["location"].(string)
		var kind pluginapi.UnresolvedLocationKind
		switch locationRaw {
		case "builtin":
			kind = pluginapi.Builtin
		case "cargo":
			kind = pluginapi.Cargo
		default:
			return PluginDefinition{}, fmt.Errorf("unknown plugin location %q", locationRaw)
		}
		pkg, _ := v["package"].(string)
		version, _ := v["version"].(string)
		return PluginDefinition{
			Kind: PluginDefinitionFull,
			Full: pluginapi.UnresolvedPlugin{Kind: kind, Package: pkg, Version: version},
		}, nil
	default:
		return PluginDefinition{}, fmt.Errorf("plugin definition must be a string or a table, got %T", raw)
	}
}

func loadSteps(doc map[string]any, cfg *Config) error {
	stepsRaw, _ := doc["steps"].(map[string]any)
	for name, raw := range stepsRaw {
		s, err := step.Parse(name)
		if err != nil {
			return fmt.Errorf("config: steps.%s: %w", name, err)
		}
		def, err := parseStepDefinition(raw)
		if err != nil {
			return fmt.Errorf("config: steps.%s: %w", name, err)
		}
		cfg.Steps[s] = def
	}
	return nil
}

func parseStepDefinition(raw any) (StepDefinition, error) {
	switch v := raw.(type) {
	case string:
		if v == "discover" {
			return StepDefinition{Kind: StepDefinitionDiscover}, nil
		}
		return StepDefinition{Kind: StepDefinitionSingleton, Singleton: v}, nil
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return StepDefinition{}, fmt.Errorf("shared step plugin list must contain only strings, got %T", item)
			}
			names = append(names, name)
		}
		return StepDefinition{Kind: StepDefinitionShared, Shared: names}, nil
	default:
		return StepDefinition{}, fmt.Errorf(`step definition must be "discover", a plugin name, or an array of plugin names, got %T`, raw)
	}
}

func loadCfg(doc map[string]any, meta toml.MetaData, cfg *Config) error {
	cfgRaw, _ := doc["cfg"].(map[string]any)
	for _, name := range cfgTopLevelOrder(meta) {
		vd, err := ParseValueDefinition(cfgRaw[name])
		if err != nil {
			return fmt.Errorf("config: cfg.%s: %w", name, err)
		}
		cfg.Cfg.Set(name, vd)
	}
	return nil
}

func cfgTopLevelOrder(meta toml.MetaData) []string {
	seen := make(map[string]bool)
	var order []string
	for _, key := range meta.Keys() {
		if len(key) < 2 || key[0] != "cfg" {
			continue
		}
		name := key[1]
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	return order
}

func decodeSettings(raw any, out *Settings) error {
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("config: settings must be a table, got %T", raw)
	}
	if v, ok := m["log_level"].(string); ok {
		out.LogLevel = v
	}
	if v, ok := m["verbosity"].(int64); ok {
		out.Verbosity = int(v)
	}
	return nil
}

// applyDefaults seeds the cfg table with project_root/dry_run entries when a
// releaserc.toml document doesn't declare them itself; the kernel relies on
// both being present on the bus before the first step runs.
func applyDefaults(cfg *Config) {
	if !cfg.Cfg.Contains(flow.KeyProjectRoot) {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		lit, _ := ParseValueDefinition(wd)
		cfg.Cfg.Set(flow.KeyProjectRoot, lit)
	}
	if !cfg.Cfg.Contains(flow.KeyDryRun) {
		lit, _ := ParseValueDefinition(false)
		cfg.Cfg.Set(flow.KeyDryRun, lit)
	}
}
