package resolver

import (
	"context"
	"fmt"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/rtlog"
)

// ResolveAll walks a Config's declared plugins in declaration order and
// resolves each into a RawPlugin in the Resolved state (spec §4.3). A
// failure on any one plugin aborts the whole run: partial plugin sets are
// never handed to discovery.
func ResolveAll(ctx context.Context, cfg *config.Config, log *rtlog.Logger) ([]pluginapi.RawPlugin, error) {
	names := cfg.Plugins.Keys()
	raws := make([]pluginapi.RawPlugin, 0, len(names))

	for _, name := range names {
		def, _ := cfg.Plugins.Get(name)
		unresolved, err := def.IntoFull()
		if err != nil {
			return nil, fmt.Errorf("resolver: plugin %q: %w", name, err)
		}

		raw := pluginapi.NewUnresolved(name, unresolved)

		instance, err := Resolve(name, unresolved)
		if err != nil {
			log.With("plugin", name).Error(ctx, "plugin resolution failed", "error", err)
			return nil, fmt.Errorf("resolver: plugin %q: %w", name, err)
		}

		raw.State = pluginapi.Resolved
		raw.Resolved = pluginapi.ResolvedPlugin{Instance: instance}
		log.With("plugin", name).Debug(ctx, "plugin resolved")
		raws = append(raws, raw)
	}

	return raws, nil
}

// StartAll transitions every Resolved RawPlugin to Started. Starting a
// plugin here means nothing more than handing back its already-constructed
// instance: the original's PluginStarter performs an actual handshake over
// a process boundary (core/src/runtime/plugin.rs), which this in-process
// kernel has no equivalent of (out of scope, spec §1). The stage is kept so
// logging and error-wrapping happen at the same lifecycle boundary the
// original names.
func StartAll(ctx context.Context, raws []pluginapi.RawPlugin, log *rtlog.Logger) ([]pluginapi.RawPlugin, error) {
	started := make([]pluginapi.RawPlugin, len(raws))
	for i, raw := range raws {
		if raw.State != pluginapi.Resolved {
			return nil, fmt.Errorf("resolver: plugin %q is not in the resolved state", raw.Name)
		}
		raw.State = pluginapi.Started
		raw.Started = raw.Resolved.Instance
		log.With("plugin", raw.Name).Debug(ctx, "plugin started")
		started[i] = raw
	}
	return started, nil
}
