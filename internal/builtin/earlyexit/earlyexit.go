// Package earlyexit implements a reference builtin plugin demonstrating the
// kernel's early-exit control flow, grounded on the original's
// src/builtin_plugins/early_exit.rs (which compares current_version against
// next_version during derive_next_version; this port compares the same
// pair during verify_release instead, per SPEC_FULL.md's builtin roster).
package earlyexit

import (
	"encoding/json"

	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/relerr"
	"github.com/relrun/relrun/internal/resolver"
	"github.com/relrun/relrun/internal/step"
)

// PackageName is the builtin registry key for this plugin.
const PackageName = "early_exit"

func init() {
	resolver.RegisterBuiltin(PackageName, New)
}

// Plugin ends the run during verify_release when current_version and
// next_version are identical: there is nothing to release.
type Plugin struct {
	pluginapi.BasePlugin
}

// New constructs the early-exit builtin plugin.
func New(name string) (pluginapi.Plugin, error) {
	p := &Plugin{}
	p.PluginName = name
	p.Config = map[string]flow.Value{
		flow.KeyCurrentVersion: flow.RequiredAtStep(flow.KeyCurrentVersion, step.VerifyRelease),
		flow.KeyNextVersion:    flow.NewBuilder(flow.KeyNextVersion).Protected().RequiredAt(step.VerifyRelease).Build(),
	}
	return p, nil
}

// Methods reports this plugin only implements verify_release.
func (p *Plugin) Methods() pluginapi.Response[[]step.Step] {
	return pluginapi.Ok([]step.Step{step.VerifyRelease})
}

// VerifyRelease returns relerr.ErrEarlyExit when no version bump is needed.
func (p *Plugin) VerifyRelease() pluginapi.Response[struct{}] {
	current, ok := p.Config[flow.KeyCurrentVersion]
	if !ok || !current.IsReady() {
		return pluginapi.FromError[struct{}](errMissing(flow.KeyCurrentVersion))
	}
	next, ok := p.Config[flow.KeyNextVersion]
	if !ok || !next.IsReady() {
		return pluginapi.FromError[struct{}](errMissing(flow.KeyNextVersion))
	}

	if jsonEqual(current.AsValue(), next.AsValue()) {
		return pluginapi.NewBuilder[struct{}]().
			Warning("current and next versions are the same, nothing to do").
			Error(relerr.ErrEarlyExit).
			Build()
	}
	return pluginapi.Ok(struct{}{})
}

func errMissing(key string) error {
	return missingKeyError{key: key}
}

type missingKeyError struct{ key string }

func (e missingKeyError) Error() string { return "early_exit: " + e.key + " was not provisioned" }

func jsonEqual(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return string(a) == string(b)
	}
	ja, _ := json.Marshal(va)
	jb, _ := json.Marshal(vb)
	return string(ja) == string(jb)
}
