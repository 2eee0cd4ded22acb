// Package envtoken implements a reference builtin plugin with a single
// config entry resolved from the process environment, exercising the
// kernel's RequireEnvValue action (spec §4.5, §4.8).
package envtoken

import (
	"encoding/json"
	"errors"

	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/resolver"
	"github.com/relrun/relrun/internal/step"
)

// PackageName is the builtin registry key for this plugin.
const PackageName = "env_token"

func init() {
	resolver.RegisterBuiltin(PackageName, New)
}

// Plugin has a single unprotected, env-sourced config entry named token,
// read from the GH_TOKEN environment variable and surfaced for any
// downstream plugin (e.g. a publish-step plugin) to consume off the bus.
type Plugin struct {
	pluginapi.BasePlugin
}

// New constructs the env-token builtin plugin.
func New(name string) (pluginapi.Plugin, error) {
	p := &Plugin{}
	p.PluginName = name
	p.Config = map[string]flow.Value{
		"token": flow.LoadFromEnv(flow.KeyGitHubToken),
	}
	return p, nil
}

// Methods reports no step participation: this plugin exists purely to
// provision the token key onto the bus.
func (p *Plugin) Methods() pluginapi.Response[[]step.Step] {
	return pluginapi.Ok[[]step.Step](nil)
}

// ProvisionCapabilities advertises token as always available once set.
func (p *Plugin) ProvisionCapabilities() pluginapi.Response[[]flow.ProvisionCapability] {
	return pluginapi.Ok([]flow.ProvisionCapability{
		{Key: "token", When: flow.AlwaysAvailable()},
	})
}

// GetValue serves token once the kernel has resolved it from the environment.
func (p *Plugin) GetValue(key string) pluginapi.Response[json.RawMessage] {
	if key != "token" {
		return p.BasePlugin.GetValue(key)
	}
	v, ok := p.Config["token"]
	if !ok || !v.IsReady() {
		return pluginapi.FromError[json.RawMessage](errors.New("env_token: token was not provisioned"))
	}
	return pluginapi.Ok(v.AsValue())
}
