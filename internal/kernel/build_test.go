package kernel

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/planner"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/resolver"
	"github.com/relrun/relrun/internal/rtlog"
	"github.com/relrun/relrun/internal/step"
)

func TestBuildWiresResolveDiscoverPlanIntoRunnableKernel(t *testing.T) {
	resolver.ResetRegistry()
	t.Cleanup(resolver.ResetRegistry)

	called := false
	resolver.RegisterBuiltin("demo", func(name string) (pluginapi.Plugin, error) {
		return &demoPlugin{}, nil
	})
	_ = called

	cfg := config.New()
	cfg.Plugins.Set("demo", config.PluginDefinition{Kind: config.PluginDefinitionShort, Short: "builtin"})
	cfg.Steps[step.PreFlight] = config.StepDefinition{Kind: config.StepDefinitionDiscover}

	log, err := rtlog.New(rtlog.Options{Writer: os.Stderr, Level: "silent"})
	require.NoError(t, err)

	k, err := Build(context.Background(), cfg, false, nil, nil, log)
	require.NoError(t, err)
	require.NoError(t, k.Run(context.Background()))
}

func TestBuildSchedulesInjectedPluginOnlyAtItsTargetStep(t *testing.T) {
	resolver.ResetRegistry()
	t.Cleanup(resolver.ResetRegistry)

	resolver.RegisterBuiltin("demo", func(name string) (pluginapi.Plugin, error) {
		return &demoPlugin{}, nil
	})

	cfg := config.New()
	cfg.Plugins.Set("demo", config.PluginDefinition{Kind: config.PluginDefinitionShort, Short: "builtin"})
	cfg.Steps[step.PreFlight] = config.StepDefinition{Kind: config.StepDefinitionDiscover}
	cfg.Steps[step.GetLastRelease] = config.StepDefinition{Kind: config.StepDefinitionDiscover}

	log, err := rtlog.New(rtlog.Options{Writer: os.Stderr, Level: "silent"})
	require.NoError(t, err)

	injectedPlugin := &injectedStubPlugin{}
	injected := []Injection{
		{Name: "injected", Plugin: injectedPlugin, Target: InjectAfterStep(step.PreFlight)},
	}

	k, err := Build(context.Background(), cfg, false, nil, injected, log)
	require.NoError(t, err)
	require.NoError(t, k.Run(context.Background()))

	require.Equal(t, 1, injectedPlugin.preFlightCalls)
	require.Equal(t, 0, injectedPlugin.getLastReleaseCalls)

	var sawCallForInjected, sawCallForDemo bool
	for _, a := range k.Sequence() {
		if a.Kind != planner.ActionCall {
			continue
		}
		switch k.names[a.Plugin] {
		case "injected":
			require.Equal(t, step.PreFlight, a.Step, "injected plugin must only be scheduled at its target step")
			sawCallForInjected = true
		case "demo":
			sawCallForDemo = true
		}
	}
	require.True(t, sawCallForInjected)
	require.True(t, sawCallForDemo)
}

type demoPlugin struct {
	pluginapi.BasePlugin
}

func (d *demoPlugin) Methods() pluginapi.Response[[]step.Step] {
	return pluginapi.Ok([]step.Step{step.PreFlight})
}

func (d *demoPlugin) PreFlight() pluginapi.Response[struct{}] {
	return pluginapi.Ok(struct{}{})
}

// injectedStubPlugin implements both pre_flight and get_last_release so the
// test can assert injection constrains it to only the former, its declared
// target, even though it is technically capable of the latter too.
type injectedStubPlugin struct {
	pluginapi.BasePlugin
	preFlightCalls      int
	getLastReleaseCalls int
}

func (p *injectedStubPlugin) Methods() pluginapi.Response[[]step.Step] {
	return pluginapi.Ok([]step.Step{step.PreFlight, step.GetLastRelease})
}

func (p *injectedStubPlugin) PreFlight() pluginapi.Response[struct{}] {
	p.preFlightCalls++
	return pluginapi.Ok(struct{}{})
}

func (p *injectedStubPlugin) GetLastRelease() pluginapi.Response[struct{}] {
	p.getLastReleaseCalls++
	return pluginapi.Ok(struct{}{})
}
