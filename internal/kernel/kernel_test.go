package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/databus"
	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/planner"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/relerr"
	"github.com/relrun/relrun/internal/rtlog"
	"github.com/relrun/relrun/internal/step"
)

// stubPlugin is a minimal pluginapi.Plugin for exercising the kernel's
// dispatch loop without a real builtin.
type stubPlugin struct {
	pluginapi.BasePlugin
	preFlightErr     error
	preFlightCalls   int
	preFlightWarning string
	getValueData     map[string]json.RawMessage
}

func (s *stubPlugin) PreFlight() pluginapi.Response[struct{}] {
	s.preFlightCalls++
	if s.preFlightErr != nil {
		return pluginapi.FromError[struct{}](s.preFlightErr)
	}
	resp := pluginapi.Ok(struct{}{})
	if s.preFlightWarning != "" {
		resp = resp.WithWarning(s.preFlightWarning)
	}
	return resp
}

func (s *stubPlugin) GetValue(key string) pluginapi.Response[json.RawMessage] {
	if raw, ok := s.getValueData[key]; ok {
		return pluginapi.Ok(raw)
	}
	return s.BasePlugin.GetValue(key)
}

// guardedStubPlugin exercises GuardedPlugin: Prepare acquires a guard that
// records whether the kernel released it.
type guardedStubPlugin struct {
	pluginapi.BasePlugin
	guard *stubGuard
}

func (s *guardedStubPlugin) Prepare() pluginapi.Response[struct{}] {
	s.guard = &stubGuard{}
	return pluginapi.Ok(struct{}{})
}

func (s *guardedStubPlugin) Guard() pluginapi.DryRunGuard {
	if s.guard == nil {
		return nil
	}
	return s.guard
}

type stubGuard struct {
	released bool
	err      error
}

func (g *stubGuard) Release() error {
	g.released = true
	return g.err
}

func newTestKernel(t *testing.T, sequence []planner.Action, plugins ...pluginapi.Plugin) *Kernel {
	t.Helper()
	raws := make([]pluginapi.RawPlugin, len(plugins))
	for i, p := range plugins {
		raws[i] = pluginapi.RawPlugin{Name: "plugin", State: pluginapi.Started, Started: p}
	}
	log, err := rtlog.New(rtlog.Options{Writer: os.Stderr, Level: "silent"})
	require.NoError(t, err)
	k, err := New(raws, databus.New(config.New()), sequence, nil, false, log)
	require.NoError(t, err)
	return k
}

func TestNewRejectsUnstartedPlugins(t *testing.T) {
	raws := []pluginapi.RawPlugin{{Name: "p", State: pluginapi.Resolved}}
	log, err := rtlog.New(rtlog.Options{Writer: os.Stderr, Level: "silent"})
	require.NoError(t, err)
	_, err = New(raws, databus.New(config.New()), nil, nil, false, log)
	require.Error(t, err)
}

func TestRunDispatchesCallAction(t *testing.T) {
	p := &stubPlugin{}
	seq := []planner.Action{{Kind: planner.ActionCall, Step: step.PreFlight, Plugin: 0}}
	k := newTestKernel(t, seq, p)

	require.NoError(t, k.Run(context.Background()))
	require.Equal(t, 1, p.preFlightCalls)
}

func TestRunPropagatesPluginError(t *testing.T) {
	p := &stubPlugin{preFlightErr: os.ErrPermission}
	seq := []planner.Action{{Kind: planner.ActionCall, Step: step.PreFlight, Plugin: 0}}
	k := newTestKernel(t, seq, p)

	err := k.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "permission")
}

func TestRunStopsEarlyOnErrEarlyExit(t *testing.T) {
	p := &stubPlugin{preFlightErr: relerr.ErrEarlyExit}
	seq := []planner.Action{
		{Kind: planner.ActionCall, Step: step.PreFlight, Plugin: 0},
		{Kind: planner.ActionCall, Step: step.GetLastRelease, Plugin: 0},
	}
	k := newTestKernel(t, seq, p)

	require.NoError(t, k.Run(context.Background()))
	require.Equal(t, 1, p.preFlightCalls)
}

func TestRunDispatchesGetAction(t *testing.T) {
	p := &stubPlugin{getValueData: map[string]json.RawMessage{"tag_name": json.RawMessage(`"v1.2.3"`)}}
	seq := []planner.Action{{Kind: planner.ActionGet, Plugin: 0, Key: "tag_name"}}
	k := newTestKernel(t, seq, p)

	require.NoError(t, k.Run(context.Background()))
	require.Equal(t, []json.RawMessage{json.RawMessage(`"v1.2.3"`)}, k.bus.GetGlobal("tag_name"))
}

func TestRunDispatchesSetValueAction(t *testing.T) {
	p := &stubPlugin{}
	seq := []planner.Action{{Kind: planner.ActionSetValue, Plugin: 0, DestKey: "dry_run", Value: json.RawMessage("true")}}
	k := newTestKernel(t, seq, p)

	require.NoError(t, k.Run(context.Background()))
	require.Equal(t, flow.WithValue("dry_run", json.RawMessage("true")), p.Config["dry_run"])
}

func TestRunRequireEnvValuePopulatesDestKey(t *testing.T) {
	t.Setenv("RELRUN_TEST_TOKEN", "secret")
	p := &stubPlugin{}
	seq := []planner.Action{{Kind: planner.ActionRequireEnvValue, Plugin: 0, DestKey: "token", SrcKey: "RELRUN_TEST_TOKEN"}}
	log, err := rtlog.New(rtlog.Options{Writer: os.Stderr, Level: "silent"})
	require.NoError(t, err)
	raws := []pluginapi.RawPlugin{{Name: "plugin", State: pluginapi.Started, Started: p}}
	k, err := New(raws, databus.New(config.New()), seq, nil, false, log)
	require.NoError(t, err)

	require.NoError(t, k.Run(context.Background()))
	require.Equal(t, json.RawMessage(`"secret"`), p.Config["token"].AsValue())
}

func TestRunRequireEnvValueMissingIsError(t *testing.T) {
	p := &stubPlugin{}
	seq := []planner.Action{{Kind: planner.ActionRequireEnvValue, Plugin: 0, DestKey: "token", SrcKey: "RELRUN_DEFINITELY_UNSET"}}
	k := newTestKernel(t, seq, p)

	err := k.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "env value undefined: RELRUN_DEFINITELY_UNSET")
}

func TestRunFiresProgressCallbackAroundEachAction(t *testing.T) {
	p := &stubPlugin{}
	seq := []planner.Action{{Kind: planner.ActionCall, Step: step.PreFlight, Plugin: 0}}
	k := newTestKernel(t, seq, p)

	var events []ProgressPhase
	k.OnProgress(func(index int, action planner.Action, phase ProgressPhase, err error) {
		require.Equal(t, 0, index)
		events = append(events, phase)
	})

	require.NoError(t, k.Run(context.Background()))
	require.Equal(t, []ProgressPhase{ProgressStarted, ProgressFinished}, events)
}

func TestSequenceReturnsPlannedActions(t *testing.T) {
	seq := []planner.Action{{Kind: planner.ActionCall, Step: step.PreFlight, Plugin: 0}}
	k := newTestKernel(t, seq, &stubPlugin{})
	require.Equal(t, seq, k.Sequence())
}

func TestRunRequireConfigEntryFailsWhenBusEmpty(t *testing.T) {
	p := &stubPlugin{}
	seq := []planner.Action{{Kind: planner.ActionRequireConfigEntry, Plugin: 0, Key: "next_version"}}
	k := newTestKernel(t, seq, p)

	err := k.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "next_version")
}

func TestRunLogsPluginResponseWarnings(t *testing.T) {
	var buf bytes.Buffer
	p := &stubPlugin{preFlightWarning: "worktree has uncommitted changes"}
	seq := []planner.Action{{Kind: planner.ActionCall, Step: step.PreFlight, Plugin: 0}}

	log, err := rtlog.New(rtlog.Options{Writer: &buf, Level: "info"})
	require.NoError(t, err)
	raws := []pluginapi.RawPlugin{{Name: "plugin", State: pluginapi.Started, Started: p}}
	k, err := New(raws, databus.New(config.New()), seq, nil, false, log)
	require.NoError(t, err)

	require.NoError(t, k.Run(context.Background()))
	require.Contains(t, buf.String(), "worktree has uncommitted changes")
}

func TestRunReleasesGuardedPluginOnSuccess(t *testing.T) {
	p := &guardedStubPlugin{}
	seq := []planner.Action{{Kind: planner.ActionCall, Step: step.Prepare, Plugin: 0}}
	k := newTestKernel(t, seq, p)

	require.NoError(t, k.Run(context.Background()))
	require.True(t, p.guard.released)
}

func TestRunReleasesGuardedPluginOnFailure(t *testing.T) {
	consumer := &stubPlugin{preFlightErr: os.ErrPermission}
	producer := &guardedStubPlugin{}
	seq := []planner.Action{
		{Kind: planner.ActionCall, Step: step.Prepare, Plugin: 1},
		{Kind: planner.ActionCall, Step: step.PreFlight, Plugin: 0},
	}
	k := newTestKernel(t, seq, consumer, producer)

	err := k.Run(context.Background())
	require.Error(t, err)
	require.True(t, producer.guard.released, "guard must be released even when Run returns an error")
}
