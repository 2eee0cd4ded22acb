// Package kernel executes a planned Action sequence step by step against a
// fixed plugin set and data bus (spec §4.7). Deliberately single-threaded:
// the original's equivalent is also sequential (it has no concurrency of
// its own to begin with), but the teacher's own engine.Execute runs DAG
// levels across goroutines with a sync.WaitGroup — this kernel does not
// adopt that, since the Action sequence is itself a strict total order with
// same-step data dependencies threaded through shared plugin state, which a
// goroutine pool would race on (see SPEC_FULL.md §5, Concurrency).
package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/relrun/relrun/internal/databus"
	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/planner"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/relerr"
	"github.com/relrun/relrun/internal/rtlog"
	"github.com/relrun/relrun/internal/step"
)

// Kernel owns the fixed plugin set, the data bus, the planned action
// sequence, a captured process environment snapshot, and the hook registry
// for one run (spec §4.7, "State").
type Kernel struct {
	plugins  []pluginapi.Plugin
	names    []string
	bus      *databus.DataBus
	sequence []planner.Action
	env      map[string]string
	hooks    *Hooks
	isDryRun bool
	log      *rtlog.Logger
	progress ProgressFunc
}

// ProgressPhase discriminates the two events ProgressFunc receives around
// each action.
type ProgressPhase int

const (
	// ProgressStarted fires immediately before an action executes.
	ProgressStarted ProgressPhase = iota
	// ProgressFinished fires immediately after, carrying the result.
	ProgressFinished
)

// ProgressFunc is notified before and after every action in the sequence,
// letting a caller (e.g. internal/tui) drive a live view of execution. err
// is always nil on ProgressStarted.
type ProgressFunc func(index int, action planner.Action, phase ProgressPhase, err error)

// OnProgress registers a progress callback, replacing any previous one.
func (k *Kernel) OnProgress(fn ProgressFunc) {
	k.progress = fn
}

// Sequence returns the planned action sequence, e.g. for a plan viewer to
// render before Run executes it.
func (k *Kernel) Sequence() []planner.Action {
	return k.sequence
}

// New assembles a Kernel ready to Run. plugins must all be in the Started
// state, in the same declaration order the sequence's plugin indices refer to.
func New(plugins []pluginapi.RawPlugin, bus *databus.DataBus, sequence []planner.Action, hooks *Hooks, isDryRun bool, log *rtlog.Logger) (*Kernel, error) {
	instances := make([]pluginapi.Plugin, len(plugins))
	names := make([]string, len(plugins))
	for i, p := range plugins {
		if p.State != pluginapi.Started {
			return nil, fmt.Errorf("kernel: plugin %q is not started", p.Name)
		}
		instances[i] = p.Started
		names[i] = p.Name
	}
	if hooks == nil {
		hooks = NewHooks()
	}
	return &Kernel{
		plugins:  instances,
		names:    names,
		bus:      bus,
		sequence: sequence,
		env:      captureEnv(),
		hooks:    hooks,
		isDryRun: isDryRun,
		log:      log,
	}, nil
}

func captureEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}
	return env
}

// Run walks the action sequence in order. An ErrEarlyExit from a plugin
// call ends the run successfully without executing the remaining actions
// (spec §7, Control kind); any other error aborts the run.
func (k *Kernel) Run(ctx context.Context) error {
	defer k.releaseGuards(ctx)

	for i, action := range k.sequence {
		if k.progress != nil {
			k.progress(i, action, ProgressStarted, nil)
		}
		err := k.execute(ctx, action)
		if k.progress != nil {
			k.progress(i, action, ProgressFinished, err)
		}
		if err != nil {
			if relerr.IsEarlyExit(err) {
				k.log.Info(ctx, "kernel finished early", "step", action.Step)
				return nil
			}
			return err
		}
	}

	if k.isDryRun {
		var skipped []string
		for _, s := range step.WetSteps() {
			skipped = append(skipped, s.String())
		}
		k.log.Info(ctx, "dry run: skipping wet steps", "steps", strings.Join(skipped, ", "))
	}

	return nil
}

// releaseGuards type-asserts every plugin for GuardedPlugin and releases any
// DryRunGuard it acquired, regardless of how Run exited (spec §5, §9 Design
// Note: "Drop-guard semantics … release restores the original state on any
// exit path"). A release failure is logged, not propagated: teardown is
// best-effort and must not mask the run's own result.
func (k *Kernel) releaseGuards(ctx context.Context) {
	for i, p := range k.plugins {
		guarded, ok := p.(pluginapi.GuardedPlugin)
		if !ok {
			continue
		}
		guard := guarded.Guard()
		if guard == nil {
			continue
		}
		if err := guard.Release(); err != nil {
			k.log.With("plugin", k.names[i]).Warn(ctx, "failed to release dry-run guard", "error", err)
		}
	}
}

func (k *Kernel) execute(ctx context.Context, action planner.Action) error {
	switch action.Kind {
	case planner.ActionCall:
		plugin := k.plugins[action.Plugin]
		k.log.Debug(ctx, "call", "plugin", k.names[action.Plugin], "step", action.Step)
		resp := pluginapi.Call(plugin, action.Step)
		k.logWarnings(ctx, action.Step, k.names[action.Plugin], resp.Warnings)
		if _, err := resp.Resolve(); err != nil {
			return relerr.NewExecutionError(action.Step.String(), k.names[action.Plugin], "", err)
		}
		return nil

	case planner.ActionGet:
		plugin := k.plugins[action.Plugin]
		resp := plugin.GetValue(action.Key)
		k.logWarnings(ctx, action.Step, k.names[action.Plugin], resp.Warnings)
		raw, err := resp.Resolve()
		if err != nil {
			return relerr.NewExecutionError(action.Step.String(), k.names[action.Plugin], action.Key, err)
		}
		k.bus.InsertGlobal(action.Key, flow.WithValue(action.Key, raw))
		return nil

	case planner.ActionSet:
		value, err := k.bus.PrepareValue(action.DestKey, action.SrcKey)
		if err != nil {
			return relerr.NewExecutionError(action.Step.String(), k.names[action.Plugin], action.DestKey, err)
		}
		return k.setValue(ctx, action, value)

	case planner.ActionSetValue:
		return k.setValue(ctx, action, flow.WithValue(action.DestKey, action.Value))

	case planner.ActionRequireConfigEntry:
		value, err := k.bus.PrepareValueSameKey(action.Key)
		if err != nil {
			return relerr.NewExecutionError(action.Step.String(), k.names[action.Plugin], action.Key, err)
		}
		return k.setValueAt(ctx, action.Plugin, action.Step, action.Key, value)

	case planner.ActionRequireEnvValue:
		raw, ok := k.env[action.SrcKey]
		if !ok {
			return relerr.NewExecutionError(action.Step.String(), k.names[action.Plugin], action.SrcKey,
				fmt.Errorf("env value undefined: %s", action.SrcKey))
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return relerr.NewExecutionError(action.Step.String(), k.names[action.Plugin], action.SrcKey, err)
		}
		return k.setValue(ctx, action, flow.WithValue(action.SrcKey, data))

	case planner.ActionPreStepHook:
		return k.hooks.ExecBefore(action.Step, k.bus)

	case planner.ActionPostStepHook:
		return k.hooks.ExecAfter(action.Step, k.bus)

	default:
		return fmt.Errorf("kernel: unknown action kind %d", action.Kind)
	}
}

func (k *Kernel) setValue(ctx context.Context, action planner.Action, value flow.Value) error {
	return k.setValueAt(ctx, action.Plugin, action.Step, action.DestKey, value)
}

func (k *Kernel) setValueAt(ctx context.Context, pluginID int, s step.Step, destKey string, value flow.Value) error {
	plugin := k.plugins[pluginID]
	resp := plugin.SetValue(destKey, value)
	k.logWarnings(ctx, s, k.names[pluginID], resp.Warnings)
	if _, err := resp.Resolve(); err != nil {
		return relerr.NewExecutionError(s.String(), k.names[pluginID], destKey, err)
	}
	return nil
}

// logWarnings surfaces every warning a plugin response carries, regardless
// of whether the response also failed (spec §4.2, §4.7: "executor logs
// warnings"). Response.Resolve intentionally does not do this itself — see
// the doc comment on Response.Resolve.
func (k *Kernel) logWarnings(ctx context.Context, s step.Step, pluginName string, warnings []string) {
	for _, w := range warnings {
		k.log.With("plugin", pluginName, "step", s).Warn(ctx, w)
	}
}
