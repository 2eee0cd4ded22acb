package kernel

import (
	"github.com/relrun/relrun/internal/databus"
	"github.com/relrun/relrun/internal/step"
)

// Hook is a user-registered function invoked around a step, distinct from a
// plugin's own step method (spec §4.7, GLOSSARY "Hook").
type Hook func(s step.Step, bus *databus.DataBus) error

// HookTargetKind discriminates the four places a Hook can be registered.
type HookTargetKind int

const (
	// HookBeforeStep fires only before the named step.
	HookBeforeStep HookTargetKind = iota
	// HookAfterStep fires only after the named step.
	HookAfterStep
	// HookBeforeAnyStep fires before every step.
	HookBeforeAnyStep
	// HookAfterAnyStep fires after every step.
	HookAfterAnyStep
)

// HookTarget names where a hook should be registered.
type HookTarget struct {
	Kind HookTargetKind
	Step step.Step
}

// BeforeStep targets the before-hook list for a specific step.
func BeforeStep(s step.Step) HookTarget { return HookTarget{Kind: HookBeforeStep, Step: s} }

// AfterStep targets the after-hook list for a specific step.
func AfterStep(s step.Step) HookTarget { return HookTarget{Kind: HookAfterStep, Step: s} }

// BeforeAnyStep targets the before-hook list that fires on every step.
func BeforeAnyStep() HookTarget { return HookTarget{Kind: HookBeforeAnyStep} }

// AfterAnyStep targets the after-hook list that fires on every step.
func AfterAnyStep() HookTarget { return HookTarget{Kind: HookAfterAnyStep} }

// Hooks is the kernel's hook registry: four lists, invoked specific-step
// list first, then the any-step list, in registration order (spec §4.7).
type Hooks struct {
	before    map[step.Step][]Hook
	after     map[step.Step][]Hook
	beforeAny []Hook
	afterAny  []Hook
}

// NewHooks returns an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{before: make(map[step.Step][]Hook), after: make(map[step.Step][]Hook)}
}

// Register adds hook to the list named by target.
func (h *Hooks) Register(target HookTarget, hook Hook) {
	switch target.Kind {
	case HookBeforeStep:
		h.before[target.Step] = append(h.before[target.Step], hook)
	case HookAfterStep:
		h.after[target.Step] = append(h.after[target.Step], hook)
	case HookBeforeAnyStep:
		h.beforeAny = append(h.beforeAny, hook)
	case HookAfterAnyStep:
		h.afterAny = append(h.afterAny, hook)
	}
}

// ExecBefore runs every before-hook registered for s, then every
// before-any-step hook, in registration order.
func (h *Hooks) ExecBefore(s step.Step, bus *databus.DataBus) error {
	for _, hook := range h.before[s] {
		if err := hook(s, bus); err != nil {
			return err
		}
	}
	for _, hook := range h.beforeAny {
		if err := hook(s, bus); err != nil {
			return err
		}
	}
	return nil
}

// ExecAfter runs every after-hook registered for s, then every
// after-any-step hook, in registration order.
func (h *Hooks) ExecAfter(s step.Step, bus *databus.DataBus) error {
	for _, hook := range h.after[s] {
		if err := hook(s, bus); err != nil {
			return err
		}
	}
	for _, hook := range h.afterAny {
		if err := hook(s, bus); err != nil {
			return err
		}
	}
	return nil
}
