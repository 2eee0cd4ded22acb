// Package resolver turns the RawPlugin entries produced from config
// (spec §3, §4.3) into running plugin instances, dispatching on
// UnresolvedPlugin.Kind: Builtin names look up a compiled-in constructor
// registry; Cargo locations are left unimplemented, matching the original's
// CargoResolver (core/src/runtime/resolver.rs), which never fetches external
// packages either.
package resolver

import (
	"fmt"
	"sync"

	"github.com/relrun/relrun/internal/pluginapi"
)

// Constructor builds a fresh plugin instance by name.
type Constructor func(name string) (pluginapi.Plugin, error)

var (
	registryMu sync.RWMutex
	builtins   = make(map[string]Constructor)
)

// RegisterBuiltin adds a constructor for a compiled-in plugin package name.
// Builtin plugin packages call this from an init() the way the teacher's
// command packages register themselves with cobra's root command.
func RegisterBuiltin(packageName string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	builtins[packageName] = ctor
}

// ResetRegistry clears builtin registrations (for tests).
func ResetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	builtins = make(map[string]Constructor)
}

func lookupBuiltin(packageName string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := builtins[packageName]
	return ctor, ok
}

// Resolve maps an UnresolvedPlugin to a running Plugin instance.
func Resolve(name string, u pluginapi.UnresolvedPlugin) (pluginapi.Plugin, error) {
	switch u.Kind {
	case pluginapi.Builtin:
		pkg := u.Package
		if pkg == "" {
			pkg = name
		}
		ctor, ok := lookupBuiltin(pkg)
		if !ok {
			return nil, fmt.Errorf("resolver: no builtin plugin registered for %q", pkg)
		}
		return ctor(name)
	case pluginapi.Cargo:
		return nil, fmt.Errorf("resolver: external package resolution is not implemented (plugin %q, package %q)", name, u.Package)
	default:
		return nil, fmt.Errorf("resolver: unknown plugin location kind for %q", name)
	}
}
