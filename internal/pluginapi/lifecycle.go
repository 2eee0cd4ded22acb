package pluginapi

// UnresolvedLocationKind discriminates where a plugin implementation should
// be resolved from (spec §3: "UnresolvedPlugin = {Builtin} | {Cargo{package,
// version}} (extensible)"). Go side note: "Cargo" names the original
// ecosystem's package manager; this implementation keeps the name so the
// resolver's registry-vs-external-location split matches the source model,
// even though nothing fetches a Cargo package in this kernel (out of scope,
// spec §1).
type UnresolvedLocationKind int

const (
	// Builtin resolves against the compiled-in plugin registry.
	Builtin UnresolvedLocationKind = iota
	// Cargo names an external package location; this kernel leaves it
	// unimplemented (resolution always fails), matching the original's
	// CargoResolver, which is `unimplemented!()`.
	Cargo
)

// UnresolvedPlugin names where a declared plugin should be resolved from.
type UnresolvedPlugin struct {
	Kind    UnresolvedLocationKind
	Package string
	Version string
}

// ResolvedPlugin wraps a concrete running instance obtained from resolution.
type ResolvedPlugin struct {
	Instance Plugin
}

// RawPluginStateKind discriminates the resolve lifecycle of a RawPlugin.
type RawPluginStateKind int

const (
	// Unresolved means the plugin name has not yet been mapped to an implementation.
	Unresolved RawPluginStateKind = iota
	// Resolved means the plugin has a concrete implementation but hasn't been started.
	Resolved
	// Started means the plugin is a running instance, ready for use.
	Started
)

// RawPlugin carries a plugin's name through the Unresolved -> Resolved ->
// Started lifecycle (spec §3).
type RawPlugin struct {
	Name       string
	State      RawPluginStateKind
	Unresolved UnresolvedPlugin
	Resolved   ResolvedPlugin
	Started    Plugin
}

// NewUnresolved constructs a RawPlugin in the Unresolved state.
func NewUnresolved(name string, u UnresolvedPlugin) RawPlugin {
	return RawPlugin{Name: name, State: Unresolved, Unresolved: u}
}

// DryRunGuard is a scoped resource acquired when a plugin's preparation step
// modifies on-disk artifacts while dry_run is set. Release restores the
// original state on any exit path (spec §5, §9 Design Note: "Drop-guard
// semantics"). Implemented with a plain Release call invoked from the
// kernel's plugin teardown rather than a finalizer, per the Design Note's
// instruction to never rely on finalization at process exit.
type DryRunGuard interface {
	Release() error
}

// GuardedPlugin is implemented by plugins that acquire a DryRunGuard during
// preparation; the kernel type-asserts for this interface during teardown.
type GuardedPlugin interface {
	Guard() DryRunGuard
}
