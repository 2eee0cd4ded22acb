// Package git implements a reference builtin plugin: a pre-flight repo
// sanity check and version/tag discovery backed by go-git, grounded on the
// teacher's internal/plugins/repo use of github.com/go-git/go-git/v5.
package git

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/resolver"
	"github.com/relrun/relrun/internal/step"
)

// PackageName is the builtin registry key for this plugin.
const PackageName = "git"

func init() {
	resolver.RegisterBuiltin(PackageName, New)
}

// Plugin opens the repository at project_root during pre_flight (warning,
// not failing, on a dirty worktree), then provisions current_version
// (Always, read from the latest semver tag) and tag_name
// (AfterStep(get_last_release), that same version without its "v" prefix;
// no version bump is applied).
type Plugin struct {
	pluginapi.BasePlugin

	repo       *gogit.Repository
	lastTag    string
	nextTagSet bool
	nextTag    string
	guard      *previewTagGuard
}

// New constructs the git builtin plugin.
func New(name string) (pluginapi.Plugin, error) {
	p := &Plugin{}
	p.PluginName = name
	p.Config = map[string]flow.Value{
		flow.KeyProjectRoot: flow.FromKey(flow.KeyProjectRoot),
		flow.KeyDryRun:      flow.FromKey(flow.KeyDryRun),
	}
	return p, nil
}

// Methods reports the three steps this plugin participates in.
func (p *Plugin) Methods() pluginapi.Response[[]step.Step] {
	return pluginapi.Ok([]step.Step{step.PreFlight, step.GetLastRelease, step.Prepare})
}

// ProvisionCapabilities advertises current_version (always) and tag_name
// (available once get_last_release has run).
func (p *Plugin) ProvisionCapabilities() pluginapi.Response[[]flow.ProvisionCapability] {
	return pluginapi.Ok([]flow.ProvisionCapability{
		{Key: flow.KeyCurrentVersion, When: flow.AlwaysAvailable()},
		{Key: flow.KeyTagName, When: flow.AfterStep(step.GetLastRelease)},
	})
}

// PreFlight opens the repository and fails fast if it isn't one. A worktree
// with uncommitted changes only produces a warning.
func (p *Plugin) PreFlight() pluginapi.Response[struct{}] {
	root, err := p.projectRoot()
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}

	repo, err := gogit.PlainOpen(root)
	if err != nil {
		return pluginapi.FromError[struct{}](errors.New("not a git repository: " + err.Error()))
	}
	p.repo = repo

	wt, err := repo.Worktree()
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}
	status, err := wt.Status()
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}
	if !status.IsClean() {
		return pluginapi.NewBuilder[struct{}]().
			Warning("worktree has uncommitted changes").
			Data(struct{}{}).
			Build()
	}
	return pluginapi.Ok(struct{}{})
}

// GetLastRelease scans tags for the highest semver value, recording it as
// the last release and setting tag_name to that same version without its
// "v" prefix.
func (p *Plugin) GetLastRelease() pluginapi.Response[struct{}] {
	if p.repo == nil {
		return pluginapi.FromError[struct{}](errors.New("git: repository was not opened during pre_flight"))
	}

	tags, err := p.repo.Tags()
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}

	var versions []*semver.Version
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		if v, parseErr := semver.NewVersion(ref.Name().Short()); parseErr == nil {
			versions = append(versions, v)
		}
		return nil
	})
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}

	sort.Sort(semver.Collection(versions))

	if len(versions) > 0 {
		p.lastTag = "v" + versions[len(versions)-1].String()
	} else {
		p.lastTag = "v0.0.0"
	}
	p.nextTag = strings.TrimPrefix(p.lastTag, "v")
	p.nextTagSet = true
	return pluginapi.Ok(struct{}{})
}

// Prepare stages a lightweight preview tag for the computed release when
// dry_run is set, so a dry run can show what tag would be created without
// leaving it behind. The tag is removed by the guard's Release, invoked
// from the kernel's teardown on any exit path (spec §5, §9 Design Note:
// "Drop-guard semantics").
func (p *Plugin) Prepare() pluginapi.Response[struct{}] {
	dryRun, err := p.boolConfig(flow.KeyDryRun)
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}
	if !dryRun {
		return pluginapi.Ok(struct{}{})
	}
	if p.repo == nil || !p.nextTagSet {
		return pluginapi.FromError[struct{}](errors.New("git: prepare requires pre_flight and get_last_release to have run"))
	}

	head, err := p.repo.Head()
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}
	previewTag := "relrun-dry-run-" + p.nextTag
	if _, err := p.repo.CreateTag(previewTag, head.Hash(), nil); err != nil {
		return pluginapi.FromError[struct{}](err)
	}
	p.guard = &previewTagGuard{repo: p.repo, tag: previewTag}
	return pluginapi.Ok(struct{}{})
}

// Guard returns the dry-run guard acquired by Prepare, or nil if none was
// acquired (dry_run unset, or Prepare never ran).
func (p *Plugin) Guard() pluginapi.DryRunGuard {
	if p.guard == nil {
		return nil
	}
	return p.guard
}

// previewTagGuard deletes the preview tag Prepare created, restoring the
// repository to the state it had before the dry run.
type previewTagGuard struct {
	repo *gogit.Repository
	tag  string
}

func (g *previewTagGuard) Release() error {
	return g.repo.DeleteTag(g.tag)
}

// GetValue serves current_version unconditionally and tag_name once set.
func (p *Plugin) GetValue(key string) pluginapi.Response[json.RawMessage] {
	switch key {
	case flow.KeyCurrentVersion:
		return pluginapi.Ok(mustMarshal(p.lastTag))
	case flow.KeyTagName:
		if !p.nextTagSet {
			return pluginapi.FromError[json.RawMessage](errors.New("git: tag_name requested before get_last_release ran"))
		}
		return pluginapi.Ok(mustMarshal(p.nextTag))
	default:
		return p.BasePlugin.GetValue(key)
	}
}

func (p *Plugin) projectRoot() (string, error) {
	v, ok := p.Config[flow.KeyProjectRoot]
	if !ok || !v.IsReady() {
		return "", errors.New("git: project_root was not provisioned")
	}
	var root string
	if err := json.Unmarshal(v.AsValue(), &root); err != nil {
		return "", err
	}
	return root, nil
}

// boolConfig reads a boolean config entry, defaulting to false when the
// entry is absent or not yet resolved (e.g. dry_run wasn't wired in).
func (p *Plugin) boolConfig(key string) (bool, error) {
	v, ok := p.Config[key]
	if !ok || !v.IsReady() {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(v.AsValue(), &b); err != nil {
		return false, err
	}
	return b, nil
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
