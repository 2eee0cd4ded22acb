// Package clog implements a reference builtin plugin that assembles a
// changelog from commit log text, grounded on the original's
// src/builtin_plugins/clog.rs (generate_changelog / analyze_single), minus
// its Clog-crate formatting: commit classification here is a small
// conventional-commit prefix match done with the standard library, since
// nothing in the example pack carries an equivalent changelog-formatting
// library (see DESIGN.md).
package clog

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/pluginapi"
	"github.com/relrun/relrun/internal/resolver"
	"github.com/relrun/relrun/internal/step"
)

// PackageName is the builtin registry key for this plugin.
const PackageName = "clog"

func init() {
	resolver.RegisterBuiltin(PackageName, New)
}

// Plugin implements the generate_notes singleton step, building a Markdown
// changelog section from a newline-delimited commit log supplied on the bus
// (commit_log), and provisions the resulting text as changelog.
type Plugin struct {
	pluginapi.BasePlugin

	changelog    string
	changelogSet bool
}

// New constructs the clog builtin plugin.
func New(name string) (pluginapi.Plugin, error) {
	p := &Plugin{}
	p.PluginName = name
	p.Config = map[string]flow.Value{
		"commit_log":         flow.FromKey("commit_log"),
		flow.KeyTagName:      flow.RequiredAtStep(flow.KeyTagName, step.GenerateNotes),
		"ignored_components": flow.WithValueAny("ignored_components", []string{}),
	}
	return p, nil
}

// Methods reports this plugin only implements generate_notes.
func (p *Plugin) Methods() pluginapi.Response[[]step.Step] {
	return pluginapi.Ok([]step.Step{step.GenerateNotes})
}

// ProvisionCapabilities advertises changelog once generate_notes has run.
func (p *Plugin) ProvisionCapabilities() pluginapi.Response[[]flow.ProvisionCapability] {
	return pluginapi.Ok([]flow.ProvisionCapability{
		{Key: flow.KeyChangelog, When: flow.AfterStep(step.GenerateNotes)},
	})
}

// GenerateNotes groups the commit log by conventional-commit type and
// renders a Markdown changelog section titled with tag_name.
func (p *Plugin) GenerateNotes() pluginapi.Response[struct{}] {
	commitLog, err := p.stringConfig("commit_log")
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}
	tagName, err := p.stringConfig(flow.KeyTagName)
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}
	ignored, err := p.stringSliceConfig("ignored_components")
	if err != nil {
		return pluginapi.FromError[struct{}](err)
	}

	sections := map[string][]string{}
	for _, line := range strings.Split(commitLog, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kind, component, subject := classifyCommit(line)
		if containsFold(ignored, component) {
			continue
		}
		sections[kind] = append(sections[kind], subject)
	}

	p.changelog = renderChangelog(tagName, sections)
	p.changelogSet = true
	return pluginapi.Ok(struct{}{})
}

// GetValue serves changelog once generate_notes has run.
func (p *Plugin) GetValue(key string) pluginapi.Response[json.RawMessage] {
	if key != flow.KeyChangelog {
		return p.BasePlugin.GetValue(key)
	}
	if !p.changelogSet {
		return pluginapi.FromError[json.RawMessage](errors.New("clog: changelog requested before generate_notes ran"))
	}
	raw, err := json.Marshal(p.changelog)
	if err != nil {
		return pluginapi.FromError[json.RawMessage](err)
	}
	return pluginapi.Ok(raw)
}

func (p *Plugin) stringConfig(key string) (string, error) {
	v, ok := p.Config[key]
	if !ok || !v.IsReady() {
		return "", errors.New("clog: " + key + " was not provisioned")
	}
	var s string
	if err := json.Unmarshal(v.AsValue(), &s); err != nil {
		return "", err
	}
	return s, nil
}

func (p *Plugin) stringSliceConfig(key string) ([]string, error) {
	v, ok := p.Config[key]
	if !ok || !v.IsReady() {
		return nil, nil
	}
	var s []string
	if err := json.Unmarshal(v.AsValue(), &s); err != nil {
		return nil, err
	}
	return s, nil
}

var kindOrder = []string{"Breaking Changes", "Features", "Bug Fixes", "Other"}

// classifyCommit splits a "type(component): subject" conventional-commit
// style subject line into its changelog section, component, and subject text.
func classifyCommit(line string) (kind, component, subject string) {
	header, _, hasBody := strings.Cut(line, "\n")
	if hasBody {
		line = header
	}

	prefix, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "Other", "", line
	}
	subject = strings.TrimSpace(rest)

	typ := prefix
	if open := strings.IndexByte(prefix, '('); open >= 0 {
		typ = prefix[:open]
		if close := strings.IndexByte(prefix, ')'); close > open {
			component = strings.ToLower(prefix[open+1 : close])
		}
	}
	typ = strings.ToLower(strings.TrimSuffix(typ, "!"))

	switch {
	case strings.HasSuffix(prefix, "!") || strings.Contains(line, "BREAKING CHANGE"):
		return "Breaking Changes", component, subject
	case typ == "feat":
		return "Features", component, subject
	case typ == "fix":
		return "Bug Fixes", component, subject
	default:
		return "Other", component, subject
	}
}

func renderChangelog(tagName string, sections map[string][]string) string {
	var b strings.Builder
	b.WriteString("## " + tagName + "\n")
	for _, kind := range kindOrder {
		entries := sections[kind]
		if len(entries) == 0 {
			continue
		}
		sort.Strings(entries)
		b.WriteString("\n### " + kind + "\n\n")
		for _, e := range entries {
			b.WriteString("- " + e + "\n")
		}
	}
	return b.String()
}

func containsFold(haystack []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
