package flow

// Well-known bus keys (spec §2 item 9, §6). Non-exhaustive: plugins are free
// to provision and consume keys of their own naming, but these names are
// shared conventions builtin plugins and the kernel itself rely on.
const (
	KeyProjectRoot     = "project_root"
	KeyDryRun          = "dry_run"
	KeyNextVersion     = "next_version"
	KeyCurrentVersion  = "current_version"
	KeyFilesToCommit   = "files_to_commit"
	KeyChangelog       = "changelog"
	KeyTagName         = "tag_name"
	KeyCommitLog       = "commit_log"
	KeyGitHubToken     = "GH_TOKEN"
	KeyCargoToken      = "CARGO_TOKEN"
)
