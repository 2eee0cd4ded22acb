package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanCommandPrintsHookBracketedSequence(t *testing.T) {
	dir := writeReleaserc(t, `
[plugins]
env_token = "builtin"

[steps]

[cfg]
`)

	out, err := executeRelrun(t, "--path", dir, "plan")
	require.NoError(t, err)
	require.Contains(t, out, "pre_hook")
	require.Contains(t, out, "post_hook")
	require.Contains(t, out, "require_env")
}

func TestPlanCommandFailsWhenPluginCannotBeResolved(t *testing.T) {
	dir := writeReleaserc(t, `
[plugins]
ghost = "builtin"

[steps]
`)

	_, err := executeRelrun(t, "--path", dir, "plan")
	require.Error(t, err)
}
