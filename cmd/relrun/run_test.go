package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCommandSucceedsAndExitsEarlyWhenNothingToRelease(t *testing.T) {
	dir := writeReleaserc(t, `
[plugins]
early_exit = "builtin"

[steps]
verify_release = "early_exit"

[cfg]
current_version = "1.0.0"
next_version = "1.0.0"
`)

	_, err := executeRelrun(t, "--path", dir, "--silent", "run")
	require.NoError(t, err)
}

func TestRunCommandPropagatesCapabilityFailure(t *testing.T) {
	dir := writeReleaserc(t, `
[plugins]
early_exit = "builtin"

[steps]
commit = "early_exit"
`)

	_, err := executeRelrun(t, "--path", dir, "--silent", "run")
	require.Error(t, err)
}

func TestRunCommandFailsOnMissingConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := executeRelrun(t, "--path", dir, "--silent", "run")
	require.Error(t, err)
}
