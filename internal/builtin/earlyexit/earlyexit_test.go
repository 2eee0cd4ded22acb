package earlyexit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relrun/relrun/internal/flow"
	"github.com/relrun/relrun/internal/relerr"
)

func newPlugin(t *testing.T, current, next string) *Plugin {
	t.Helper()
	instance, err := New("early_exit")
	require.NoError(t, err)
	p := instance.(*Plugin)
	if current != "" {
		p.Config[flow.KeyCurrentVersion] = flow.WithValueAny(flow.KeyCurrentVersion, current)
	}
	if next != "" {
		p.Config[flow.KeyNextVersion] = flow.WithValueAny(flow.KeyNextVersion, next)
	}
	return p
}

func TestVerifyReleaseSignalsEarlyExitWhenVersionsMatch(t *testing.T) {
	p := newPlugin(t, "1.2.3", "1.2.3")
	_, err := p.VerifyRelease().Resolve()
	require.Error(t, err)
	require.True(t, relerr.IsEarlyExit(err))
}

func TestVerifyReleaseSucceedsWhenVersionsDiffer(t *testing.T) {
	p := newPlugin(t, "1.2.3", "1.3.0")
	_, err := p.VerifyRelease().Resolve()
	require.NoError(t, err)
}

func TestVerifyReleaseFailsWhenCurrentVersionMissing(t *testing.T) {
	p := newPlugin(t, "", "1.3.0")
	_, err := p.VerifyRelease().Resolve()
	require.Error(t, err)
	require.False(t, relerr.IsEarlyExit(err))
}

func TestVerifyReleaseFailsWhenNextVersionMissing(t *testing.T) {
	p := newPlugin(t, "1.2.3", "")
	_, err := p.VerifyRelease().Resolve()
	require.Error(t, err)
	require.False(t, relerr.IsEarlyExit(err))
}

func TestMethodsReportsOnlyVerifyRelease(t *testing.T) {
	p := newPlugin(t, "1.0.0", "1.0.0")
	methods, err := p.Methods().Resolve()
	require.NoError(t, err)
	require.Len(t, methods, 1)
}
