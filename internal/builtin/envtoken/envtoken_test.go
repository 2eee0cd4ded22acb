package envtoken

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relrun/relrun/internal/flow"
)

func TestNewSeedsTokenAsEnvBoundProvisionRequest(t *testing.T) {
	instance, err := New("env_token")
	require.NoError(t, err)
	p := instance.(*Plugin)

	v := p.Config["token"]
	require.False(t, v.IsReady())
	require.True(t, v.State.Request.FromEnv)
	require.Equal(t, flow.KeyGitHubToken, v.State.Request.Key)
}

func TestMethodsReportsNoStepParticipation(t *testing.T) {
	instance, err := New("env_token")
	require.NoError(t, err)
	p := instance.(*Plugin)

	methods, err := p.Methods().Resolve()
	require.NoError(t, err)
	require.Empty(t, methods)
}

func TestProvisionCapabilitiesAdvertisesTokenAlways(t *testing.T) {
	instance, err := New("env_token")
	require.NoError(t, err)
	p := instance.(*Plugin)

	caps, err := p.ProvisionCapabilities().Resolve()
	require.NoError(t, err)
	require.Len(t, caps, 1)
	require.Equal(t, "token", caps[0].Key)
	require.Equal(t, flow.Always, caps[0].When.Kind)
}

func TestGetValueFailsUntilTokenIsProvisioned(t *testing.T) {
	instance, err := New("env_token")
	require.NoError(t, err)
	p := instance.(*Plugin)

	_, err = p.GetValue("token").Resolve()
	require.Error(t, err)
}

func TestGetValueServesTokenOnceSet(t *testing.T) {
	instance, err := New("env_token")
	require.NoError(t, err)
	p := instance.(*Plugin)

	_, err = p.SetValue("token", flow.WithValueAny("token", "secret-value")).Resolve()
	require.NoError(t, err)

	raw, err := p.GetValue("token").Resolve()
	require.NoError(t, err)
	var token string
	require.NoError(t, json.Unmarshal(raw, &token))
	require.Equal(t, "secret-value", token)
}
