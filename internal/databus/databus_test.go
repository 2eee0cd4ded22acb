package databus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/flow"
)

func TestNewSeedsOnlyLiteralTopLevelCfgEntries(t *testing.T) {
	cfg := config.New()
	literal, err := config.ParseValueDefinition("1.0.0")
	require.NoError(t, err)
	cfg.Cfg.Set("current_version", literal)

	fromRef, err := config.ParseValueDefinition("from:other_key")
	require.NoError(t, err)
	cfg.Cfg.Set("derived", fromRef)

	bus := New(cfg)
	require.Equal(t, []json.RawMessage{json.RawMessage(`"1.0.0"`)}, bus.GetGlobal("current_version"))
	require.Nil(t, bus.GetGlobal("derived"))
}

func TestInsertGlobalDeduplicatesByteForByte(t *testing.T) {
	bus := New(config.New())
	v := flow.WithValue("k", json.RawMessage(`"x"`))
	bus.InsertGlobal("k", v)
	bus.InsertGlobal("k", v)
	require.Equal(t, []json.RawMessage{json.RawMessage(`"x"`)}, bus.GetGlobal("k"))
}

func TestInsertGlobalIgnoresUnreadyValues(t *testing.T) {
	bus := New(config.New())
	bus.InsertGlobal("k", flow.FromKey("k"))
	require.Nil(t, bus.GetGlobal("k"))
}

// TestPrepareValueSingleProducerReturnsScalar and
// TestPrepareValueMultipleProducersReturnsArray exercise the multi-producer
// merge policy spec §4.6 states explicitly (see DESIGN.md Open Question 2).
func TestPrepareValueSingleProducerReturnsScalar(t *testing.T) {
	bus := New(config.New())
	bus.InsertGlobal("tag", flow.WithValue("tag", json.RawMessage(`"v1.0.0"`)))

	v, err := bus.PrepareValue("dest", "tag")
	require.NoError(t, err)
	require.Equal(t, json.RawMessage(`"v1.0.0"`), v.AsValue())
}

func TestPrepareValueMultipleProducersReturnsArray(t *testing.T) {
	bus := New(config.New())
	bus.InsertGlobal("tag", flow.WithValue("tag", json.RawMessage(`"v1.0.0"`)))
	bus.InsertGlobal("tag", flow.WithValue("tag", json.RawMessage(`"v1.1.0"`)))

	v, err := bus.PrepareValue("dest", "tag")
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal(v.AsValue(), &got))
	require.Equal(t, []string{"v1.0.0", "v1.1.0"}, got)
}

func TestPrepareValueFailsWhenKeyNeverRecorded(t *testing.T) {
	bus := New(config.New())
	_, err := bus.PrepareValue("dest", "missing")
	require.Error(t, err)
	require.ErrorContains(t, err, "missing")
}

func TestPrepareValueSameKeyResolvesAgainstItself(t *testing.T) {
	bus := New(config.New())
	bus.InsertGlobal("x", flow.WithValue("x", json.RawMessage(`42`)))

	v, err := bus.PrepareValueSameKey("x")
	require.NoError(t, err)
	require.Equal(t, json.RawMessage(`42`), v.AsValue())
}
