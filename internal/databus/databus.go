// Package databus implements the kernel's in-memory value bus: an
// append-only, per-key history of distinct JSON values, merged into a
// single consumable value at read time (spec §2 item 9, §4.6). Grounded on
// original_source/src/plugin_runtime/data_mgr.rs's DataManager, with the
// scalar/array merge policy spec §4.6 describes explicitly (return the
// single entry when exactly one producer wrote the key, otherwise a JSON
// array of every distinct entry) rather than the original's apparent
// length-only merge.
package databus

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/flow"
)

// DataBus holds the append-only per-key value history.
type DataBus struct {
	global map[string][]json.RawMessage
}

// New seeds a DataBus from every literal (non-"from:") top-level [cfg]
// entry, matching DataManager::new's filter over releaserc.cfg.
func New(cfg *config.Config) *DataBus {
	bus := &DataBus{global: make(map[string][]json.RawMessage)}
	for _, key := range cfg.Cfg.Keys() {
		vd, _ := cfg.Cfg.Get(key)
		if vd.Kind == config.ValueDefinitionLiteral {
			bus.global[key] = []json.RawMessage{vd.Literal}
		}
	}
	return bus
}

// InsertGlobal appends value under key if it is Ready and not already
// present (equality of the decoded JSON values, so formatting and object
// key order do not matter, matching the original's Vec::contains check on
// the decoded serde_json::Value).
func (b *DataBus) InsertGlobal(key string, value flow.Value) {
	if !value.IsReady() {
		return
	}
	data := value.AsValue()
	existing := b.global[key]
	for _, v := range existing {
		if jsonEqual(v, data) {
			return
		}
	}
	b.global[key] = append(existing, data)
}

// GetGlobal returns the raw history for key, or nil if nothing was ever
// recorded under it.
func (b *DataBus) GetGlobal(key string) []json.RawMessage {
	return b.global[key]
}

// ErrDataNotAvailable is returned by PrepareValue when src has no recorded history.
type ErrDataNotAvailable struct{ Key string }

func (e ErrDataNotAvailable) Error() string {
	return fmt.Sprintf("databus: no data available for key %q", e.Key)
}

// PrepareValue resolves srcKey's recorded history into a single consumable
// value: the lone entry when there's exactly one, or a JSON array of every
// distinct entry when there's more than one (spec §4.6). dstKey is not
// used: the returned Value carries srcKey as its key.
func (b *DataBus) PrepareValue(dstKey, srcKey string) (flow.Value, error) {
	values, ok := b.global[srcKey]
	if !ok || len(values) == 0 {
		return flow.Value{}, ErrDataNotAvailable{Key: srcKey}
	}

	var merged json.RawMessage
	if len(values) == 1 {
		merged = values[0]
	} else {
		data, err := json.Marshal(values)
		if err != nil {
			return flow.Value{}, fmt.Errorf("databus: merging %q: %w", srcKey, err)
		}
		merged = data
	}

	return flow.WithValue(srcKey, merged), nil
}

// PrepareValueSameKey resolves a key against itself (spec §4.5, the common
// case where a plugin's destination key matches the source key it wants).
func (b *DataBus) PrepareValueSameKey(dstKey string) (flow.Value, error) {
	return b.PrepareValue(dstKey, dstKey)
}

func jsonEqual(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return string(a) == string(b)
	}
	return reflect.DeepEqual(va, vb)
}
