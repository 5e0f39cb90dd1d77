// Package descriptors caches the manager's asset model descriptors (asset infos, meta item
// and value descriptors) for the life of a session.
package descriptors

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Source loads descriptors from the manager.
type Source interface {
	AssetInfos(ctx context.Context) ([]json.RawMessage, error)
	MetaItemDescriptors(ctx context.Context) (map[string]json.RawMessage, error)
	ValueDescriptors(ctx context.Context) (map[string]json.RawMessage, error)
}

// Snapshot is an immutable set of descriptors.
type Snapshot struct {
	AssetInfos          []AssetInfo
	MetaItemDescriptors map[string]json.RawMessage
	ValueDescriptors    map[string]json.RawMessage
	LoadedAt            time.Time
	Version             int
}

// AssetInfo is one asset type with the asset descriptor name pulled out for lookups.
type AssetInfo struct {
	Name string
	Raw  json.RawMessage
}

type assetInfoHeader struct {
	AssetDescriptor struct {
		Name string `json:"name"`
	} `json:"assetDescriptor"`
}

// Cache provides lock-free reads of the latest descriptor snapshot. Refresh builds a new
// snapshot and swaps it in.
type Cache struct {
	snapshot atomic.Pointer[Snapshot]
	source   Source
}

func NewCache(source Source) *Cache {
	return &Cache{source: source}
}

// Get returns the current snapshot, or nil before the first successful Refresh.
func (c *Cache) Get() *Snapshot {
	return c.snapshot.Load()
}

// Loaded reports whether a snapshot is available.
func (c *Cache) Loaded() bool {
	return c.Get() != nil
}

// Refresh reloads all three descriptor sets. On error the previous snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	rawInfos, err := c.source.AssetInfos(ctx)
	if err != nil {
		return fmt.Errorf("load asset infos: %w", err)
	}
	metaItems, err := c.source.MetaItemDescriptors(ctx)
	if err != nil {
		return fmt.Errorf("load meta item descriptors: %w", err)
	}
	values, err := c.source.ValueDescriptors(ctx)
	if err != nil {
		return fmt.Errorf("load value descriptors: %w", err)
	}

	infos := make([]AssetInfo, 0, len(rawInfos))
	for _, raw := range rawInfos {
		var header assetInfoHeader
		if err := json.Unmarshal(raw, &header); err != nil {
			return fmt.Errorf("decode asset info: %w", err)
		}
		infos = append(infos, AssetInfo{Name: header.AssetDescriptor.Name, Raw: raw})
	}

	prevVersion := 0
	if prev := c.Get(); prev != nil {
		prevVersion = prev.Version
	}

	c.snapshot.Store(&Snapshot{
		AssetInfos:          infos,
		MetaItemDescriptors: metaItems,
		ValueDescriptors:    values,
		LoadedAt:            time.Now(),
		Version:             prevVersion + 1,
	})
	return nil
}

// AssetInfo returns the asset info for an asset type name.
func (c *Cache) AssetInfo(name string) (AssetInfo, bool) {
	snapshot := c.Get()
	if snapshot == nil {
		return AssetInfo{}, false
	}
	for _, info := range snapshot.AssetInfos {
		if info.Name == name {
			return info, true
		}
	}
	return AssetInfo{}, false
}

// MetaItemDescriptor returns the meta item descriptor by name.
func (c *Cache) MetaItemDescriptor(name string) (json.RawMessage, bool) {
	snapshot := c.Get()
	if snapshot == nil {
		return nil, false
	}
	d, ok := snapshot.MetaItemDescriptors[name]
	return d, ok
}

// ValueDescriptor returns the value descriptor by name.
func (c *Cache) ValueDescriptor(name string) (json.RawMessage, bool) {
	snapshot := c.Get()
	if snapshot == nil {
		return nil, false
	}
	d, ok := snapshot.ValueDescriptors[name]
	return d, ok
}
