package descriptors

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	infos []json.RawMessage
	err   error
}

func (m *mockSource) AssetInfos(context.Context) ([]json.RawMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.infos, nil
}

func (m *mockSource) MetaItemDescriptors(context.Context) (map[string]json.RawMessage, error) {
	return map[string]json.RawMessage{"readOnly": json.RawMessage(`{"name":"readOnly"}`)}, nil
}

func (m *mockSource) ValueDescriptors(context.Context) (map[string]json.RawMessage, error) {
	return map[string]json.RawMessage{"number": json.RawMessage(`{"name":"number"}`)}, nil
}

func TestCacheRefresh(t *testing.T) {
	source := &mockSource{infos: []json.RawMessage{
		json.RawMessage(`{"assetDescriptor":{"name":"ThingAsset"}}`),
		json.RawMessage(`{"assetDescriptor":{"name":"BuildingAsset"}}`),
	}}
	cache := NewCache(source)
	assert.Nil(t, cache.Get())
	assert.False(t, cache.Loaded())

	require.NoError(t, cache.Refresh(context.Background()))
	snapshot := cache.Get()
	require.NotNil(t, snapshot)
	assert.Equal(t, 1, snapshot.Version)
	assert.Len(t, snapshot.AssetInfos, 2)

	info, ok := cache.AssetInfo("BuildingAsset")
	assert.True(t, ok)
	assert.Equal(t, "BuildingAsset", info.Name)
	_, ok = cache.AssetInfo("Unknown")
	assert.False(t, ok)

	_, ok = cache.MetaItemDescriptor("readOnly")
	assert.True(t, ok)
	_, ok = cache.ValueDescriptor("number")
	assert.True(t, ok)

	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, 2, cache.Get().Version)
}

func TestCacheRefreshErrorKeepsSnapshot(t *testing.T) {
	source := &mockSource{infos: []json.RawMessage{json.RawMessage(`{"assetDescriptor":{"name":"ThingAsset"}}`)}}
	cache := NewCache(source)
	require.NoError(t, cache.Refresh(context.Background()))

	source.err = errors.New("manager down")
	assert.Error(t, cache.Refresh(context.Background()))
	assert.Equal(t, 1, cache.Get().Version)
}

func TestCacheConcurrentReads(t *testing.T) {
	cache := NewCache(&mockSource{})
	require.NoError(t, cache.Refresh(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				_ = cache.Refresh(context.Background())
				return
			}
			_, _ = cache.ValueDescriptor("number")
		}(i)
	}
	wg.Wait()
	assert.GreaterOrEqual(t, cache.Get().Version, 2)
}
