/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

func TestItemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	item := makeItem(0, `{"kg": 71}`)
	require.NoError(t, store.PutItem(ctx, item))

	loaded, err := store.GetItem(ctx, item.Key)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, item.Key, loaded.Key)
	assert.Equal(t, item.Type.ID, loaded.Type.ID)

	// The payload back-reference is rebound on load.
	require.True(t, loaded.HasTypedData())
	assert.Same(t, loaded, loaded.Data.Item())
	assert.Equal(t, "71", loaded.Data.Field("kg"))
}

func TestItemStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	loaded, err := store.GetItem(ctx, types.NewItemKey("missing", ""))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestItemStoreVersionMismatchIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	item := makeItem(0, `{"kg": 71}`)
	require.NoError(t, store.PutItem(ctx, item))

	// An outdated version stamp reads as absent, not as an error.
	stale := types.NewItemKey(item.Key.ID, "some-other-version")
	loaded, err := store.GetItem(ctx, stale)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// An empty stamp matches any stored version.
	loaded, err = store.GetItem(ctx, types.NewItemKey(item.Key.ID, ""))
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}

func TestItemStoreGetByIDSkipsVersionCheck(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	item := makeItem(0, `{"kg": 71}`)
	require.NoError(t, store.PutItem(ctx, item))

	loaded, err := store.GetItemByID(ctx, item.Key.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, item.Key, loaded.Key)
}

func TestItemStoreGetItemsAligned(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	a := makeItem(0, `{"kg": 70}`)
	c := makeItem(2, `{"kg": 72}`)
	require.NoError(t, store.PutItems(ctx, []*types.RecordItem{a, c}))

	keys := []types.ItemKey{a.Key, types.NewItemKey("missing", ""), c.Key}

	items, err := store.GetItems(ctx, keys, true)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, a.Key, items[0].Key)
	assert.Nil(t, items[1])
	assert.Equal(t, c.Key, items[2].Key)

	// Without includeNil the missing slot is dropped.
	items, err = store.GetItems(ctx, keys, false)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestItemStoreRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	item := makeItem(0, `{"kg": 71}`)
	require.NoError(t, store.PutItem(ctx, item))
	require.NoError(t, store.RemoveItem(ctx, item.Key))

	loaded, err := store.GetItem(ctx, item.Key)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestItemStoreItemIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	a := makeItem(0, `{"kg": 70}`)
	b := makeItem(1, `{"kg": 71}`)
	require.NoError(t, store.PutItems(ctx, []*types.RecordItem{a, b}))

	ids, err := store.ItemIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.Key.ID, b.Key.ID}, ids)
}

func TestItemStoreUpdateDateFor(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	before := time.Now().Add(-time.Minute)

	item := makeItem(0, `{"kg": 71}`)
	require.NoError(t, store.PutItem(ctx, item))

	updated, err := store.UpdateDateFor(ctx, item.Key)
	require.NoError(t, err)
	assert.True(t, updated.After(before))
}

func TestItemStoreRefreshAndGetWithCache(t *testing.T) {
	ctx := context.Background()

	objs, err := NewFolderObjectStore(t.TempDir())
	require.NoError(t, err)

	store := NewLocalItemStore(objs, NewLRUCache(10))

	item := makeItem(0, `{"kg": 70}`)
	require.NoError(t, store.PutItem(ctx, item))

	// Replace the item behind the cache's back.
	newer := *item
	newer.Key.Version = "v2"
	bypass := NewLocalItemStore(objs, nil)
	require.NoError(t, bypass.PutItem(ctx, &newer))

	// Cached read still serves the old version stamp.
	loaded, err := store.GetItem(ctx, types.NewItemKey(item.Key.ID, ""))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, item.Key.Version, loaded.Key.Version)

	loaded, err = store.RefreshAndGetItem(ctx, types.NewItemKey(item.Key.ID, ""))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "v2", loaded.Key.Version)
}

func TestItemStorePutValidates(t *testing.T) {
	ctx := context.Background()
	store := newTestItemStore(t, nil)

	err := store.PutItem(ctx, &types.RecordItem{})
	assert.Error(t, err)

	_, err = store.GetItem(ctx, types.ItemKey{})
	assert.Error(t, err)
}
