/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/healthvault-client-go/pkg/store"
	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// vaultRecord is the minimal remote record the vault tests need.
type vaultRecord struct {
	id string
}

func (r *vaultRecord) ID() string {
	return r.id
}

func (r *vaultRecord) GetAllItems(context.Context, *types.ItemQuery) ([]*types.RecordItem, error) {
	return nil, nil
}

func (r *vaultRecord) GetKeysAndDate(context.Context, []types.ItemFilter, int) ([]*types.PendingItem, error) {
	return nil, nil
}

func newTestVault(t *testing.T) (*LocalVault, string) {
	t.Helper()

	root := t.TempDir()
	objs, err := store.NewFolderObjectStore(root)
	require.NoError(t, err)

	vault, err := NewLocalVault(context.Background(), objs)
	require.NoError(t, err)

	return vault, root
}

func TestVaultNamespaces(t *testing.T) {
	ctx := context.Background()
	vault, root := newTestVault(t)

	require.NoError(t, vault.AppStore().Put(ctx, "probe", "value"))

	_, err := vault.RecordStore(ctx, &vaultRecord{id: "record-1"})
	require.NoError(t, err)

	// App state and record data live in separate folders.
	assert.DirExists(t, filepath.Join(root, "App"))
	assert.DirExists(t, filepath.Join(root, "Records", "record-1", "Data"))
	assert.DirExists(t, filepath.Join(root, "Records", "record-1", "Metadata"))
	assert.DirExists(t, filepath.Join(root, "Records", "record-1", "Blobs"))
}

func TestVaultEnableEncryption(t *testing.T) {
	ctx := context.Background()
	vault, root := newTestVault(t)

	vault.Records().SetMaxCachedItems(64)
	require.NoError(t, vault.EnableEncryption(ctx, []byte("secret")))

	// The cache bound carries over to the reopened table.
	assert.Equal(t, 64, vault.Records().MaxCachedItems())

	recordStore, err := vault.RecordStore(ctx, &vaultRecord{id: "record-1"})
	require.NoError(t, err)
	require.NoError(t, recordStore.Metadata().Put(ctx, "probe", "plain-value"))

	// Readable through the vault, opaque on disk.
	var out string
	found, err := recordStore.Metadata().Get(ctx, "probe", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "plain-value", out)

	rawFolder, err := store.NewFolderObjectStore(filepath.Join(root, "Records", "record-1", "Metadata"))
	require.NoError(t, err)

	raw, found, err := rawFolder.Get(ctx, "probe")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, string(raw), "plain-value")
}

func TestVaultReset(t *testing.T) {
	ctx := context.Background()
	vault, _ := newTestVault(t)

	recordStore, err := vault.RecordStore(ctx, &vaultRecord{id: "record-1"})
	require.NoError(t, err)
	require.NoError(t, recordStore.Metadata().Put(ctx, "probe", "value"))

	require.NoError(t, vault.Reset(ctx))
	assert.Empty(t, vault.Records().RecordIDs())

	// App state survives a record reset.
	require.NoError(t, vault.AppStore().Put(ctx, "probe", "value"))

	var out string
	found, err := vault.AppStore().Get(ctx, "probe", &out)
	require.NoError(t, err)
	assert.True(t, found)
}
