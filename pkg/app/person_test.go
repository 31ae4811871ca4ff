/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/healthvault-client-go/pkg/store"
	"github.com/microsoft/healthvault-client-go/pkg/types"
)

func newTestAppStore(t *testing.T) *store.LocalStore {
	t.Helper()

	objs, err := store.NewFolderObjectStore(t.TempDir())
	require.NoError(t, err)

	return store.NewLocalStore(objs)
}

func TestUserInfoRoundTrip(t *testing.T) {
	ctx := context.Background()
	appStore := newTestAppStore(t)

	info := NewUserInfo(&types.PersonInfo{
		PersonID: "person-1",
		Name:     "Jane Doe",
		Records:  []types.RecordInfo{{ID: "record-1"}},
	})
	require.NoError(t, info.Save(ctx, appStore))

	loaded := LoadUserInfo(ctx, appStore)
	require.NotNil(t, loaded)
	assert.Equal(t, "person-1", loaded.Person.PersonID)
	assert.True(t, loaded.HasRecords())
	assert.Equal(t, "record-1", loaded.SelectedRecord().ID)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestLoadUserInfoMissingIsNil(t *testing.T) {
	ctx := context.Background()
	appStore := newTestAppStore(t)

	assert.Nil(t, LoadUserInfo(ctx, appStore))
}

func TestLoadUserInfoCorruptIsNil(t *testing.T) {
	ctx := context.Background()
	appStore := newTestAppStore(t)

	// An unreadable cache degrades to a refetch, never an error.
	require.NoError(t, appStore.Store().Put(ctx, "UserInfo_V1", []byte("{not json")))

	assert.Nil(t, LoadUserInfo(ctx, appStore))
}

func TestRemoveUserInfo(t *testing.T) {
	ctx := context.Background()
	appStore := newTestAppStore(t)

	info := NewUserInfo(&types.PersonInfo{PersonID: "person-1"})
	require.NoError(t, info.Save(ctx, appStore))
	require.NoError(t, RemoveUserInfo(ctx, appStore))

	assert.Nil(t, LoadUserInfo(ctx, appStore))
}

func TestUserInfoNilReceivers(t *testing.T) {
	var info *UserInfo

	assert.False(t, info.HasRecords())
	assert.Nil(t, info.SelectedRecord())
}
