/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package app

import (
	"context"
	"time"

	"github.com/microsoft/healthvault-client-go/pkg/store"
	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// userInfoKey is versioned so a future shape change can coexist with old
// cached documents.
const userInfoKey = "UserInfo_V1"

// UserInfo is the locally cached identity of the authorized user: who they
// are and which records they granted this app.
type UserInfo struct {
	Person    *types.PersonInfo `json:"person"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func NewUserInfo(person *types.PersonInfo) *UserInfo {
	return &UserInfo{Person: person, UpdatedAt: time.Now().UTC()}
}

func (u *UserInfo) HasRecords() bool {
	return u != nil && u.Person != nil && u.Person.HasRecords()
}

func (u *UserInfo) SelectedRecord() *types.RecordInfo {
	if u == nil || u.Person == nil {
		return nil
	}

	return u.Person.SelectedRecord()
}

// LoadUserInfo reads the cached user info. Missing or unreadable cache is
// nil, never an error; the caller refetches from the service.
func LoadUserInfo(ctx context.Context, appStore *store.LocalStore) *UserInfo {
	var info UserInfo
	found, err := appStore.Get(ctx, userInfoKey, &info)
	if err != nil || !found || info.Person == nil {
		return nil
	}

	return &info
}

func (u *UserInfo) Save(ctx context.Context, appStore *store.LocalStore) error {
	return appStore.Put(ctx, userInfoKey, u)
}

func RemoveUserInfo(ctx context.Context, appStore *store.LocalStore) error {
	return appStore.Delete(ctx, userInfoKey)
}
