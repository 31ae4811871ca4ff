/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/microsoft/healthvault-client-go/pkg/store"
)

const (
	appFolderName     = "App"
	recordsFolderName = "Records"
)

// LocalVault is the app's on-disk layout: an App namespace for client state
// and user info, and a Records namespace holding one container per record.
type LocalVault struct {
	root     store.ObjectStore
	appStore *store.LocalStore
	records  *store.LocalRecordStoreTable
	log      zerolog.Logger
}

type VaultOption func(v *LocalVault)

func VaultLogger(log *zerolog.Logger) VaultOption {
	return func(v *LocalVault) { v.log = *log }
}

func NewLocalVault(ctx context.Context, root store.ObjectStore, opts ...VaultOption) (*LocalVault, error) {
	if root == nil {
		return nil, ErrGenericError("root store is required")
	}

	v := &LocalVault{root: root, log: zerolog.Nop()}

	for _, o := range opts {
		o(v)
	}

	appChild, err := root.ChildStore(ctx, appFolderName)
	if err != nil {
		return nil, err
	}
	v.appStore = store.NewLocalStore(appChild)

	if err := v.openRecords(ctx, nil); err != nil {
		return nil, err
	}

	return v, nil
}

// AppStore holds app-scoped documents: client state, cached user info.
func (v *LocalVault) AppStore() *store.LocalStore {
	return v.appStore
}

// Records is the per-record store table.
func (v *LocalVault) Records() *store.LocalRecordStoreTable {
	return v.records
}

// RecordStore opens the local container for one record.
func (v *LocalVault) RecordStore(ctx context.Context, record store.Record) (*store.LocalRecordStore, error) {
	return v.records.GetStoreForRecord(ctx, record)
}

// EnableEncryption reopens the Records namespace behind the encrypting
// decorator keyed from secret. Runs during startup, before any record store
// is handed out; containers opened earlier keep their plain store.
func (v *LocalVault) EnableEncryption(ctx context.Context, secret []byte) error {
	return v.openRecords(ctx, secret)
}

func (v *LocalVault) openRecords(ctx context.Context, secret []byte) error {
	recordsChild, err := v.root.ChildStore(ctx, recordsFolderName)
	if err != nil {
		return err
	}

	if len(secret) > 0 {
		recordsChild, err = store.NewEncryptedObjectStore(recordsChild, secret)
		if err != nil {
			return err
		}
	}

	maxItems := store.DefaultMaxCachedItems
	if v.records != nil {
		maxItems = v.records.MaxCachedItems()
	}

	table, err := store.NewLocalRecordStoreTable(recordsChild, store.TableLogger(&v.log), store.TableMaxCachedItems(maxItems))
	if err != nil {
		return err
	}

	v.records = table

	return nil
}

// Reset deletes every record's local data.
func (v *LocalVault) Reset(ctx context.Context) error {
	return v.records.RemoveAllStores(ctx)
}
