/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxCachedItems bounds the item cache shared by every record store
// in a table.
const DefaultMaxCachedItems = 512

// LocalRecordStoreTable hands out one LocalRecordStore per record, all
// backed by the same root object store and one shared LRU item cache so the
// memory bound holds across records.
type LocalRecordStoreTable struct {
	mu     sync.Mutex
	root   ObjectStore
	cache  *LRUCache
	stores map[string]*LocalRecordStore
	log    zerolog.Logger
}

type TableOption func(t *LocalRecordStoreTable)

func TableLogger(log *zerolog.Logger) TableOption {
	return func(t *LocalRecordStoreTable) { t.log = *log }
}

func TableMaxCachedItems(maxItems int) TableOption {
	return func(t *LocalRecordStoreTable) { t.cache.SetMaxCount(maxItems) }
}

func NewLocalRecordStoreTable(root ObjectStore, opts ...TableOption) (*LocalRecordStoreTable, error) {
	if root == nil {
		return nil, ErrGenericError("root store is required")
	}

	t := &LocalRecordStoreTable{
		root:   root,
		cache:  NewLRUCache(DefaultMaxCachedItems),
		stores: make(map[string]*LocalRecordStore),
	}

	for _, o := range opts {
		o(t)
	}

	return t, nil
}

func (t *LocalRecordStoreTable) MaxCachedItems() int {
	return t.cache.MaxCount()
}

// SetMaxCachedItems adjusts the shared cache bound; excess entries are
// evicted as new ones arrive.
func (t *LocalRecordStoreTable) SetMaxCachedItems(maxItems int) {
	t.cache.SetMaxCount(maxItems)
}

// GetStoreForRecord returns the record's store, creating its local
// container on first use. The record reference is refreshed on every call,
// so a store handed out earlier keeps working after re-authentication.
func (t *LocalRecordStoreTable) GetStoreForRecord(ctx context.Context, record Record) (*LocalRecordStore, error) {
	if record == nil {
		return nil, ErrGenericError("record is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.stores[record.ID()]; ok {
		existing.SetRecord(record)
		return existing, nil
	}

	recordStore, err := NewLocalRecordStore(ctx, record, t.root, t.cache, RecordStoreLogger(&t.log))
	if err != nil {
		return nil, err
	}

	t.stores[record.ID()] = recordStore
	t.log.Debug().Str("record", record.ID()).Msg("record store opened")

	return recordStore, nil
}

// RecordIDs lists the records with an open store in this table.
func (t *LocalRecordStoreTable) RecordIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.stores))
	for id := range t.stores {
		ids = append(ids, id)
	}

	return ids
}

// RemoveStoreForRecordID drops the record's store and deletes its local
// data. The shared cache is cleared since its entries are not record
// scoped. The call returns after the deletion completes.
func (t *LocalRecordStoreTable) RemoveStoreForRecordID(ctx context.Context, recordID string) error {
	if recordID == "" {
		return ErrGenericError("record id is required")
	}

	t.mu.Lock()
	delete(t.stores, recordID)
	t.cache.Clear()
	t.mu.Unlock()

	if err := t.root.DeleteChildStore(ctx, recordID); err != nil {
		return err
	}

	t.log.Debug().Str("record", recordID).Msg("record store removed")

	return nil
}

// RemoveAllStores drops every open store and deletes all local record data
// concurrently. The first deletion failure is returned; the rest still run.
func (t *LocalRecordStoreTable) RemoveAllStores(ctx context.Context) error {
	t.mu.Lock()
	ids := make([]string, 0, len(t.stores))
	for id := range t.stores {
		ids = append(ids, id)
	}
	t.stores = make(map[string]*LocalRecordStore)
	t.cache.Clear()
	t.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return t.root.DeleteChildStore(ctx, id)
		})
	}

	return g.Wait()
}
