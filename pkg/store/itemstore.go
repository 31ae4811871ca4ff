/*
 * Copyright (c) Microsoft Corporation.
 * Licensed under the MIT License.
 */

package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/microsoft/healthvault-client-go/pkg/types"
)

// LocalItemStore holds the locally cached items of one record, keyed by item
// ID. When a shared LRU cache is supplied at construction, the backing
// object store is decorated with it once, here.
//
// Every operation holds a store-wide lock around its object-store calls, so
// gets and puts on one instance never interleave.
type LocalItemStore struct {
	mu   sync.Mutex
	objs ObjectStore
}

func NewLocalItemStore(objs ObjectStore, cache *LRUCache) *LocalItemStore {
	if cache != nil {
		objs = NewCachingObjectStore(objs, cache)
	}

	return &LocalItemStore{objs: objs}
}

// ItemIDs lists the IDs of every locally stored item.
func (s *LocalItemStore) ItemIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objs.Keys(ctx)
}

// Get returns the typed payload for key, or nil when the item is absent,
// has no typed payload, or its version stamp does not match. A version
// mismatch is a refresh signal, not an error.
func (s *LocalItemStore) Get(ctx context.Context, key types.ItemKey) (*types.ItemData, error) {
	item, err := s.GetItem(ctx, key)
	if err != nil || item == nil || !item.HasTypedData() {
		return nil, err
	}

	return item.TypedData(), nil
}

// GetItem returns the full item for key, nil on absence or version mismatch.
func (s *LocalItemStore) GetItem(ctx context.Context, key types.ItemKey) (*types.RecordItem, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getItemLocked(ctx, key)
}

// GetByID fetches the typed payload by bare item ID, skipping the version
// check.
func (s *LocalItemStore) GetByID(ctx context.Context, itemID string) (*types.ItemData, error) {
	item, err := s.GetItemByID(ctx, itemID)
	if err != nil || item == nil || !item.HasTypedData() {
		return nil, err
	}

	return item.TypedData(), nil
}

func (s *LocalItemStore) GetItemByID(ctx context.Context, itemID string) (*types.RecordItem, error) {
	if itemID == "" {
		return nil, types.ErrRequired("itemID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.decodeItem(s.objs.Get(ctx, itemID))
}

// RefreshAndGetItem reloads the item past any cache layer, then applies the
// usual version check.
func (s *LocalItemStore) RefreshAndGetItem(ctx context.Context, key types.ItemKey) (*types.RecordItem, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.decodeItem(s.objs.RefreshAndGet(ctx, key.ID))
	if err != nil || item == nil {
		return nil, err
	}

	if !item.Key.IsVersion(key.Version) {
		return nil, nil
	}

	return item, nil
}

// GetItems applies GetItem to each key. With includeNil, the result is
// positionally aligned with keys, absent entries left nil; otherwise absent
// entries are dropped.
func (s *LocalItemStore) GetItems(ctx context.Context, keys []types.ItemKey, includeNil bool) ([]*types.RecordItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*types.RecordItem, 0, len(keys))
	for _, key := range keys {
		if err := key.Validate(); err != nil {
			return nil, err
		}

		item, err := s.getItemLocked(ctx, key)
		if err != nil {
			return nil, err
		}

		if item != nil || includeNil {
			items = append(items, item)
		}
	}

	return items, nil
}

// GetMultiple is GetItems for typed payloads.
func (s *LocalItemStore) GetMultiple(ctx context.Context, keys []types.ItemKey, includeNil bool) ([]*types.ItemData, error) {
	items, err := s.GetItems(ctx, keys, includeNil)
	if err != nil {
		return nil, err
	}

	data := make([]*types.ItemData, 0, len(items))
	for _, item := range items {
		var d *types.ItemData
		if item != nil && item.HasTypedData() {
			d = item.TypedData()
		}

		if d != nil || includeNil {
			data = append(data, d)
		}
	}

	return data, nil
}

// PutItem stores the item under its key's ID. The key is required.
func (s *LocalItemStore) PutItem(ctx context.Context, item *types.RecordItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putItemLocked(ctx, item)
}

// PutItems stores each item in turn under one lock scope.
func (s *LocalItemStore) PutItems(ctx context.Context, items []*types.RecordItem) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if err := s.putItemLocked(ctx, item); err != nil {
			return err
		}
	}

	return nil
}

// Put stores a typed payload's owning item.
func (s *LocalItemStore) Put(ctx context.Context, data *types.ItemData) error {
	if data == nil || data.Item() == nil {
		return types.ErrRequired("data.Item")
	}

	return s.PutItem(ctx, data.Item())
}

func (s *LocalItemStore) RemoveItem(ctx context.Context, key types.ItemKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objs.Delete(ctx, key.ID)
}

// UpdateDateFor reports when the item under key was last written locally.
func (s *LocalItemStore) UpdateDateFor(ctx context.Context, key types.ItemKey) (time.Time, error) {
	if err := key.Validate(); err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objs.UpdateDate(ctx, key.ID)
}

func (s *LocalItemStore) getItemLocked(ctx context.Context, key types.ItemKey) (*types.RecordItem, error) {
	item, err := s.decodeItem(s.objs.Get(ctx, key.ID))
	if err != nil || item == nil {
		return nil, err
	}

	if !item.Key.IsVersion(key.Version) {
		return nil, nil
	}

	return item, nil
}

func (s *LocalItemStore) putItemLocked(ctx context.Context, item *types.RecordItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return ErrGenericErrorWrap("encoding item", err)
	}

	return s.objs.Put(ctx, item.Key.ID, data)
}

func (s *LocalItemStore) decodeItem(data []byte, found bool, err error) (*types.RecordItem, error) {
	if err != nil || !found {
		return nil, err
	}

	var item types.RecordItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, ErrGenericErrorWrap("decoding item", err)
	}

	return &item, nil
}
